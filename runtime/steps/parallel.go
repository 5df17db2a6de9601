package steps

import (
	"context"
	"time"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/bounded"
)

func init() {
	defaultRegistry.register("parallel", newParallelStep)
}

// ParallelConfig is the decoded config for the parallel step.
type ParallelConfig struct {
	Substeps       []runtime.StepDef `json:"substeps" validate:"required"`
	MaxConcurrency int               `json:"max_concurrency"`
	DelaySec       float64           `json:"delay"`
	FailFast       bool              `json:"fail_fast" default:"true"`
}

type parallelStep struct {
	deps runtime.Deps
	cfg  ParallelConfig
}

func newParallelStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg ParallelConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &parallelStep{deps: deps, cfg: cfg}, nil
}

// Execute runs each substep against its own clone of the parent Context, so
// siblings never observe each other's writes; the parent Context itself is
// never mutated by this step. Only fail_fast/error aggregation is reported
// back to the caller.
func (s *parallelStep) Execute(ctx context.Context, rc *runtime.Context) error {
	n := len(s.cfg.Substeps)
	if n == 0 {
		return nil
	}

	opts := bounded.Options{
		MaxConcurrency: s.cfg.MaxConcurrency,
		Delay:          time.Duration(s.cfg.DelaySec * float64(time.Second)),
		FailFast:       s.cfg.FailFast,
	}

	results := bounded.Run(ctx, n, opts, func(ctx context.Context, i int) (any, error) {
		child := rc.Clone()
		recipe := &runtime.Recipe{Steps: []runtime.StepDef{s.cfg.Substeps[i]}}
		if err := s.deps.Executor.ExecuteNested(ctx, recipe, child); err != nil {
			return nil, err
		}
		return nil, nil
	})

	// Unlike loop, parallel has no dedicated error kind in the taxonomy and no
	// result_key to stash partial results/errors into. With fail_fast=true it
	// does not catch, so the first substep failure propagates unmodified (the
	// executor keeps its kind and records this step's index/type on it on the
	// way out, same as any other step failure). With fail_fast=false, fail-fast semantics match loop: every
	// substep already ran to completion above, and the step itself succeeds.
	if s.cfg.FailFast {
		if fe := firstErr(results); fe != nil {
			return fe
		}
	}
	return nil
}
