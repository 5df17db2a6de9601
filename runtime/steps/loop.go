package steps

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/bounded"
)

func init() {
	defaultRegistry.register("loop", newLoopStep)
}

// LoopConfig is the decoded config for the loop step.
type LoopConfig struct {
	Items          any               `json:"items" validate:"required"`
	ItemKey        string            `json:"item_key" validate:"required"`
	Substeps       []runtime.StepDef `json:"substeps" validate:"required"`
	ResultKey      string            `json:"result_key" validate:"required"`
	MaxConcurrency int               `json:"max_concurrency" default:"1"`
	DelaySec       float64           `json:"delay"`
	FailFast       bool              `json:"fail_fast" default:"true"`
}

type loopStep struct {
	deps runtime.Deps
	cfg  LoopConfig
}

func newLoopStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg LoopConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &loopStep{deps: deps, cfg: cfg}, nil
}

func (s *loopStep) Execute(ctx context.Context, rc *runtime.Context) error {
	items, keys, isMap, err := s.resolveItems(rc)
	if err != nil {
		return err
	}

	n := len(items)
	if n == 0 {
		if isMap {
			rc.Set(s.cfg.ResultKey, map[string]any{})
		} else {
			rc.Set(s.cfg.ResultKey, []any{})
		}
		return nil
	}

	recipe := &runtime.Recipe{Steps: s.cfg.Substeps}

	opts := bounded.Options{
		MaxConcurrency: s.cfg.MaxConcurrency,
		Delay:          time.Duration(s.cfg.DelaySec * float64(time.Second)),
		FailFast:       s.cfg.FailFast,
	}

	results := bounded.Run(ctx, n, opts, func(ctx context.Context, i int) (any, error) {
		child := rc.Clone()
		child.Set(s.cfg.ItemKey, items[i])
		if isMap {
			child.Set("__key", keys[i])
		} else {
			child.Set("__index", i)
		}

		if err := s.deps.Executor.ExecuteNested(ctx, recipe, child); err != nil {
			return nil, err
		}
		return child.Get(s.cfg.ItemKey), nil
	})

	if s.cfg.FailFast {
		if fe := firstErr(results); fe != nil {
			// result_key is deliberately left unset: a fail-fast loop failure
			// propagates without a partial result.
			return runtime.NewFlowError(runtime.KindLoopError, fe.Error(), fe)
		}
	}

	if isMap {
		resultMap := make(map[string]any, n)
		var errs []any
		for i, r := range results {
			if r.Err != nil {
				errs = append(errs, map[string]any{"key": keys[i], "error": r.Err.Error()})
				continue
			}
			resultMap[keys[i]] = r.Value
		}
		rc.Set(s.cfg.ResultKey, resultMap)
		if len(errs) > 0 {
			rc.Set(s.cfg.ResultKey+"__errors", errs)
		}
		return nil
	}

	resultList := make([]any, 0, n)
	var errs []any
	for i, r := range results {
		if r.Err != nil {
			errs = append(errs, map[string]any{"index": i, "error": r.Err.Error()})
			continue
		}
		resultList = append(resultList, r.Value)
	}
	rc.Set(s.cfg.ResultKey, resultList)
	if len(errs) > 0 {
		rc.Set(s.cfg.ResultKey+"__errors", errs)
	}
	return nil
}

func firstErr(results []bounded.Result) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

func (s *loopStep) resolveItems(rc *runtime.Context) (items []any, keys []string, isMap bool, err error) {
	value := s.cfg.Items

	if str, ok := value.(string); ok {
		rendered, rErr := s.deps.Renderer.Render(str, rc)
		if rErr != nil {
			return nil, nil, false, rErr
		}
		resolved := rc.Get(rendered)
		if resolved == nil {
			return nil, nil, false, runtime.NewFlowError(runtime.KindLoopInputError, fmt.Sprintf("items path %q not found", rendered), nil)
		}
		value = resolved
	}

	switch v := value.(type) {
	case []any:
		return v, nil, false, nil
	case map[string]any:
		ks := sortedMapKeys(v)
		vals := make([]any, len(ks))
		for i, k := range ks {
			vals[i] = v[k]
		}
		return vals, ks, true, nil
	default:
		return nil, nil, false, runtime.NewFlowError(runtime.KindLoopInputError, fmt.Sprintf("items resolved to unsupported type %T", value), nil)
	}
}

// sortedMapKeys returns m's keys in sorted order. Go maps have no order of
// their own; sorting gives map-input loops a deterministic iteration order
// instead of leaving it hash-dependent.
func sortedMapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
