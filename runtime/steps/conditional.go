package steps

import (
	"context"

	"github.com/sflowg/reciperun/runtime"
	"github.com/sflowg/reciperun/runtime/condition"
)

func init() {
	defaultRegistry.register("conditional", newConditionalStep)
}

// Branch is the {steps: [...]} shape of a conditional branch body.
type Branch struct {
	Steps []runtime.StepDef `json:"steps"`
}

// ConditionalConfig is the decoded config for the conditional step.
type ConditionalConfig struct {
	Condition string  `json:"condition" validate:"required"`
	IfTrue    *Branch `json:"if_true,omitempty"`
	IfFalse   *Branch `json:"if_false,omitempty"`
}

type conditionalStep struct {
	deps runtime.Deps
	cfg  ConditionalConfig
}

func newConditionalStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg ConditionalConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &conditionalStep{deps: deps, cfg: cfg}, nil
}

func (s *conditionalStep) Execute(ctx context.Context, rc *runtime.Context) error {
	rendered, err := s.deps.Renderer.Render(s.cfg.Condition, rc)
	if err != nil {
		return err
	}

	result, err := condition.Evaluate(rendered)
	if err != nil {
		return runtime.NewFlowError(runtime.KindConditionError, err.Error(), err)
	}

	var branch *Branch
	if result {
		branch = s.cfg.IfTrue
	} else {
		branch = s.cfg.IfFalse
	}
	if branch == nil || len(branch.Steps) == 0 {
		return nil
	}

	recipe := &runtime.Recipe{Steps: branch.Steps}
	return s.deps.Executor.ExecuteNested(ctx, recipe, rc)
}
