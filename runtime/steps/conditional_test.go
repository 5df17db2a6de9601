package steps

import (
	"context"
	"testing"

	"github.com/sflowg/reciperun/runtime"
)

func newTestExecutor() *runtime.Executor {
	reg := runtime.NewRegistry()
	RegisterAll(reg)
	return runtime.NewExecutor(nil, reg, runtime.NewRenderer())
}

func TestConditionalTrueBranchRuns(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newConditionalStep(deps, map[string]any{
		"condition": "true",
		"if_true": map[string]any{
			"steps": []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "branch", "value": "true"}}},
		},
		"if_false": map[string]any{
			"steps": []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "branch", "value": "false"}}},
		},
	})
	if err != nil {
		t.Fatalf("construct conditional: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rc.Get("branch") != "true" {
		t.Fatalf("branch = %v, want true (if_false must not run)", rc.Get("branch"))
	}
}

func TestConditionalComparesRenderedTextAgainstUnquotedLiteral(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	setX, err := newSetContextStep(deps, map[string]any{"key": "x", "value": "7"})
	if err != nil {
		t.Fatalf("construct set_context: %v", err)
	}
	step, err := newConditionalStep(deps, map[string]any{
		"condition": `{{x}} == 7`,
		"if_true": map[string]any{
			"steps": []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "y", "value": "yes"}}},
		},
		"if_false": map[string]any{
			"steps": []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "y", "value": "no"}}},
		},
	})
	if err != nil {
		t.Fatalf("construct conditional: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := setX.Execute(context.Background(), rc); err != nil {
		t.Fatalf("set_context Execute: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("conditional Execute: %v", err)
	}
	if rc.Get("y") != "yes" {
		t.Fatalf("y = %v, want yes", rc.Get("y"))
	}
}

func TestConditionalRenderedConditionExpression(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newConditionalStep(deps, map[string]any{
		"condition": "{{ flag }}",
		"if_true": map[string]any{
			"steps": []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "ran", "value": true}}},
		},
	})
	if err != nil {
		t.Fatalf("construct conditional: %v", err)
	}

	rc := runtime.NewContext(map[string]any{"flag": "true"}, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rc.Get("ran") != true {
		t.Fatalf("ran = %v, want true", rc.Get("ran"))
	}
}
