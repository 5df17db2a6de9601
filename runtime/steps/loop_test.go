package steps

import (
	"context"
	"testing"

	"github.com/sflowg/reciperun/runtime"
)

func TestLoopListPreservesInputOrderUnderConcurrency(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newLoopStep(deps, map[string]any{
		"items":    []any{"a", "b", "c", "d"},
		"item_key": "item",
		"substeps": []any{
			map[string]any{"type": "set_context", "config": map[string]any{
				"key": "item", "value": "{{ item }}-done",
			}},
		},
		"result_key":      "results",
		"max_concurrency": 4,
	})
	if err != nil {
		t.Fatalf("construct loop: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got, ok := rc.Get("results").([]any)
	if !ok || len(got) != 4 {
		t.Fatalf("results = %v, want 4 elements", rc.Get("results"))
	}
	want := []any{"a-done", "b-done", "c-done", "d-done"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("results[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoopEmptyInputSucceedsWithEmptyResult(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newLoopStep(deps, map[string]any{
		"items":      []any{},
		"item_key":   "item",
		"substeps":   []any{map[string]any{"type": "set_context", "config": map[string]any{"key": "item", "value": "x"}}},
		"result_key": "results",
	})
	if err != nil {
		t.Fatalf("construct loop: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got, ok := rc.Get("results").([]any)
	if !ok || len(got) != 0 {
		t.Fatalf("results = %v, want empty list", rc.Get("results"))
	}
}

func TestLoopFailFastTrueLeavesResultKeyUnset(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newLoopStep(deps, map[string]any{
		"items":    []any{"ok", "bad"},
		"item_key": "item",
		"substeps": []any{
			map[string]any{"type": "shell", "config": map[string]any{
				"command": `test "{{ item }}" != "bad"`,
			}},
		},
		"result_key":      "results",
		"max_concurrency": 2,
	})
	if err != nil {
		t.Fatalf("construct loop: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err == nil {
		t.Fatalf("expected loop-error with fail_fast=true (default)")
	}
	if rc.Contains("results") {
		t.Fatalf("result_key must not be written on a fail-fast loop failure, got %v", rc.Get("results"))
	}
}

func TestLoopFailFastFalseCollectsErrors(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newLoopStep(deps, map[string]any{
		"items":    []any{"ok", "bad"},
		"item_key": "item",
		"substeps": []any{
			map[string]any{"type": "shell", "config": map[string]any{
				"command": `test "{{ item }}" != "bad"`,
			}},
		},
		"result_key": "results",
		"fail_fast":  false,
	})
	if err != nil {
		t.Fatalf("construct loop: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error with fail_fast=false: %v", err)
	}
	if errs, ok := rc.Get("results__errors").([]any); !ok || len(errs) != 1 {
		t.Fatalf("results__errors = %v, want 1 entry", rc.Get("results__errors"))
	}
}
