package steps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sflowg/reciperun/runtime"
)

func TestExecuteRecipeRunsSubRecipeAgainstSameContext(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub.json")
	if err := os.WriteFile(sub, []byte(`{"steps":[{"type":"set_context","config":{"key":"from_sub","value":"yes"}}]}`), 0o644); err != nil {
		t.Fatalf("write sub recipe: %v", err)
	}

	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newExecuteRecipeStep(deps, map[string]any{"recipe_path": sub})
	if err != nil {
		t.Fatalf("construct execute_recipe: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if rc.Get("from_sub") != "yes" {
		t.Fatalf("from_sub = %v, want yes (same Context, no clone)", rc.Get("from_sub"))
	}
}

func TestExecuteRecipeContextOverrideParsesJSON(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub.json")
	if err := os.WriteFile(sub, []byte(`{"steps":[{"type":"set_context","config":{"key":"noop","value":"x"}}]}`), 0o644); err != nil {
		t.Fatalf("write sub recipe: %v", err)
	}

	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newExecuteRecipeStep(deps, map[string]any{
		"recipe_path": sub,
		"context_overrides": map[string]any{
			"parsed": `{"a":1,"b":[1,2]}`,
		},
	})
	if err != nil {
		t.Fatalf("construct execute_recipe: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	m, ok := rc.Get("parsed").(map[string]any)
	if !ok || m["a"] != float64(1) {
		t.Fatalf("parsed = %v (%T), want parsed JSON object", rc.Get("parsed"), rc.Get("parsed"))
	}
}

func TestExecuteRecipeMissingFileFails(t *testing.T) {
	exec := newTestExecutor()
	deps := runtime.Deps{Renderer: exec.Renderer, Executor: exec, Logger: exec.Logger}

	step, err := newExecuteRecipeStep(deps, map[string]any{"recipe_path": filepath.Join(t.TempDir(), "missing.json")})
	if err != nil {
		t.Fatalf("construct execute_recipe: %v", err)
	}

	rc := runtime.NewContext(nil, nil)
	err = step.Execute(context.Background(), rc)
	if err == nil {
		t.Fatalf("expected missing-recipe error")
	}
	fe, ok := err.(*runtime.FlowError)
	if !ok || fe.Kind != runtime.KindMissingRecipe {
		t.Fatalf("err = %v, want *runtime.FlowError with Kind=missing-recipe", err)
	}
}
