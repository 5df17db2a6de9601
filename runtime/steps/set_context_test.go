package steps

import (
	"context"
	"log/slog"
	"testing"

	"github.com/sflowg/reciperun/runtime"
)

func testDeps() runtime.Deps {
	return runtime.Deps{Renderer: runtime.NewRenderer(), Logger: slog.Default()}
}

func TestSetContextOverwrite(t *testing.T) {
	rc := runtime.NewContext(map[string]any{"k": "old"}, nil)
	step, err := newSetContextStep(testDeps(), map[string]any{"key": "k", "value": "new"})
	if err != nil {
		t.Fatalf("construct step: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if rc.Get("k") != "new" {
		t.Fatalf("Get(k) = %v, want new", rc.Get("k"))
	}
}

func TestSetContextMergeStrings(t *testing.T) {
	rc := runtime.NewContext(map[string]any{"k": "foo"}, nil)
	step, err := newSetContextStep(testDeps(), map[string]any{"key": "k", "value": "bar", "if_exists": "merge"})
	if err != nil {
		t.Fatalf("construct step: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if rc.Get("k") != "foobar" {
		t.Fatalf("Get(k) = %v, want foobar", rc.Get("k"))
	}
}

func TestSetContextMergeListAppendsScalar(t *testing.T) {
	rc := runtime.NewContext(map[string]any{"k": []any{"a"}}, nil)
	step, err := newSetContextStep(testDeps(), map[string]any{"key": "k", "value": "b", "if_exists": "merge"})
	if err != nil {
		t.Fatalf("construct step: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	list, ok := rc.Get("k").([]any)
	if !ok || len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("Get(k) = %v, want [a b]", rc.Get("k"))
	}
}

func TestSetContextMergeMismatchedTypesWraps(t *testing.T) {
	rc := runtime.NewContext(map[string]any{"k": 1}, nil)
	step, err := newSetContextStep(testDeps(), map[string]any{"key": "k", "value": "x", "if_exists": "merge"})
	if err != nil {
		t.Fatalf("construct step: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	list, ok := rc.Get("k").([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("Get(k) = %v, want a 2-element list", rc.Get("k"))
	}
}

func TestSetContextMapMergeOverlay(t *testing.T) {
	rc := runtime.NewContext(map[string]any{"k": map[string]any{"a": 1, "b": 1}}, nil)
	step, err := newSetContextStep(testDeps(), map[string]any{
		"key": "k", "value": map[string]any{"b": 2, "c": 3}, "if_exists": "merge",
	})
	if err != nil {
		t.Fatalf("construct step: %v", err)
	}
	if err := step.Execute(context.Background(), rc); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	m, ok := rc.Get("k").(map[string]any)
	if !ok || m["a"] != 1 || m["b"] != 2 || m["c"] != 3 {
		t.Fatalf("Get(k) = %v, want {a:1 b:2 c:3}", rc.Get("k"))
	}
}
