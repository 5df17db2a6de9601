package runtime

import "testing"

func TestRenderEmptyText(t *testing.T) {
	r := NewRenderer()
	rc := NewContext(nil, nil)
	out, err := r.Render("", rc)
	if err != nil || out != "" {
		t.Fatalf("Render(\"\") = (%q, %v), want (\"\", nil)", out, err)
	}
}

func TestRenderVariableAndSnakecase(t *testing.T) {
	r := NewRenderer()
	rc := NewContext(map[string]any{"name": "Hello World-Case"}, nil)

	out, err := r.Render("{{ name|snakecase }}", rc)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if out != "hello_world_case" {
		t.Fatalf("Render = %q, want hello_world_case", out)
	}
}

func TestRenderDottedPath(t *testing.T) {
	r := NewRenderer()
	rc := NewContext(map[string]any{"step": map[string]any{"result": "ok"}}, nil)

	out, err := r.Render("{{ step.result }}", rc)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if out != "ok" {
		t.Fatalf("Render = %q, want ok", out)
	}
}

func TestRenderErrorIncludesKeysNotValues(t *testing.T) {
	r := NewRenderer()
	rc := NewContext(map[string]any{"secret": "do-not-leak"}, nil)

	_, err := r.Render("{{ secret | nosuchfilter }}", rc)
	if err == nil {
		t.Fatalf("expected render error for unknown filter")
	}
	if containsSubstring(err.Error(), "do-not-leak") {
		t.Fatalf("render error leaked a context value: %v", err)
	}
	if !containsSubstring(err.Error(), "[secret]") {
		t.Fatalf("render error does not list the context keys: %v", err)
	}
}

func containsSubstring(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
