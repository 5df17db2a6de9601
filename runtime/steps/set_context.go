package steps

import (
	"context"

	"github.com/sflowg/reciperun/runtime"
)

func init() {
	defaultRegistry.register("set_context", newSetContextStep)
}

// SetContextConfig is the decoded config for the set_context step.
type SetContextConfig struct {
	Key           string `json:"key" validate:"required"`
	Value         any    `json:"value"`
	NestedRender  bool   `json:"nested_render"`
	IfExists      string `json:"if_exists" default:"overwrite" validate:"oneof=overwrite merge"`
}

type setContextStep struct {
	deps runtime.Deps
	cfg  SetContextConfig
}

func newSetContextStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg SetContextConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &setContextStep{deps: deps, cfg: cfg}, nil
}

func (s *setContextStep) Execute(ctx context.Context, rc *runtime.Context) error {
	rendered, err := s.renderValue(s.cfg.Value, rc)
	if err != nil {
		return err
	}

	if s.cfg.IfExists == "merge" && rc.Contains(s.cfg.Key) {
		rendered = mergeValues(rc.Get(s.cfg.Key), rendered)
	}

	rc.Set(s.cfg.Key, rendered)
	return nil
}

// renderValue recursively template-renders string leaves. When NestedRender
// is set, a string leaf is re-rendered until rendering produces no change
// (fixed point) or no more Liquid tags remain, capped at 10 passes to bound
// pathological templates.
func (s *setContextStep) renderValue(value any, rc *runtime.Context) (any, error) {
	switch v := value.(type) {
	case string:
		rendered, err := s.deps.Renderer.Render(v, rc)
		if err != nil {
			return nil, err
		}
		if !s.cfg.NestedRender {
			return rendered, nil
		}
		const maxPasses = 10
		for i := 0; i < maxPasses && containsTags(rendered); i++ {
			next, err := s.deps.Renderer.Render(rendered, rc)
			if err != nil {
				return nil, err
			}
			if next == rendered {
				return rendered, nil
			}
			rendered = next
			if i == maxPasses-1 && containsTags(rendered) {
				return nil, runtime.NewFlowError(runtime.KindRenderError,
					"nested_render did not reach a fixed point within the pass cap", nil)
			}
		}
		return rendered, nil

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			rv, err := s.renderValue(elem, rc)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			rv, err := s.renderValue(elem, rc)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil

	default:
		return v, nil
	}
}

func containsTags(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '{' && (s[i+1] == '{' || s[i+1] == '%') {
			return true
		}
	}
	return false
}

func mergeValues(old, newVal any) any {
	switch o := old.(type) {
	case string:
		if n, ok := newVal.(string); ok {
			return o + n
		}
	case []any:
		if n, ok := newVal.([]any); ok {
			return append(append([]any{}, o...), n...)
		}
		return append(append([]any{}, o...), newVal)
	case map[string]any:
		if n, ok := newVal.(map[string]any); ok {
			out := make(map[string]any, len(o)+len(n))
			for k, v := range o {
				out[k] = v
			}
			for k, v := range n {
				out[k] = v
			}
			return out
		}
	}
	return []any{old, newVal}
}
