package steps

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sflowg/reciperun/runtime"
)

func init() {
	defaultRegistry.register("execute_recipe", newExecuteRecipeStep)
}

// ExecuteRecipeConfig is the decoded config for the execute_recipe step.
type ExecuteRecipeConfig struct {
	RecipePath       string         `json:"recipe_path" validate:"required"`
	ContextOverrides map[string]any `json:"context_overrides,omitempty"`
}

type executeRecipeStep struct {
	deps runtime.Deps
	cfg  ExecuteRecipeConfig
}

func newExecuteRecipeStep(deps runtime.Deps, raw map[string]any) (runtime.Step, error) {
	var cfg ExecuteRecipeConfig
	if err := runtime.DecodeStepConfig(raw, &cfg); err != nil {
		return nil, runtime.NewFlowError(runtime.KindConfigError, err.Error(), err)
	}
	return &executeRecipeStep{deps: deps, cfg: cfg}, nil
}

func (s *executeRecipeStep) Execute(ctx context.Context, rc *runtime.Context) error {
	path, err := s.deps.Renderer.Render(s.cfg.RecipePath, rc)
	if err != nil {
		return err
	}

	for key, raw := range s.cfg.ContextOverrides {
		rendered, err := s.renderOverride(raw, rc)
		if err != nil {
			return err
		}
		rc.Set(key, rendered)
	}

	return s.deps.Executor.ExecuteNested(ctx, path, rc)
}

// renderOverride renders string leaves; a rendered string that parses as a
// JSON object or array is substituted with the parsed value instead of the
// literal string. Lists and maps are walked recursively; other types pass
// through unchanged.
func (s *executeRecipeStep) renderOverride(value any, rc *runtime.Context) (any, error) {
	switch v := value.(type) {
	case string:
		rendered, err := s.deps.Renderer.Render(v, rc)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(rendered)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed any
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed, nil
			}
		}
		return rendered, nil

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, elem := range v {
			rv, err := s.renderOverride(elem, rc)
			if err != nil {
				return nil, err
			}
			out[k] = rv
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			rv, err := s.renderOverride(elem, rc)
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
