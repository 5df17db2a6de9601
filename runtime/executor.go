package runtime

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Executor dispatches a Recipe's steps in sequence against a Registry of
// step factories. It is stateless and safe to share across concurrent
// executions; control-flow steps hold a reference to it so they can recurse
// into sub-recipes, branches, and loop/parallel bodies.
type Executor struct {
	Logger   *slog.Logger
	Registry *Registry
	Renderer *Renderer
}

// NewExecutor wires a ready-to-use Executor. logger may be nil, in which
// case slog.Default() is used.
func NewExecutor(logger *slog.Logger, registry *Registry, renderer *Renderer) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{Logger: logger, Registry: registry, Renderer: renderer}
}

// Execute resolves source into a Recipe and runs its steps in order against
// rc, stopping at the first failure. Sibling steps are iterated with an
// explicit loop rather than recursion, so a long flat recipe never grows
// the call stack; recursion only happens across nesting levels, driven by
// control-flow steps re-entering Execute for their own sub-recipes.
func (e *Executor) Execute(ctx context.Context, source any, rc *Context) error {
	runID := uuid.NewString()

	recipe, err := LoadRecipe(source)
	if err != nil {
		return err
	}
	applyEnvMask(rc, recipe.EnvMask)

	deps := Deps{Logger: e.Logger, Renderer: e.Renderer, Executor: e}

	for i, def := range recipe.Steps {
		if err := ctx.Err(); err != nil {
			return NewFlowError(KindStepError, "execution cancelled", err).WithStep(i, def.Type)
		}

		e.Logger.DebugContext(ctx, "executing step", "run_id", runID, "index", i, "type", def.Type)

		step, err := e.Registry.New(deps, def.Type, def.Config)
		if err != nil {
			return AsFlowError(err, KindUnknownStep).WithStep(i, def.Type)
		}

		if err := step.Execute(ctx, rc); err != nil {
			fe := AsFlowError(err, KindStepError)
			return fe.WithStep(i, def.Type)
		}
	}

	return nil
}

// applyEnvMask surfaces the named environment variables into rc's config at
// recipe-load time. Names with no set environment variable are ignored.
func applyEnvMask(rc *Context, names []string) {
	for _, name := range names {
		if v, ok := os.LookupEnv(name); ok {
			rc.setConfig(name, v)
		}
	}
}

// ExecuteNested runs source as a sub-recipe using the same Registry and
// Renderer but a caller-supplied Context (typically a clone), returning any
// error unwrapped so the caller can attach its own step path.
func (e *Executor) ExecuteNested(ctx context.Context, source any, rc *Context) error {
	return e.Execute(ctx, source, rc)
}
