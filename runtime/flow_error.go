package runtime

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a FlowError into the closed taxonomy a caller can
// switch on without string matching.
type ErrorKind string

const (
	KindConfigError     ErrorKind = "config-error"
	KindUnknownStep     ErrorKind = "unknown-step"
	KindParseError      ErrorKind = "parse-error"
	KindValidationError ErrorKind = "validation-error"
	KindMissingRecipe   ErrorKind = "missing-recipe"
	KindMissingFile     ErrorKind = "missing-file"
	KindRenderError     ErrorKind = "render-error"
	KindConditionError  ErrorKind = "condition-error"
	KindLoopInputError  ErrorKind = "loop-input-error"
	KindLoopError       ErrorKind = "loop-error"
	KindLLMError        ErrorKind = "llm-error"
	KindShellError      ErrorKind = "shell-error"
	KindMCPError        ErrorKind = "mcp-error"
	KindStepError       ErrorKind = "step-error"
)

// FlowError is the error type propagated out of a recipe execution. Each
// enclosing step prepends its own index/type to Path as the error unwinds,
// so the top-level caller sees the full path to the failing leaf.
type FlowError struct {
	Kind      ErrorKind
	Message   string
	StepType  string
	StepIndex int
	Source    string
	Cause     error
	Path      []StepRef
}

// StepRef identifies one step on the path from the recipe root to the
// step that ultimately failed.
type StepRef struct {
	Index int
	Type  string
}

func (e *FlowError) Error() string {
	if e.StepType != "" {
		return fmt.Sprintf("[%s] step %d (%s): %s", e.Kind, e.StepIndex, e.StepType, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewFlowError builds a FlowError wrapping cause (which may be nil).
func NewFlowError(kind ErrorKind, message string, cause error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Cause: cause}
}

// WithStep annotates the error with the step that raised or propagated it
// and prepends it to the recorded path.
func (e *FlowError) WithStep(index int, stepType string) *FlowError {
	e.StepIndex = index
	e.StepType = stepType
	e.Path = append([]StepRef{{Index: index, Type: stepType}}, e.Path...)
	return e
}

// AsFlowError unwraps err looking for a *FlowError, falling back to wrapping
// it in a new FlowError of fallbackKind when the cause is opaque.
func AsFlowError(err error, fallbackKind ErrorKind) *FlowError {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe
	}
	return NewFlowError(fallbackKind, err.Error(), err)
}
