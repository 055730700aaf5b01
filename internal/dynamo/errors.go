package dynamo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/gemsim/internal/expr"
)

// Domain errors. Every typed error below unwraps to one of these.
var (
	ErrFieldConflict           = errors.New("dynamo: conflicting field declarations")
	ErrMissingValue            = errors.New("dynamo: field has no value")
	ErrAmbiguousValue          = errors.New("dynamo: field has both a value and an equation")
	ErrMissingInitialCondition = errors.New("dynamo: differential field has no initial value")
	ErrUnresolvedArgument      = errors.New("dynamo: unresolved equation argument")
	ErrUnknownSize             = errors.New("dynamo: unknown dimension group")
	ErrShapeMismatch           = errors.New("dynamo: shape mismatch")

	ErrCyclicDependency = errors.New("dynamo: cyclic dependency between fields")
	ErrIncompleteOrder  = errors.New("dynamo: explicit order does not match the statevar fields")

	ErrUnknownPresetField = errors.New("dynamo: override names no field")
	ErrInvalidOverride    = errors.New("dynamo: field cannot be overridden")
	ErrUnknownField       = errors.New("dynamo: unknown field")
	ErrUnknownPreset      = errors.New("dynamo: unknown preset")
	ErrUnknownModel       = errors.New("dynamo: unknown model")
	ErrUnknownScheme      = errors.New("dynamo: unknown integration scheme")

	// ErrNumericDivergence indicates a NaN or Inf appeared during a run.
	ErrNumericDivergence = errors.New("dynamo: simulation diverged (NaN or Inf detected)")

	// ErrNotRunnable indicates a run was requested on an instance that is
	// not in the INITIALIZED state.
	ErrNotRunnable = errors.New("dynamo: instance is not runnable")
)

type FieldConflictError struct {
	Name  string
	Kinds []Kind
}

func (e *FieldConflictError) Error() string {
	kinds := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		kinds[i] = k.String()
	}
	return fmt.Sprintf("dynamo: field %q declared more than once (%s) without override", e.Name, strings.Join(kinds, ", "))
}

func (e *FieldConflictError) Unwrap() error { return ErrFieldConflict }

type MissingValueError struct {
	Field string
	Kind  Kind
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("dynamo: %s %q has neither a value nor an equation", e.Kind, e.Field)
}

func (e *MissingValueError) Unwrap() error { return ErrMissingValue }

type AmbiguousValueError struct {
	Field string
}

func (e *AmbiguousValueError) Error() string {
	return fmt.Sprintf("dynamo: field %q has both a constant value and an equation", e.Field)
}

func (e *AmbiguousValueError) Unwrap() error { return ErrAmbiguousValue }

type MissingInitialConditionError struct {
	Field string
}

func (e *MissingInitialConditionError) Error() string {
	return fmt.Sprintf("dynamo: differential field %q has no initial value", e.Field)
}

func (e *MissingInitialConditionError) Unwrap() error { return ErrMissingInitialCondition }

// UnresolvedArgumentError reports an equation argument that names no field,
// has no default, or is not allowed where it appears.
type UnresolvedArgumentError struct {
	Field      string
	Arg        string
	Reason     string
	Suggestion string
}

func (e *UnresolvedArgumentError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no such field and no default"
	}
	return fmt.Sprintf("dynamo: field %q: argument %q: %s%s", e.Field, e.Arg, reason, didYouMean(e.Suggestion))
}

func (e *UnresolvedArgumentError) Unwrap() error { return ErrUnresolvedArgument }

type UnknownSizeError struct {
	Field      string
	Size       string
	Suggestion string
}

func (e *UnknownSizeError) Error() string {
	return fmt.Sprintf("dynamo: field %q uses undeclared dimension group %q%s", e.Field, e.Size, didYouMean(e.Suggestion))
}

func (e *UnknownSizeError) Unwrap() error { return ErrUnknownSize }

// ShapeMismatchError reports a value or equation whose extent does not fit
// the field's declared dimension groups.
type ShapeMismatchError struct {
	Field    string
	Declared expr.Dims
	Got      string
	Err      error
}

func (e *ShapeMismatchError) Error() string {
	msg := fmt.Sprintf("dynamo: field %q declared %s", e.Field, e.Declared)
	if e.Got != "" {
		msg += ", got " + e.Got
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ShapeMismatchError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrShapeMismatch, e.Err}
	}
	return []error{ErrShapeMismatch}
}

// CyclicDependencyError lists the fields that could not be ordered. Cycle
// is one closed path among them, first element repeated at the end.
type CyclicDependencyError struct {
	Residual []string
	Cycle    []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("dynamo: dependency cycle: %s", strings.Join(e.Cycle, " -> "))
	}
	return fmt.Sprintf("dynamo: cannot order fields: %s", strings.Join(e.Residual, ", "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }

type IncompleteOrderError struct {
	Missing   []string
	Extra     []string
	Duplicate []string
}

func (e *IncompleteOrderError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, "not statevars "+strings.Join(e.Extra, ", "))
	}
	if len(e.Duplicate) > 0 {
		parts = append(parts, "repeated "+strings.Join(e.Duplicate, ", "))
	}
	return "dynamo: invalid explicit order: " + strings.Join(parts, "; ")
}

func (e *IncompleteOrderError) Unwrap() error { return ErrIncompleteOrder }

type UnknownPresetFieldError struct {
	Key        string
	Suggestion string
}

func (e *UnknownPresetFieldError) Error() string {
	return fmt.Sprintf("dynamo: override %q does not name a field%s", e.Key, didYouMean(e.Suggestion))
}

func (e *UnknownPresetFieldError) Unwrap() error { return ErrUnknownPresetField }

type InvalidOverrideError struct {
	Field string
	Kind  Kind
}

func (e *InvalidOverrideError) Error() string {
	return fmt.Sprintf("dynamo: %s %q is derived every step and cannot be overridden", e.Kind, e.Field)
}

func (e *InvalidOverrideError) Unwrap() error { return ErrInvalidOverride }

type UnknownFieldError struct {
	Name       string
	Suggestion string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("dynamo: unknown field %q%s", e.Name, didYouMean(e.Suggestion))
}

func (e *UnknownFieldError) Unwrap() error { return ErrUnknownField }

type UnknownPresetError struct {
	Model      string
	Name       string
	Suggestion string
}

func (e *UnknownPresetError) Error() string {
	return fmt.Sprintf("dynamo: model %q has no preset %q%s", e.Model, e.Name, didYouMean(e.Suggestion))
}

func (e *UnknownPresetError) Unwrap() error { return ErrUnknownPreset }

type UnknownModelError struct {
	Name       string
	Suggestion string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("dynamo: unknown model %q%s", e.Name, didYouMean(e.Suggestion))
}

func (e *UnknownModelError) Unwrap() error { return ErrUnknownModel }

type UnknownSchemeError struct {
	Name       string
	Suggestion string
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("dynamo: unknown integration scheme %q%s", e.Name, didYouMean(e.Suggestion))
}

func (e *UnknownSchemeError) Unwrap() error { return ErrUnknownScheme }

// NumericDivergenceError identifies the first non-finite value of a run.
// Slices before Step hold finite values.
type NumericDivergenceError struct {
	Field string
	Step  int
	Time  float64
}

func (e *NumericDivergenceError) Error() string {
	return fmt.Sprintf("dynamo: field %q is not finite at step %d (t=%.4f)", e.Field, e.Step, e.Time)
}

func (e *NumericDivergenceError) Unwrap() error { return ErrNumericDivergence }

// SimulationError wraps an error with simulation context.
type SimulationError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *SimulationError) Error() string {
	return fmt.Sprintf("step %d (t=%.4f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *SimulationError) Unwrap() error {
	return e.Wrapped
}
