package dynamo

import (
	"fmt"

	"github.com/san-kum/gemsim/internal/expr"
)

type Kind int

const (
	KindParameter Kind = iota
	KindDifferential
	KindStatevar
)

var kindNames = [...]string{"parameter", "differential", "statevar"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Meta is advisory documentation. It never affects computation.
type Meta struct {
	Com        string `yaml:"com,omitempty"`
	Units      string `yaml:"units,omitempty"`
	Symbol     string `yaml:"symbol,omitempty"`
	Definition string `yaml:"definition,omitempty"`
}

// FieldSpec is a field as declared, before validation. Value and Initial
// hold anything ParseLiteral accepts.
type FieldSpec struct {
	Name     string
	Kind     Kind
	Value    any
	Equation *expr.Equation
	Initial  any
	Size     []string
	Meta     Meta
	// Override lets this declaration replace an earlier one of the same
	// name in the same definition.
	Override bool
}

// Field is one of *Parameter, *Differential or *Statevar.
type Field interface {
	Name() string
	Kind() Kind
	Size() []string
	Meta() Meta
	// Rule is the equation producing the field, nil for constant
	// parameters.
	Rule() *expr.Equation
	field()
}

type header struct {
	name string
	size []string
	meta Meta
}

func (h *header) Name() string   { return h.name }
func (h *header) Size() []string { return h.size }
func (h *header) Meta() Meta     { return h.meta }
func (h *header) field()         {}

// Parameter is either a constant Value or an Equation over other
// parameters, never both.
type Parameter struct {
	header
	Value    *Literal
	Equation *expr.Equation
}

func (p *Parameter) Kind() Kind           { return KindParameter }
func (p *Parameter) Rule() *expr.Equation { return p.Equation }

type Differential struct {
	header
	Equation *expr.Equation
	Initial  *Literal
}

func (d *Differential) Kind() Kind           { return KindDifferential }
func (d *Differential) Rule() *expr.Equation { return d.Equation }

type Statevar struct {
	header
	Equation *expr.Equation
}

func (s *Statevar) Kind() Kind           { return KindStatevar }
func (s *Statevar) Rule() *expr.Equation { return s.Equation }

// NewField validates spec and returns the matching concrete field.
func NewField(spec FieldSpec) (Field, error) {
	h := header{name: spec.Name, size: spec.Size, meta: spec.Meta}
	switch spec.Kind {
	case KindParameter:
		switch {
		case spec.Value != nil && spec.Equation != nil:
			return nil, &AmbiguousValueError{Field: spec.Name}
		case spec.Equation != nil:
			return &Parameter{header: h, Equation: spec.Equation}, nil
		case spec.Value != nil:
			lit, err := ParseLiteral(spec.Value)
			if err != nil {
				return nil, fmt.Errorf("dynamo: field %q: %w", spec.Name, err)
			}
			return &Parameter{header: h, Value: lit}, nil
		default:
			return nil, &MissingValueError{Field: spec.Name, Kind: spec.Kind}
		}

	case KindDifferential:
		if spec.Value != nil {
			return nil, &AmbiguousValueError{Field: spec.Name}
		}
		if spec.Equation == nil {
			return nil, &MissingValueError{Field: spec.Name, Kind: spec.Kind}
		}
		if spec.Initial == nil {
			return nil, &MissingInitialConditionError{Field: spec.Name}
		}
		lit, err := ParseLiteral(spec.Initial)
		if err != nil {
			return nil, fmt.Errorf("dynamo: field %q: initial: %w", spec.Name, err)
		}
		return &Differential{header: h, Equation: spec.Equation, Initial: lit}, nil

	case KindStatevar:
		if spec.Value != nil || spec.Initial != nil {
			return nil, &AmbiguousValueError{Field: spec.Name}
		}
		if spec.Equation == nil {
			return nil, &MissingValueError{Field: spec.Name, Kind: spec.Kind}
		}
		return &Statevar{header: h, Equation: spec.Equation}, nil

	default:
		return nil, fmt.Errorf("dynamo: field %q: %v", spec.Name, spec.Kind)
	}
}
