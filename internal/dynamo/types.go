package dynamo

import "github.com/san-kum/gemsim/internal/tensor"

// State is the value of every differential field, in registry order.
type State []*tensor.Tensor

func (s State) Clone() State {
	c := make(State, len(s))
	for i, t := range s {
		c[i] = t.Clone()
	}
	return c
}

// IsValid reports whether every element of every tensor is finite.
func (s State) IsValid() bool {
	return s.FirstInvalid() < 0
}

// FirstInvalid returns the index of the first tensor holding a NaN or Inf,
// or -1.
func (s State) FirstInvalid() int {
	for i, t := range s {
		if !t.IsFinite() {
			return i
		}
	}
	return -1
}

// System produces the time derivative of every differential field.
type System interface {
	Derive(y State, t float64) (State, error)
}

// Integrator advances a System by one explicit step.
type Integrator interface {
	Name() string
	Step(sys System, y State, t, dt float64) (State, error)
}

// Observer is notified after each completed time slice.
type Observer interface {
	OnStep(step int, t float64, y State)
}
