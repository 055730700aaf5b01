package sim

import (
	"fmt"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/tensor"
)

// system adapts an instance to dynamo.System. Every Derive call evaluates
// the statevars for the given state, so intermediate stages of higher-order
// schemes see consistent derived values.
type system struct {
	inst *Instance

	// primed holds the statevars already computed for the state at the
	// current slice, keyed by identity of that state.
	primed     dynamo.State
	primedVars map[string]*tensor.Tensor
	// last holds the statevars of the latest primed slice. lag is the
	// previous slice's set, read by lagged fields of an explicit order
	// throughout the current step.
	last, lag map[string]*tensor.Tensor
}

func newSystem(inst *Instance) *system {
	return &system{inst: inst}
}

type bindings struct {
	values map[string]*tensor.Tensor
	self   *tensor.Tensor
}

func (b *bindings) Lookup(name string) (*tensor.Tensor, bool) {
	v, ok := b.values[name]
	return v, ok
}

func (b *bindings) Self() (*tensor.Tensor, bool) { return b.self, b.self != nil }

func (s *system) baseValues(y dynamo.State) map[string]*tensor.Tensor {
	reg := s.inst.model.reg
	values := make(map[string]*tensor.Tensor, reg.Len())
	for name, v := range s.inst.params {
		values[name] = v
	}
	for i, name := range s.inst.diffs {
		values[name] = y[i]
	}
	return values
}

// statevars evaluates every statevar in resolved order on top of values.
// The returned error is a *dynamo.NumericDivergenceError when check is set
// and a result is not finite.
func (s *system) statevars(values map[string]*tensor.Tensor, check bool) (map[string]*tensor.Tensor, error) {
	m := s.inst.model
	vars := make(map[string]*tensor.Tensor, len(m.order))
	if len(m.lagged) > 0 {
		// Statevars read before their turn see the previous slice, or
		// zero on the first one.
		for _, name := range m.order {
			if prev, ok := s.lag[name]; ok {
				values[name] = prev
			} else {
				values[name] = tensor.New(s.inst.fieldShape(name))
			}
		}
	}
	b := &bindings{values: values}
	for _, name := range m.order {
		f := mustLookup(m.reg, name)
		v, err := f.Rule().Eval(b)
		if err != nil {
			return nil, fmt.Errorf("statevar %q: %w", name, err)
		}
		if check && !v.IsFinite() {
			return nil, &dynamo.NumericDivergenceError{Field: name}
		}
		values[name] = v
		vars[name] = v
	}
	return vars, nil
}

// prime computes and stores the statevars of slice t.
func (s *system) prime(y dynamo.State, t int) error {
	s.lag = s.last
	vars, err := s.statevars(s.baseValues(y), true)
	if err != nil {
		return err
	}
	for name, v := range vars {
		if err := s.inst.trajs[name].Slice(t).CopyFrom(v); err != nil {
			return &dynamo.ShapeMismatchError{Field: name, Declared: s.inst.model.reg.Dims(name), Got: v.Shape().String(), Err: err}
		}
	}
	s.primed, s.primedVars = y, vars
	s.last = vars
	return nil
}

func (s *system) Derive(y dynamo.State, t float64) (dynamo.State, error) {
	values := s.baseValues(y)
	if sameState(y, s.primed) {
		for name, v := range s.primedVars {
			values[name] = v
		}
	} else {
		if _, err := s.statevars(values, false); err != nil {
			return nil, err
		}
	}

	b := &bindings{values: values}
	out := make(dynamo.State, len(y))
	for i, name := range s.inst.diffs {
		b.self = y[i]
		d, err := mustLookup(s.inst.model.reg, name).Rule().Eval(b)
		if err != nil {
			return nil, fmt.Errorf("differential %q: %w", name, err)
		}
		out[i] = d
	}
	return out, nil
}

func sameState(a, b dynamo.State) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
