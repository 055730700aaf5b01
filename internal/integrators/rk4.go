package integrators

import (
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/tensor"
)

// RK4 is the classic fourth-order Runge-Kutta scheme.
type RK4 struct{}

func NewRK4() *RK4 {
	return &RK4{}
}

func (r *RK4) Name() string { return "rk4" }

func (r *RK4) Step(sys dynamo.System, y dynamo.State, t, dt float64) (dynamo.State, error) {
	k1, err := sys.Derive(y, t)
	if err != nil {
		return nil, err
	}

	scratch, err := advance(y, dt*0.5, []float64{1}, []dynamo.State{k1})
	if err != nil {
		return nil, err
	}
	k2, err := sys.Derive(scratch, t+dt*0.5)
	if err != nil {
		return nil, err
	}

	if scratch, err = advance(y, dt*0.5, []float64{1}, []dynamo.State{k2}); err != nil {
		return nil, err
	}
	k3, err := sys.Derive(scratch, t+dt*0.5)
	if err != nil {
		return nil, err
	}

	if scratch, err = advance(y, dt, []float64{1}, []dynamo.State{k3}); err != nil {
		return nil, err
	}
	k4, err := sys.Derive(scratch, t+dt)
	if err != nil {
		return nil, err
	}

	return advance(y, dt/6.0, []float64{1, 2, 2, 1}, []dynamo.State{k1, k2, k3, k4})
}

// advance returns y + h*sum(coeffs[i]*ks[i]) field by field.
func advance(y dynamo.State, h float64, coeffs []float64, ks []dynamo.State) (dynamo.State, error) {
	out := make(dynamo.State, len(y))
	stage := make([]*tensor.Tensor, len(ks))
	for i := range y {
		for j, k := range ks {
			stage[j] = k[i]
		}
		v, err := tensor.Combine(y[i], h, coeffs, stage)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
