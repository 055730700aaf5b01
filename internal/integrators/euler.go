package integrators

import "github.com/san-kum/gemsim/internal/dynamo"

// Euler is the explicit first-order scheme value[t+1] = value[t] + dt*f.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Name() string { return "euler" }

func (e *Euler) Step(sys dynamo.System, y dynamo.State, t, dt float64) (dynamo.State, error) {
	k, err := sys.Derive(y, t)
	if err != nil {
		return nil, err
	}
	return advance(y, dt, []float64{1}, []dynamo.State{k})
}
