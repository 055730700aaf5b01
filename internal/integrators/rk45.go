package integrators

import (
	"math"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/tensor"
)

// Tableau is an explicit Runge-Kutta scheme given by its Butcher tableau.
// E holds the error weights (b - b*) of an embedded pair and is nil when
// the scheme has no error estimate.
type Tableau struct {
	ID string
	C  []float64
	A  [][]float64
	B  []float64
	E  []float64
}

// RK45 is the Dormand-Prince 5(4) pair run at a fixed step. The embedded
// fourth-order solution only feeds the local error estimate.
func NewRK45() *Tableau {
	return &Tableau{
		ID: "rk45",
		C:  []float64{0, 1.0 / 5.0, 3.0 / 10.0, 4.0 / 5.0, 8.0 / 9.0, 1, 1},
		A: [][]float64{
			{},
			{1.0 / 5.0},
			{3.0 / 40.0, 9.0 / 40.0},
			{44.0 / 45.0, -56.0 / 15.0, 32.0 / 9.0},
			{19372.0 / 6561.0, -25360.0 / 2187.0, 64448.0 / 6561.0, -212.0 / 729.0},
			{9017.0 / 3168.0, -355.0 / 33.0, 46732.0 / 5247.0, 49.0 / 176.0, -5103.0 / 18656.0},
			{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0},
		},
		B: []float64{35.0 / 384.0, 0, 500.0 / 1113.0, 125.0 / 192.0, -2187.0 / 6784.0, 11.0 / 84.0, 0},
		E: []float64{
			35.0/384.0 - 5179.0/57600.0,
			0,
			500.0/1113.0 - 7571.0/16695.0,
			125.0/192.0 - 393.0/640.0,
			-2187.0/6784.0 + 92097.0/339200.0,
			11.0/84.0 - 187.0/2100.0,
			-1.0 / 40.0,
		},
	}
}

// NewRK2 is Heun's method.
func NewRK2() *Tableau {
	return &Tableau{
		ID: "rk2",
		C:  []float64{0, 1},
		A:  [][]float64{{}, {1}},
		B:  []float64{0.5, 0.5},
	}
}

func (tb *Tableau) Name() string { return tb.ID }

func (tb *Tableau) Step(sys dynamo.System, y dynamo.State, t, dt float64) (dynamo.State, error) {
	next, _, err := tb.StepWithError(sys, y, t, dt)
	return next, err
}

// StepWithError also returns the largest scaled local error estimate over
// all elements, or 0 when the tableau has no embedded pair.
func (tb *Tableau) StepWithError(sys dynamo.System, y dynamo.State, t, dt float64) (dynamo.State, float64, error) {
	ks := make([]dynamo.State, len(tb.C))
	for i := range tb.C {
		stage := y
		if i > 0 {
			var err error
			if stage, err = advance(y, dt, tb.A[i], ks[:i]); err != nil {
				return nil, 0, err
			}
		}
		k, err := sys.Derive(stage, t+tb.C[i]*dt)
		if err != nil {
			return nil, 0, err
		}
		ks[i] = k
	}

	next, err := advance(y, dt, tb.B, ks)
	if err != nil || tb.E == nil {
		return next, 0, err
	}

	errMax := 0.0
	zero := make(dynamo.State, len(y))
	for i := range y {
		zero[i] = tensor.New(y[i].Shape())
	}
	est, err := advance(zero, dt, tb.E, ks)
	if err != nil {
		return nil, 0, err
	}
	for i := range y {
		k1, err := ks[0][i].BroadcastTo(y[i].Shape())
		if err != nil {
			return nil, 0, err
		}
		for j, e := range est[i].Data() {
			scale := math.Abs(y[i].Data()[j]) + math.Abs(dt*k1.Data()[j]) + 1e-10
			errMax = math.Max(errMax, math.Abs(e)/scale)
		}
	}
	return next, errMax, nil
}
