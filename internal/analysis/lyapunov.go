package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/sim"
)

// saturation bounds the separation used for the fit; past it the two runs
// no longer stay in the linear regime.
const saturation = 1.0

// LyapunovExponent estimates the largest Lyapunov exponent. The model runs
// twice side by side on the parallel axis, the second copy with the
// scalar differential field shifted by eps, and the exponent is the slope
// of log separation over time until the separation saturates. A positive
// value indicates chaos.
func LyapunovExponent(
	ctx context.Context,
	m *sim.Model,
	s *sim.Simulator,
	overrides map[string]any,
	field string,
	eps float64,
	steps int,
	dt float64,
) (float64, error) {
	reg := m.Registry()
	f, err := reg.Field(field)
	if err != nil {
		return 0, err
	}
	if f.Kind() != dynamo.KindDifferential || reg.Dims(field) != expr.ScalarDims {
		return 0, fmt.Errorf("analysis: %q is not a scalar differential field", field)
	}
	if eps == 0 {
		return 0, errors.New("analysis: perturbation must be non-zero")
	}

	probe, err := sim.Instantiate(m, overrides, sim.RunShape{Steps: 1})
	if err != nil {
		return 0, err
	}
	if probe.Shape().Parallel != 1 {
		return 0, fmt.Errorf("analysis: overrides already span %d parallel runs", probe.Shape().Parallel)
	}
	tr, err := probe.Trajectory(field)
	if err != nil {
		return 0, err
	}
	x0 := tr.At(0, 0, 0, 0, 0)

	pair := make(map[string]any, len(overrides)+1)
	for k, v := range overrides {
		pair[k] = v
	}
	pair[field] = []float64{x0, x0 + eps}

	inst, err := sim.Instantiate(m, pair, sim.RunShape{Steps: steps, Parallel: 2})
	if err != nil {
		return 0, err
	}
	if _, err := s.Run(ctx, inst, sim.Config{Dt: dt}); err != nil {
		return 0, err
	}

	var diffs []*sim.Trajectory
	for _, d := range reg.Differentials() {
		tr, err := inst.Trajectory(d.Name())
		if err != nil {
			return 0, err
		}
		diffs = append(diffs, tr)
	}

	times := inst.Times()
	var xs, ys []float64
	d0 := 0.0
	for t := 0; t < steps; t++ {
		sep := separation(diffs, t)
		if t == 0 {
			d0 = sep
		}
		if sep <= 0 || sep > saturation {
			if t > 0 {
				break
			}
			continue
		}
		xs = append(xs, times[t])
		ys = append(ys, math.Log(sep/d0))
	}
	if len(xs) < 2 {
		return 0, errors.New("analysis: separation saturated before two samples")
	}
	return slope(xs, ys), nil
}

func separation(trs []*sim.Trajectory, t int) float64 {
	sum := 0.0
	for _, tr := range trs {
		s := tr.Shape()
		slice := tr.Slice(t)
		for r := 0; r < s[1]; r++ {
			for i := 0; i < s[2]; i++ {
				for j := 0; j < s[3]; j++ {
					d := slice.At(1, r, i, j) - slice.At(0, r, i, j)
					sum += d * d
				}
			}
		}
	}
	return math.Sqrt(sum)
}

// slope is the least-squares gradient of ys against xs.
func slope(xs, ys []float64) float64 {
	n := float64(len(xs))
	var sx, sy, sxx, sxy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
		sxx += xs[i] * xs[i]
		sxy += xs[i] * ys[i]
	}
	return (n*sxy - sx*sy) / (n*sxx - sx*sx)
}
