package analysis

import (
	"fmt"

	"github.com/san-kum/gemsim/internal/sim"
)

// Point is one sample of a two-field projection.
type Point struct {
	X, Y float64
}

func scalarSeries(inst *sim.Instance, name string, p int) ([]float64, error) {
	tr, err := inst.Trajectory(name)
	if err != nil {
		return nil, err
	}
	s := tr.Shape()
	if p < 0 || p >= s[0] {
		return nil, fmt.Errorf("analysis: parallel index %d out of range [0, %d)", p, s[0])
	}
	if s[1]*s[2]*s[3] != 1 {
		return nil, fmt.Errorf("analysis: %q is not scalar (%s)", name, s)
	}
	return tr.Series(p, 0, 0, 0)[:inst.Filled()], nil
}

// PhasePortrait pairs the values of two scalar fields of parallel run p
// over the filled slices.
func PhasePortrait(inst *sim.Instance, xName, yName string, p int) ([]Point, error) {
	xs, err := scalarSeries(inst, xName, p)
	if err != nil {
		return nil, err
	}
	ys, err := scalarSeries(inst, yName, p)
	if err != nil {
		return nil, err
	}
	points := make([]Point, len(xs))
	for i := range xs {
		points[i] = Point{X: xs[i], Y: ys[i]}
	}
	return points, nil
}

// PoincareSection records (xName, yName) each time cross passes level
// upwards, interpolating linearly between the two slices around the
// crossing.
func PoincareSection(inst *sim.Instance, cross string, level float64, xName, yName string, p int) ([]Point, error) {
	cs, err := scalarSeries(inst, cross, p)
	if err != nil {
		return nil, err
	}
	portrait, err := PhasePortrait(inst, xName, yName, p)
	if err != nil {
		return nil, err
	}

	var section []Point
	for t := 1; t < len(cs); t++ {
		prev, curr := cs[t-1], cs[t]
		if !(prev < level && curr >= level) {
			continue
		}
		frac := (level - prev) / (curr - prev)
		a, b := portrait[t-1], portrait[t]
		section = append(section, Point{
			X: a.X + frac*(b.X-a.X),
			Y: a.Y + frac*(b.Y-a.Y),
		})
	}
	return section, nil
}
