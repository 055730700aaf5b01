package sweep

import (
	"fmt"
	"strconv"
	"strings"
)

// Axis is one swept parameter.
type Axis struct {
	Name   string
	Values []float64
}

// Grid is the cartesian product of its axes. Points are numbered with the
// last axis varying fastest.
type Grid struct {
	axes []Axis
}

func NewGrid(axes ...Axis) (*Grid, error) {
	seen := make(map[string]bool, len(axes))
	for _, a := range axes {
		if len(a.Values) == 0 {
			return nil, fmt.Errorf("sweep: axis %q has no values", a.Name)
		}
		if seen[a.Name] {
			return nil, fmt.Errorf("sweep: axis %q given twice", a.Name)
		}
		seen[a.Name] = true
	}
	return &Grid{axes: axes}, nil
}

// ParseAxis reads "name=v1,v2,..." or "name=start:stop:count".
func ParseAxis(s string) (Axis, error) {
	name, spec, ok := strings.Cut(s, "=")
	if !ok || name == "" || spec == "" {
		return Axis{}, fmt.Errorf("sweep: axis %q is not name=values", s)
	}
	if parts := strings.Split(spec, ":"); len(parts) == 3 {
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 1 {
			return Axis{}, fmt.Errorf("sweep: axis %q: bad range %q", name, spec)
		}
		return Axis{Name: name, Values: Linspace(lo, hi, n)}, nil
	}

	var values []float64
	for _, p := range strings.Split(spec, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Axis{}, fmt.Errorf("sweep: axis %q: %w", name, err)
		}
		values = append(values, v)
	}
	return Axis{Name: name, Values: values}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n == 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

func (g *Grid) Axes() []Axis { return g.axes }

// Len is the number of points.
func (g *Grid) Len() int {
	n := 1
	for _, a := range g.axes {
		n *= len(a.Values)
	}
	return n
}

// Point returns the parameter values of point i.
func (g *Grid) Point(i int) map[string]float64 {
	p := make(map[string]float64, len(g.axes))
	for k := len(g.axes) - 1; k >= 0; k-- {
		a := g.axes[k]
		p[a.Name] = a.Values[i%len(a.Values)]
		i /= len(a.Values)
	}
	return p
}

// Overrides zips points [start, end) into one list per axis, ready to
// fill the parallel axis of a single instance.
func (g *Grid) Overrides(start, end int) map[string]any {
	out := make(map[string]any, len(g.axes))
	cols := make(map[string][]float64, len(g.axes))
	for i := start; i < end; i++ {
		for name, v := range g.Point(i) {
			cols[name] = append(cols[name], v)
		}
	}
	for name, vs := range cols {
		out[name] = vs
	}
	return out
}
