package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/sim"
)

// FieldSummary aggregates one field of one parallel run over every
// element and every filled slice. Final is the element mean of the last
// filled slice.
type FieldSummary struct {
	Field    string
	Kind     dynamo.Kind
	Parallel int
	Min      float64
	Max      float64
	Mean     float64
	Final    float64
}

// Summary reports every field of inst in registry order. A failed run is
// summarised over the slices it filled.
func Summary(inst *sim.Instance) ([]FieldSummary, error) {
	filled := inst.Filled()
	if filled == 0 {
		return nil, fmt.Errorf("analysis: instance %s has no filled slices", inst.ID())
	}

	var out []FieldSummary
	for _, name := range inst.Model().Registry().Names() {
		tr, err := inst.Trajectory(name)
		if err != nil {
			return nil, err
		}
		s := tr.Shape()
		for p := 0; p < s[0]; p++ {
			fs := FieldSummary{Field: name, Kind: tr.Kind(), Parallel: p, Min: math.Inf(1), Max: math.Inf(-1)}
			sum, count := 0.0, 0
			for t := 0; t < filled; t++ {
				slice := tr.Slice(t)
				last, lastN := 0.0, 0
				for r := 0; r < s[1]; r++ {
					for i := 0; i < s[2]; i++ {
						for j := 0; j < s[3]; j++ {
							v := slice.At(p, r, i, j)
							fs.Min = math.Min(fs.Min, v)
							fs.Max = math.Max(fs.Max, v)
							sum += v
							count++
							last += v
							lastN++
						}
					}
				}
				fs.Final = last / float64(lastN)
			}
			fs.Mean = sum / float64(count)
			out = append(out, fs)
		}
	}
	return out, nil
}

// VariationRate is the centred derivative of series divided by its value,
// with one-sided differences at both ends. Zero values yield NaN.
func VariationRate(series []float64, dt float64) []float64 {
	n := len(series)
	out := make([]float64, n)
	if n < 2 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	for t := range series {
		var d float64
		switch t {
		case 0:
			d = (series[1] - series[0]) / dt
		case n - 1:
			d = (series[n-1] - series[n-2]) / dt
		default:
			d = (series[t+1] - series[t-1]) / (2 * dt)
		}
		if series[t] == 0 {
			out[t] = math.NaN()
			continue
		}
		out[t] = d / series[t]
	}
	return out
}
