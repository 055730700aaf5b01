package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/gemsim/internal/sweep"
)

// BifurcationPoint holds the distinct maxima reached for one parameter
// value.
type BifurcationPoint struct {
	Param  float64
	Values []float64
}

// BifurcationDiagram reads a sweep over a single parameter and records,
// for each value, the distinct local maxima of field after the first
// transient slices. Maxima closer than 1e-3 are merged.
func BifurcationDiagram(res *sweep.Result, field string, transient int) ([]BifurcationPoint, error) {
	axes := res.Grid.Axes()
	if len(axes) != 1 {
		return nil, fmt.Errorf("analysis: bifurcation needs a one-axis sweep, got %d axes", len(axes))
	}

	out := make([]BifurcationPoint, 0, res.Grid.Len())
	for i := 0; i < res.Grid.Len(); i++ {
		series, err := res.Series(field, i)
		if err != nil {
			return nil, err
		}
		if transient < len(series) {
			series = series[transient:]
		} else {
			series = nil
		}

		seen := make(map[int64]bool)
		var values []float64
		for _, k := range Peaks(series) {
			key := int64(math.Round(series[k] * 1000))
			if !seen[key] {
				seen[key] = true
				values = append(values, series[k])
			}
		}
		sort.Float64s(values)
		out = append(out, BifurcationPoint{Param: res.Grid.Point(i)[axes[0].Name], Values: values})
	}
	return out, nil
}
