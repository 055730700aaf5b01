package sweep

import (
	"context"
	"errors"
	"math"
)

// Objective scores point i of a sweep; lower is better.
type Objective func(res *Result, i int) (float64, error)

// GridSearch runs the grid and returns the point minimising objective.
// Points whose run or objective failed are skipped.
type GridSearch struct {
	runner *Runner
	grid   *Grid
}

func NewGridSearch(r *Runner, g *Grid) *GridSearch {
	return &GridSearch{runner: r, grid: g}
}

var ErrNoCandidate = errors.New("sweep: no grid point could be scored")

func (g *GridSearch) Search(ctx context.Context, base map[string]any, objective Objective) (map[string]float64, float64, error) {
	res, err := g.runner.Run(ctx, g.grid, base)
	if res == nil {
		return nil, 0, err
	}

	best := math.Inf(1)
	var bestParams map[string]float64
	for i := 0; i < g.grid.Len(); i++ {
		val, err := objective(res, i)
		if err != nil || math.IsNaN(val) {
			continue
		}
		if val < best {
			best = val
			bestParams = g.grid.Point(i)
		}
	}
	if bestParams == nil {
		if err == nil {
			err = ErrNoCandidate
		}
		return nil, 0, err
	}
	return bestParams, best, nil
}

// FinalValue scores a point by the last value of a scalar field.
func FinalValue(name string) Objective {
	return func(res *Result, i int) (float64, error) {
		s, err := res.Series(name, i)
		if err != nil {
			return 0, err
		}
		return s[len(s)-1], nil
	}
}
