package sweep

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/sim"
)

// Runner evaluates a model over every point of a grid. Points are packed
// onto the parallel axis of a few instances which run concurrently.
type Runner struct {
	model   *sim.Model
	sim     *sim.Simulator
	cfg     sim.Config
	steps   int
	regions int
	chunks  int
	log     *zap.Logger
}

type Option func(*Runner)

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithChunks sets how many instances the grid is split into; 0 means
// GOMAXPROCS.
func WithChunks(n int) Option {
	return func(r *Runner) { r.chunks = n }
}

func WithRegions(n int) Option {
	return func(r *Runner) { r.regions = n }
}

func NewRunner(m *sim.Model, s *sim.Simulator, cfg sim.Config, steps int, opts ...Option) *Runner {
	r := &Runner{model: m, sim: s, cfg: cfg, steps: steps, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.chunks <= 0 {
		r.chunks = runtime.GOMAXPROCS(0)
	}
	return r
}

// Result maps grid points back to the instance and parallel index that
// computed them.
type Result struct {
	Grid      *Grid
	Instances []*sim.Instance
	Ranges    [][2]int
}

// Locate returns the instance holding point i and its parallel index.
func (res *Result) Locate(i int) (*sim.Instance, int) {
	for k, rg := range res.Ranges {
		if i >= rg[0] && i < rg[1] {
			return res.Instances[k], i - rg[0]
		}
	}
	return nil, -1
}

// Series returns the time series of a scalar field at point i. It fails
// when the instance holding the point failed.
func (res *Result) Series(name string, i int) ([]float64, error) {
	inst, p := res.Locate(i)
	if inst == nil {
		return nil, fmt.Errorf("sweep: point %d out of range", i)
	}
	if err := inst.Err(); err != nil {
		return nil, err
	}
	tr, err := inst.Trajectory(name)
	if err != nil {
		return nil, err
	}
	return tr.Series(p, 0, 0, 0), nil
}

// Run builds one instance per chunk of the grid and runs them with an
// ensemble. base holds overrides shared by every point; grid values win.
// The returned error combines the failures of individual chunks; the
// result is usable for the chunks that completed.
func (r *Runner) Run(ctx context.Context, grid *Grid, base map[string]any) (*Result, error) {
	reg := r.model.Registry()
	for _, a := range grid.Axes() {
		f, ok := reg.Lookup(a.Name)
		if !ok {
			return nil, &dynamo.UnknownFieldError{Name: a.Name, Suggestion: dynamo.Suggest(a.Name, reg.Names())}
		}
		if f.Kind() == dynamo.KindStatevar {
			return nil, &dynamo.InvalidOverrideError{Field: a.Name, Kind: f.Kind()}
		}
		if d := reg.Dims(a.Name); d != expr.ScalarDims {
			return nil, fmt.Errorf("sweep: %q has extent %s; only scalar fields can be swept", a.Name, d)
		}
	}

	res := &Result{Grid: grid, Ranges: sim.SplitParallel(grid.Len(), r.chunks)}
	for _, rg := range res.Ranges {
		overrides := make(map[string]any, len(base)+len(grid.Axes()))
		for k, v := range base {
			overrides[k] = v
		}
		for k, v := range grid.Overrides(rg[0], rg[1]) {
			overrides[k] = v
		}
		inst, err := sim.Instantiate(r.model, overrides, sim.RunShape{
			Steps:    r.steps,
			Parallel: rg[1] - rg[0],
			Regions:  r.regions,
		})
		if err != nil {
			return nil, fmt.Errorf("sweep: points %d-%d: %w", rg[0], rg[1]-1, err)
		}
		res.Instances = append(res.Instances, inst)
	}

	r.log.Info("sweep started",
		zap.String("model", r.model.Name()),
		zap.Int("points", grid.Len()),
		zap.Int("instances", len(res.Instances)),
	)
	err := sim.NewEnsemble(r.sim, len(res.Instances)).Run(ctx, res.Instances, r.cfg)
	if err != nil {
		r.log.Warn("sweep finished with failures", zap.Error(err))
	}
	return res, err
}
