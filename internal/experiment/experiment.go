package experiment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/catalog"
	"github.com/san-kum/gemsim/internal/config"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
)

// ErrNotSetup is returned by Run and Trajectory before Setup succeeded.
var ErrNotSetup = errors.New("experiment: not set up")

type Config struct {
	Model      string
	Preset     string
	Integrator string
	Dt         float64
	T0         float64
	Steps      int
	Parallel   int
	Regions    int
	Overrides  map[string]any
}

// FromConfig converts a resolved run configuration.
func FromConfig(c *config.Config) Config {
	return Config{
		Model:      c.Model,
		Preset:     c.Preset,
		Integrator: c.Integrator,
		Dt:         c.Dt,
		Steps:      c.NumSteps(),
		Parallel:   c.Parallel,
		Regions:    c.Regions,
		Overrides:  c.Set,
	}
}

// Experiment runs one model instance taken from a catalog.
type Experiment struct {
	cat       *catalog.Catalog
	cfg       Config
	simulator *sim.Simulator
	inst      *sim.Instance
	observers []dynamo.Observer
	log       *zap.Logger
}

type Option func(*Experiment)

func WithLogger(l *zap.Logger) Option {
	return func(e *Experiment) { e.log = l }
}

func WithObserver(o dynamo.Observer) Option {
	return func(e *Experiment) { e.observers = append(e.observers, o) }
}

func New(cat *catalog.Catalog, cfg Config, opts ...Option) *Experiment {
	e := &Experiment{cat: cat, cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Instantiate resolves model, applies the preset and then overrides on top
// of it, and allocates an instance of the configured run shape.
func (e *Experiment) Instantiate(model, preset string, overrides map[string]any) (*sim.Instance, error) {
	m, err := e.cat.Model(model)
	if err != nil {
		return nil, err
	}
	merged, err := Overrides(m, preset, overrides)
	if err != nil {
		return nil, err
	}

	inst, err := sim.Instantiate(m, merged, sim.RunShape{
		Steps:    e.cfg.Steps,
		Parallel: e.cfg.Parallel,
		Regions:  e.cfg.Regions,
	})
	if err != nil {
		return nil, fmt.Errorf("experiment: %s: %w", model, err)
	}
	e.log.Info("instance created",
		zap.Stringer("id", inst.ID()),
		zap.String("model", model),
		zap.String("preset", preset),
		zap.Int("steps", inst.Shape().Steps),
		zap.Int("parallel", inst.Shape().Parallel),
	)
	return inst, nil
}

// Overrides returns the values of m's preset with overrides layered on
// top.
func Overrides(m *sim.Model, preset string, overrides map[string]any) (map[string]any, error) {
	values, err := m.Preset(preset)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(values)+len(overrides))
	for k, v := range values {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged, nil
}

// Setup builds the integrator and the instance described by the config.
func (e *Experiment) Setup() error {
	integ, err := integrators.ByName(e.cfg.Integrator)
	if err != nil {
		return err
	}
	inst, err := e.Instantiate(e.cfg.Model, e.cfg.Preset, e.cfg.Overrides)
	if err != nil {
		return err
	}

	opts := []sim.Option{sim.WithLogger(e.log)}
	for _, o := range e.observers {
		opts = append(opts, sim.WithObserver(o))
	}
	e.simulator = sim.New(integ, opts...)
	e.inst = inst
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Instance, error) {
	if e.simulator == nil {
		return nil, ErrNotSetup
	}
	return e.simulator.Run(ctx, e.inst, sim.Config{Dt: e.cfg.Dt, T0: e.cfg.T0})
}

// Trajectory returns the named field of the experiment's instance.
func (e *Experiment) Trajectory(name string) (*sim.Trajectory, error) {
	if e.inst == nil {
		return nil, ErrNotSetup
	}
	return e.inst.Trajectory(name)
}

func (e *Experiment) Instance() *sim.Instance   { return e.inst }
func (e *Experiment) Simulator() *sim.Simulator { return e.simulator }
func (e *Experiment) Config() Config            { return e.cfg }
