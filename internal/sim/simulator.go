package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/tensor"
)

// Config parameterises one run. T0 is the time of slice 0.
type Config struct {
	Dt float64
	T0 float64
}

// errorEstimator is implemented by schemes with an embedded error pair.
type errorEstimator interface {
	StepWithError(sys dynamo.System, y dynamo.State, t, dt float64) (dynamo.State, float64, error)
}

// Simulator drives instances through the time loop with one integrator.
// It holds no per-run state and may run several instances concurrently.
type Simulator struct {
	integrator dynamo.Integrator
	observers  []dynamo.Observer
	log        *zap.Logger
}

type Option func(*Simulator)

func WithLogger(l *zap.Logger) Option {
	return func(s *Simulator) { s.log = l }
}

func WithObserver(o dynamo.Observer) Option {
	return func(s *Simulator) { s.observers = append(s.observers, o) }
}

func New(integrator dynamo.Integrator, opts ...Option) *Simulator {
	s := &Simulator{
		integrator: integrator,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) AddObserver(o dynamo.Observer) { s.observers = append(s.observers, o) }

func (s *Simulator) Integrator() dynamo.Integrator { return s.integrator }

// Run fills inst slice by slice: statevars of slice t in resolved order,
// then one integrator step to slice t+1, and a final statevar pass on the
// last slice. A non-finite value or a cancelled ctx moves the instance to
// FAILED; completed slices stay readable. The instance is returned for
// chaining.
func (s *Simulator) Run(ctx context.Context, inst *Instance, cfg Config) (*Instance, error) {
	if err := s.validateConfig(cfg); err != nil {
		return inst, err
	}

	inst.mu.Lock()
	if inst.status != StatusInitialized {
		status := inst.status
		inst.mu.Unlock()
		return inst, fmt.Errorf("%w: status %s", dynamo.ErrNotRunnable, status)
	}
	inst.status = StatusRunning
	inst.mu.Unlock()

	steps := inst.shape.Steps
	inst.times = make([]float64, steps)
	for k := range inst.times {
		inst.times[k] = cfg.T0 + float64(k)*cfg.Dt
	}
	for _, tr := range inst.trajs {
		tr.times = inst.times
	}
	if inst.seedTime {
		if err := inst.trajs[TimeField].Slice(0).CopyFrom(tensor.Scalar(cfg.T0)); err != nil {
			return inst, err
		}
	}

	log := s.log.With(
		zap.String("model", inst.model.Name()),
		zap.String("id", inst.id.String()),
		zap.String("scheme", s.integrator.Name()),
	)
	log.Info("run started", zap.Int("steps", steps), zap.Float64("dt", cfg.Dt), zap.Int("parallel", inst.shape.Parallel))

	start := time.Now()
	sys := newSystem(inst)
	estimator, _ := s.integrator.(errorEstimator)
	maxErr := 0.0

	fail := func(step int, err error) (*Instance, error) {
		var div *dynamo.NumericDivergenceError
		if errors.As(err, &div) {
			div.Step, div.Time = step, inst.times[step]
		} else {
			err = &dynamo.SimulationError{Step: step, Time: inst.times[step], Wrapped: err}
		}
		inst.mu.Lock()
		inst.status, inst.err = StatusFailed, err
		inst.stats = RunStats{Steps: inst.filled, Elapsed: time.Since(start), MaxLocalError: maxErr}
		inst.mu.Unlock()
		log.Error("run failed", zap.Int("step", step), zap.Int("filled", inst.Filled()), zap.Error(err))
		return inst, err
	}

	y := inst.state(0)
	for step := 0; step < steps-1; step++ {
		select {
		case <-ctx.Done():
			return fail(step, ctx.Err())
		default:
		}

		t := inst.times[step]
		if err := sys.prime(y, step); err != nil {
			return fail(step, err)
		}
		for _, obs := range s.observers {
			obs.OnStep(step, t, y)
		}

		var next dynamo.State
		var err error
		if estimator != nil {
			var e float64
			next, e, err = estimator.StepWithError(sys, y, t, cfg.Dt)
			maxErr = math.Max(maxErr, e)
		} else {
			next, err = s.integrator.Step(sys, y, t, cfg.Dt)
		}
		if err != nil {
			return fail(step, err)
		}

		// Slice step is complete once its statevars are stored.
		inst.setFilled(step + 1)

		if i := next.FirstInvalid(); i >= 0 {
			return fail(step+1, &dynamo.NumericDivergenceError{Field: inst.diffs[i]})
		}
		y = inst.state(step + 1)
		for i, v := range next {
			if err := y[i].CopyFrom(v); err != nil {
				return fail(step+1, &dynamo.ShapeMismatchError{
					Field: inst.diffs[i], Declared: inst.model.reg.Dims(inst.diffs[i]), Got: v.Shape().String(), Err: err,
				})
			}
		}
	}

	if err := sys.prime(y, steps-1); err != nil {
		return fail(steps-1, err)
	}
	for _, obs := range s.observers {
		obs.OnStep(steps-1, inst.times[steps-1], y)
	}

	inst.mu.Lock()
	inst.status, inst.filled = StatusCompleted, steps
	inst.stats = RunStats{Steps: steps, Elapsed: time.Since(start), MaxLocalError: maxErr}
	stats := inst.stats
	inst.mu.Unlock()

	log.Info("run completed", zap.Duration("elapsed", stats.Elapsed), zap.Float64("max_local_error", stats.MaxLocalError))
	return inst, nil
}

func (s *Simulator) validateConfig(cfg Config) error {
	if cfg.Dt <= 0 || math.IsInf(cfg.Dt, 0) || math.IsNaN(cfg.Dt) {
		return fmt.Errorf("dt must be positive, got %f", cfg.Dt)
	}
	if math.IsInf(cfg.T0, 0) || math.IsNaN(cfg.T0) {
		return fmt.Errorf("t0 must be finite, got %f", cfg.T0)
	}
	return nil
}

// state returns views of every differential field at slice t.
func (inst *Instance) state(t int) dynamo.State {
	y := make(dynamo.State, len(inst.diffs))
	for i, name := range inst.diffs {
		y[i] = inst.trajs[name].Slice(t)
	}
	return y
}
