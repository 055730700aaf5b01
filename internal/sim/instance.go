package sim

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/tensor"
)

type Status int

const (
	StatusInitialized Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInitialized:
		return "INITIALIZED"
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	case StatusFailed:
		return "FAILED"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// TimeField is the differential that tracks simulated time. Unless it is
// overridden, its initial value is the run's T0.
const TimeField = "time"

// RunShape sizes an instance. Steps counts time slices including the
// initial one. Parallel 0 means infer it from list overrides, Regions 0
// from regional literals; either is 1 when nothing sets it.
type RunShape struct {
	Steps    int
	Parallel int
	Regions  int
}

// RunStats summarises a finished or failed run.
type RunStats struct {
	Steps   int
	Elapsed time.Duration
	// MaxLocalError is the largest embedded error estimate of the scheme,
	// 0 when the scheme has none.
	MaxLocalError float64
}

// Instance is one materialised run of a model: a buffer per field over
// (time, parallel, region, row, col). Slices fill monotonically and are
// never rewritten once complete.
type Instance struct {
	id    uuid.UUID
	model *Model
	shape RunShape

	params map[string]*tensor.Tensor
	trajs  map[string]*Trajectory
	diffs  []string
	times  []float64

	seedTime bool

	mu     sync.Mutex
	status Status
	filled int
	err    error
	stats  RunStats
}

// Instantiate allocates an instance of m. overrides map field names to
// literals and replace the declared value or initial condition; a list on
// a scalar field spreads over the parallel axis.
func Instantiate(m *Model, overrides map[string]any, shape RunShape) (*Instance, error) {
	if shape.Steps < 1 {
		return nil, fmt.Errorf("sim: run needs at least 1 time step, got %d", shape.Steps)
	}
	if shape.Parallel < 0 || shape.Regions < 0 {
		return nil, fmt.Errorf("sim: negative run shape %+v", shape)
	}

	reg := m.reg
	values, err := initialValues(reg, overrides)
	if err != nil {
		return nil, err
	}

	var errs *multierror.Error
	shape.Parallel, errs = inferExtent(reg, values, tensor.AxisParallel, shape.Parallel, "parallel", errs)
	shape.Regions, errs = inferExtent(reg, values, tensor.AxisRegion, shape.Regions, "region", errs)
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	inst := &Instance{
		id:     uuid.New(),
		model:  m,
		shape:  shape,
		params: make(map[string]*tensor.Tensor),
		trajs:  make(map[string]*Trajectory, reg.Len()),
	}
	if f, ok := reg.Lookup(TimeField); ok && f.Kind() == dynamo.KindDifferential {
		_, overridden := overrides[TimeField]
		inst.seedTime = !overridden
	}

	for _, f := range reg.Parameters() {
		v, ok := values[f.Name()]
		if !ok {
			continue
		}
		full, err := inst.broadcast(f.Name(), v)
		if err != nil {
			return nil, err
		}
		inst.params[f.Name()] = full
	}
	if err := inst.evalParameters(values); err != nil {
		return nil, err
	}
	for _, f := range reg.Parameters() {
		inst.trajs[f.Name()] = constantTrajectory(f.Name(), inst.params[f.Name()], shape.Steps)
	}

	for _, f := range reg.Differentials() {
		full, err := inst.broadcast(f.Name(), values[f.Name()])
		if err != nil {
			return nil, err
		}
		tr := newTrajectory(f.Name(), dynamo.KindDifferential, full.Shape(), shape.Steps)
		copy(tr.Slice(0).Data(), full.Data())
		inst.trajs[f.Name()] = tr
		inst.diffs = append(inst.diffs, f.Name())
	}
	for _, f := range reg.Statevars() {
		inst.trajs[f.Name()] = newTrajectory(f.Name(), dynamo.KindStatevar, inst.fieldShape(f.Name()), shape.Steps)
	}

	m.log.Debug("instance created",
		zap.String("id", inst.id.String()),
		zap.Int("steps", shape.Steps),
		zap.Int("parallel", shape.Parallel),
		zap.Int("regions", shape.Regions),
	)
	return inst, nil
}

// inferExtent settles one leading axis of the run. want 0 takes the extent
// from the values; every value must then have that extent or 1.
func inferExtent(reg *dynamo.Registry, values map[string]*tensor.Tensor, axis, want int, label string, errs *multierror.Error) (int, *multierror.Error) {
	n := want
	for _, name := range reg.Names() {
		v, ok := values[name]
		if !ok {
			continue
		}
		got := v.Shape()[axis]
		switch {
		case got == 1:
		case n <= 1 && want == 0:
			n = got
		case got != n:
			errs = multierror.Append(errs, &dynamo.ShapeMismatchError{
				Field: name, Declared: reg.Dims(name),
				Got: fmt.Sprintf("%d %s values, run has %d", got, label, n),
			})
		}
	}
	if n < 1 {
		n = 1
	}
	return n, errs
}

// initialValues fits declared literals and overrides to their fields.
// Parameters defined by equations have no entry unless overridden.
func initialValues(reg *dynamo.Registry, overrides map[string]any) (map[string]*tensor.Tensor, error) {
	var errs *multierror.Error
	values := make(map[string]*tensor.Tensor, reg.Len())

	for _, f := range reg.Names() {
		var lit *dynamo.Literal
		switch f := mustLookup(reg, f).(type) {
		case *dynamo.Parameter:
			lit = f.Value
		case *dynamo.Differential:
			lit = f.Initial
		}
		if lit == nil {
			continue
		}
		v, err := lit.Fit(f, reg.Dims(f))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		values[f] = v
	}

	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		f, ok := reg.Lookup(key)
		if !ok {
			errs = multierror.Append(errs, &dynamo.UnknownPresetFieldError{Key: key, Suggestion: dynamo.Suggest(key, reg.Names())})
			continue
		}
		if f.Kind() == dynamo.KindStatevar {
			errs = multierror.Append(errs, &dynamo.InvalidOverrideError{Field: key, Kind: f.Kind()})
			continue
		}
		lit, err := dynamo.ParseLiteral(overrides[key])
		if err != nil {
			errs = multierror.Append(errs, &dynamo.ShapeMismatchError{Field: key, Declared: reg.Dims(key), Err: err})
			continue
		}
		v, err := lit.Fit(key, reg.Dims(key))
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		values[key] = v
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return values, nil
}

func mustLookup(reg *dynamo.Registry, name string) dynamo.Field {
	f, _ := reg.Lookup(name)
	return f
}

func (inst *Instance) fieldShape(name string) tensor.Shape {
	d := inst.model.reg.Dims(name)
	return tensor.Shape{inst.shape.Parallel, inst.shape.Regions, d.Rows, d.Cols}
}

func (inst *Instance) broadcast(name string, v *tensor.Tensor) (*tensor.Tensor, error) {
	full, err := v.BroadcastTo(inst.fieldShape(name))
	if err != nil {
		return nil, &dynamo.ShapeMismatchError{Field: name, Declared: inst.model.reg.Dims(name), Got: v.Shape().String(), Err: err}
	}
	return full, nil
}

// evalParameters computes parameter equations once, in resolved order.
// An override on such a parameter replaces its equation.
func (inst *Instance) evalParameters(overridden map[string]*tensor.Tensor) error {
	for _, name := range inst.model.paramOrder {
		if _, ok := overridden[name]; ok {
			continue
		}
		f := mustLookup(inst.model.reg, name)
		v, err := f.Rule().Eval(expr.MapBindings{Values: inst.params})
		if err != nil {
			return fmt.Errorf("sim: parameter %q: %w", name, err)
		}
		if !v.IsFinite() {
			return &dynamo.NumericDivergenceError{Field: name}
		}
		full, err := inst.broadcast(name, v)
		if err != nil {
			return err
		}
		inst.params[name] = full
	}
	return nil
}

func (inst *Instance) ID() uuid.UUID    { return inst.id }
func (inst *Instance) Model() *Model    { return inst.model }
func (inst *Instance) Shape() RunShape  { return inst.shape }
func (inst *Instance) Times() []float64 { return inst.times }

func (inst *Instance) Status() Status {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.status
}

// Filled is the number of leading time slices in which every field holds
// its final value.
func (inst *Instance) Filled() int {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.filled
}

// Err is the error that failed the run, if any.
func (inst *Instance) Err() error {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.err
}

func (inst *Instance) Stats() RunStats {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.stats
}

// Trajectory returns the buffer of a field. Slices at or beyond Filled are
// not meaningful.
func (inst *Instance) Trajectory(name string) (*Trajectory, error) {
	tr, ok := inst.trajs[name]
	if !ok {
		return nil, &dynamo.UnknownFieldError{Name: name, Suggestion: dynamo.Suggest(name, inst.model.reg.Names())}
	}
	return tr, nil
}

// Parameter returns the value of a parameter broadcast to the run shape.
func (inst *Instance) Parameter(name string) (*tensor.Tensor, bool) {
	v, ok := inst.params[name]
	return v, ok
}

func (inst *Instance) setStatus(s Status, err error) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.status = s
	inst.err = err
}

func (inst *Instance) setFilled(n int) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	inst.filled = n
}
