package sim

import (
	"fmt"

	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/tensor"
)

// Trajectory is the time-indexed buffer of one field: Steps slices of
// Shape, stored contiguously. Parameter trajectories hold a single slice
// that stands for every time index.
type Trajectory struct {
	name     string
	kind     dynamo.Kind
	shape    tensor.Shape
	steps    int
	constant bool
	data     []float64
	times    []float64
}

func newTrajectory(name string, kind dynamo.Kind, shape tensor.Shape, steps int) *Trajectory {
	return &Trajectory{
		name:  name,
		kind:  kind,
		shape: shape,
		steps: steps,
		data:  make([]float64, steps*shape.Size()),
	}
}

func constantTrajectory(name string, value *tensor.Tensor, steps int) *Trajectory {
	return &Trajectory{
		name:     name,
		kind:     dynamo.KindParameter,
		shape:    value.Shape(),
		steps:    steps,
		constant: true,
		data:     value.Data(),
	}
}

func (tr *Trajectory) Name() string        { return tr.name }
func (tr *Trajectory) Kind() dynamo.Kind   { return tr.kind }
func (tr *Trajectory) Steps() int          { return tr.steps }
func (tr *Trajectory) Shape() tensor.Shape { return tr.shape }

// Times returns the time of every slice. It is nil before the run starts.
func (tr *Trajectory) Times() []float64 { return tr.times }

// Slice returns a view of time index t. Writes through the view change
// the trajectory.
func (tr *Trajectory) Slice(t int) *tensor.Tensor {
	if tr.constant {
		t = 0
	}
	n := tr.shape.Size()
	v, _ := tensor.Wrap(tr.shape, tr.data[t*n:(t+1)*n])
	return v
}

func (tr *Trajectory) At(t, p, r, i, j int) float64 {
	return tr.Slice(t).At(p, r, i, j)
}

// Series returns the values of one element over time.
func (tr *Trajectory) Series(p, r, i, j int) []float64 {
	out := make([]float64, tr.steps)
	for t := range out {
		out[t] = tr.At(t, p, r, i, j)
	}
	return out
}

// Dense returns a copy of the buffer as (time, parallel, region, row, col)
// in row-major order.
func (tr *Trajectory) Dense() []float64 {
	if !tr.constant {
		return append([]float64(nil), tr.data...)
	}
	out := make([]float64, 0, tr.steps*len(tr.data))
	for t := 0; t < tr.steps; t++ {
		out = append(out, tr.data...)
	}
	return out
}

// Resample linearly interpolates the trajectory onto n evenly spaced times
// between the first and last slice.
func (tr *Trajectory) Resample(n int) (*Trajectory, error) {
	if n < 2 {
		return nil, fmt.Errorf("sim: resample needs at least 2 points, got %d", n)
	}
	if len(tr.times) != tr.steps {
		return nil, fmt.Errorf("sim: trajectory %q has no time axis yet", tr.name)
	}
	out := newTrajectory(tr.name, tr.kind, tr.shape, n)
	out.times = make([]float64, n)

	t0, t1 := tr.times[0], tr.times[tr.steps-1]
	size := tr.shape.Size()
	k := 0
	for s := 0; s < n; s++ {
		at := t0 + (t1-t0)*float64(s)/float64(n-1)
		out.times[s] = at
		for k < tr.steps-2 && tr.times[k+1] < at {
			k++
		}
		lo, hi := tr.Slice(k).Data(), tr.Slice(min(k+1, tr.steps-1)).Data()
		w := 0.0
		if span := tr.times[min(k+1, tr.steps-1)] - tr.times[k]; span > 0 {
			w = (at - tr.times[k]) / span
		}
		dst := out.data[s*size : (s+1)*size]
		for e := range dst {
			dst[e] = lo[e] + w*(hi[e]-lo[e])
		}
	}
	return out, nil
}
