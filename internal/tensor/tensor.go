package tensor

import (
	"errors"
	"fmt"
	"math"
)

// Axis indices of a Shape.
const (
	AxisParallel = iota
	AxisRegion
	AxisRow
	AxisCol
	Rank
)

// ErrShape is returned when two shapes cannot be combined.
var ErrShape = errors.New("tensor: incompatible shapes")

type Shape [Rank]int

// ScalarShape is the shape of a single value.
var ScalarShape = Shape{1, 1, 1, 1}

func (s Shape) Size() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

func (s Shape) String() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", s[0], s[1], s[2], s[3])
}

// BroadcastsTo reports whether every axis of s is either 1 or equal to dst.
func (s Shape) BroadcastsTo(dst Shape) bool {
	for k := range s {
		if s[k] != 1 && s[k] != dst[k] {
			return false
		}
	}
	return true
}

// Broadcast returns the common shape of a and b.
func Broadcast(a, b Shape) (Shape, error) {
	var out Shape
	for k := range a {
		switch {
		case a[k] == b[k]:
			out[k] = a[k]
		case a[k] == 1:
			out[k] = b[k]
		case b[k] == 1:
			out[k] = a[k]
		default:
			return Shape{}, fmt.Errorf("%w: %s and %s", ErrShape, a, b)
		}
	}
	return out, nil
}

// strides returns the element strides of s when iterated over out.
// Axes of extent 1 get a zero stride so they repeat.
func (s Shape) strides(out Shape) [Rank]int {
	var st [Rank]int
	acc := 1
	for k := Rank - 1; k >= 0; k-- {
		if s[k] == 1 && out[k] != 1 {
			st[k] = 0
		} else {
			st[k] = acc
		}
		acc *= s[k]
	}
	return st
}

type Tensor struct {
	shape Shape
	data  []float64
}

// New returns a zero-filled tensor.
func New(s Shape) *Tensor {
	for k, d := range s {
		if d < 1 {
			panic(fmt.Sprintf("tensor: axis %d has extent %d", k, d))
		}
	}
	return &Tensor{shape: s, data: make([]float64, s.Size())}
}

func Scalar(v float64) *Tensor {
	return &Tensor{shape: ScalarShape, data: []float64{v}}
}

func Full(s Shape, v float64) *Tensor {
	t := New(s)
	for i := range t.data {
		t.data[i] = v
	}
	return t
}

// Wrap returns a tensor backed by data without copying it.
func Wrap(s Shape, data []float64) (*Tensor, error) {
	if len(data) != s.Size() {
		return nil, fmt.Errorf("%w: %d values for shape %s", ErrShape, len(data), s)
	}
	return &Tensor{shape: s, data: data}, nil
}

// Vector returns a (1, 1, n, 1) sector vector.
func Vector(vals ...float64) *Tensor {
	d := make([]float64, len(vals))
	copy(d, vals)
	return &Tensor{shape: Shape{1, 1, len(vals), 1}, data: d}
}

func (t *Tensor) Shape() Shape    { return t.shape }
func (t *Tensor) Data() []float64 { return t.data }
func (t *Tensor) Len() int        { return len(t.data) }
func (t *Tensor) IsScalar() bool  { return len(t.data) == 1 }
func (t *Tensor) Value() float64  { return t.data[0] }

func (t *Tensor) offset(p, r, i, j int) int {
	s := t.shape
	return ((p*s[1]+r)*s[2]+i)*s[3] + j
}

func (t *Tensor) At(p, r, i, j int) float64 {
	return t.data[t.offset(p, r, i, j)]
}

func (t *Tensor) Set(p, r, i, j int, v float64) {
	t.data[t.offset(p, r, i, j)] = v
}

func (t *Tensor) Clone() *Tensor {
	d := make([]float64, len(t.data))
	copy(d, t.data)
	return &Tensor{shape: t.shape, data: d}
}

// IsFinite reports whether no element is NaN or infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Equal reports bit-for-bit equality of shape and values.
func (t *Tensor) Equal(o *Tensor) bool {
	if t.shape != o.shape {
		return false
	}
	for i, v := range t.data {
		if math.Float64bits(v) != math.Float64bits(o.data[i]) {
			return false
		}
	}
	return true
}

// BroadcastTo returns a new tensor of shape s holding t repeated along its
// unit axes.
func (t *Tensor) BroadcastTo(s Shape) (*Tensor, error) {
	out := New(s)
	if err := out.CopyFrom(t); err != nil {
		return nil, err
	}
	return out, nil
}

// CopyFrom overwrites t with src broadcast to t's shape.
func (t *Tensor) CopyFrom(src *Tensor) error {
	if !src.shape.BroadcastsTo(t.shape) {
		return fmt.Errorf("%w: cannot broadcast %s to %s", ErrShape, src.shape, t.shape)
	}
	if src.shape == t.shape {
		copy(t.data, src.data)
		return nil
	}
	if src.IsScalar() {
		v := src.data[0]
		for i := range t.data {
			t.data[i] = v
		}
		return nil
	}
	st := src.shape.strides(t.shape)
	each(t.shape, func(idx int, pos [Rank]int) {
		t.data[idx] = src.data[dot(pos, st)]
	})
	return nil
}

func (t *Tensor) String() string {
	if t.IsScalar() {
		return fmt.Sprintf("%g", t.data[0])
	}
	return fmt.Sprintf("tensor%s%v", t.shape, t.data)
}

func dot(pos [Rank]int, st [Rank]int) int {
	return pos[0]*st[0] + pos[1]*st[1] + pos[2]*st[2] + pos[3]*st[3]
}

// each visits every position of s in row-major order.
func each(s Shape, fn func(idx int, pos [Rank]int)) {
	var pos [Rank]int
	idx := 0
	for pos[0] = 0; pos[0] < s[0]; pos[0]++ {
		for pos[1] = 0; pos[1] < s[1]; pos[1]++ {
			for pos[2] = 0; pos[2] < s[2]; pos[2]++ {
				for pos[3] = 0; pos[3] < s[3]; pos[3]++ {
					fn(idx, pos)
					idx++
				}
			}
		}
	}
}
