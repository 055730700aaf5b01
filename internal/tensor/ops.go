package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Map applies fn to every element and returns a new tensor.
func Map(a *Tensor, fn func(float64) float64) *Tensor {
	out := &Tensor{shape: a.shape, data: make([]float64, len(a.data))}
	for i, v := range a.data {
		out.data[i] = fn(v)
	}
	return out
}

// Zip combines a and b elementwise after broadcasting them to a common shape.
func Zip(a, b *Tensor, fn func(x, y float64) float64) (*Tensor, error) {
	s, err := Broadcast(a.shape, b.shape)
	if err != nil {
		return nil, err
	}
	out := New(s)

	switch {
	case a.shape == s && b.shape == s:
		for i := range out.data {
			out.data[i] = fn(a.data[i], b.data[i])
		}
	case a.shape == s && b.IsScalar():
		y := b.data[0]
		for i := range out.data {
			out.data[i] = fn(a.data[i], y)
		}
	case a.IsScalar() && b.shape == s:
		x := a.data[0]
		for i := range out.data {
			out.data[i] = fn(x, b.data[i])
		}
	default:
		sa, sb := a.shape.strides(s), b.shape.strides(s)
		each(s, func(idx int, pos [Rank]int) {
			out.data[idx] = fn(a.data[dot(pos, sa)], b.data[dot(pos, sb)])
		})
	}
	return out, nil
}

// Where picks a where cond is non-zero and b elsewhere.
func Where(cond, a, b *Tensor) (*Tensor, error) {
	s, err := Broadcast(cond.shape, a.shape)
	if err != nil {
		return nil, err
	}
	if s, err = Broadcast(s, b.shape); err != nil {
		return nil, err
	}
	out := New(s)
	sc, sa, sb := cond.shape.strides(s), a.shape.strides(s), b.shape.strides(s)
	each(s, func(idx int, pos [Rank]int) {
		if cond.data[dot(pos, sc)] != 0 {
			out.data[idx] = a.data[dot(pos, sa)]
		} else {
			out.data[idx] = b.data[dot(pos, sb)]
		}
	})
	return out, nil
}

// Combine returns base + h * sum(coeffs[i] * ks[i]). Terms with a zero
// coefficient are skipped. Every k must broadcast to base's shape.
func Combine(base *Tensor, h float64, coeffs []float64, ks []*Tensor) (*Tensor, error) {
	if len(coeffs) > len(ks) {
		return nil, fmt.Errorf("tensor: %d coefficients for %d terms", len(coeffs), len(ks))
	}
	acc := New(base.shape)
	term := New(base.shape)
	for i, c := range coeffs {
		if c == 0 {
			continue
		}
		if err := term.CopyFrom(ks[i]); err != nil {
			return nil, err
		}
		for j, v := range term.data {
			acc.data[j] += c * v
		}
	}
	out := New(base.shape)
	for j, v := range base.data {
		out.data[j] = v + h*acc.data[j]
	}
	return out, nil
}

// MatMul multiplies the trailing (row, col) matrices of a and b,
// broadcasting over the parallel and region axes.
func MatMul(a, b *Tensor) (*Tensor, error) {
	return product(a, b, false)
}

// product computes op(a) x b block by block, where op transposes a when
// transA is set. Each (parallel, region) block is contiguous and row-major,
// so it is wrapped as a mat.Dense without copying.
func product(a, b *Tensor, transA bool) (*Tensor, error) {
	n, k := a.shape[AxisRow], a.shape[AxisCol]
	if transA {
		n, k = k, n
	}
	if b.shape[AxisRow] != k {
		return nil, fmt.Errorf("%w: matmul %s x %s", ErrShape, a.shape, b.shape)
	}
	m := b.shape[AxisCol]

	lead, err := Broadcast(Shape{a.shape[0], a.shape[1], 1, 1}, Shape{b.shape[0], b.shape[1], 1, 1})
	if err != nil {
		return nil, err
	}
	out := New(Shape{lead[0], lead[1], n, m})
	for p := 0; p < lead[0]; p++ {
		for r := 0; r < lead[1]; r++ {
			var lhs mat.Matrix = a.block(pick(a.shape[0], p), pick(a.shape[1], r))
			if transA {
				lhs = lhs.T()
			}
			out.block(p, r).Mul(lhs, b.block(pick(b.shape[0], p), pick(b.shape[1], r)))
		}
	}
	return out, nil
}

// block views the (row, col) matrix at (p, r).
func (t *Tensor) block(p, r int) *mat.Dense {
	rows, cols := t.shape[AxisRow], t.shape[AxisCol]
	off := t.offset(p, r, 0, 0)
	return mat.NewDense(rows, cols, t.data[off:off+rows*cols])
}

func pick(extent, i int) int {
	if extent == 1 {
		return 0
	}
	return i
}

// Transpose swaps the row and col axes.
func Transpose(a *Tensor) *Tensor {
	s := a.shape
	out := New(Shape{s[0], s[1], s[3], s[2]})
	for p := 0; p < s[0]; p++ {
		for r := 0; r < s[1]; r++ {
			out.block(p, r).Copy(a.block(p, r).T())
		}
	}
	return out
}

// SumAxis sums over one axis, keeping it with extent 1.
func SumAxis(a *Tensor, axis int) *Tensor {
	s := a.shape
	rs := s
	rs[axis] = 1
	out := New(rs)
	st := rs.strides(s)
	each(s, func(idx int, pos [Rank]int) {
		out.data[dot(pos, st)] += a.data[idx]
	})
	return out
}

// Sprod is the scalar product over sectors: transpose(x) x y.
func Sprod(x, y *Tensor) (*Tensor, error) {
	return product(x, y, true)
}

// Identity returns the (1, 1, n, n) identity matrix.
func Identity(n int) *Tensor {
	out := New(Shape{1, 1, n, n})
	for i := 0; i < n; i++ {
		out.Set(0, 0, i, i, 1)
	}
	return out
}
