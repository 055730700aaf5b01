package expr

import "fmt"

// Dims is the trailing (row, col) extent of a value. Parallel and region
// axes are uniform across a run and are not tracked here.
type Dims struct {
	Rows, Cols int
}

// ScalarDims is the extent of a plain number.
var ScalarDims = Dims{Rows: 1, Cols: 1}

func (d Dims) String() string { return fmt.Sprintf("%dx%d", d.Rows, d.Cols) }

// BroadcastsTo reports whether d fits into dst by repeating unit axes.
func (d Dims) BroadcastsTo(dst Dims) bool {
	return (d.Rows == 1 || d.Rows == dst.Rows) && (d.Cols == 1 || d.Cols == dst.Cols)
}

// ShapeError reports operands whose extents cannot be combined.
type ShapeError struct {
	Op          string
	Left, Right Dims
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("expr: %s cannot combine %s with %s", e.Op, e.Left, e.Right)
}

func broadcastDims(op string, a, b Dims) (Dims, error) {
	out := a
	switch {
	case a.Rows == b.Rows, b.Rows == 1:
	case a.Rows == 1:
		out.Rows = b.Rows
	default:
		return Dims{}, &ShapeError{Op: op, Left: a, Right: b}
	}
	switch {
	case a.Cols == b.Cols, b.Cols == 1:
	case a.Cols == 1:
		out.Cols = b.Cols
	default:
		return Dims{}, &ShapeError{Op: op, Left: a, Right: b}
	}
	return out, nil
}

func broadcastAll(d []Dims) (Dims, error) {
	acc := d[0]
	for _, x := range d[1:] {
		var err error
		if acc, err = broadcastDims("broadcast", acc, x); err != nil {
			return Dims{}, err
		}
	}
	return acc, nil
}

// DimsLookup returns the declared extent of a field, false when the name is
// not a field.
type DimsLookup func(name string) (Dims, bool)

// InferShape computes the extent an equation produces without evaluating
// it. Names unknown to lookup are treated as scalars (defaults). self is the
// extent of the owning differential field.
func (e *Equation) InferShape(lookup DimsLookup, self Dims) (Dims, error) {
	return inferNode(e.root, lookup, self)
}

func inferNode(n Node, lookup DimsLookup, self Dims) (Dims, error) {
	switch n := n.(type) {
	case *Number:
		return ScalarDims, nil
	case *Ref:
		if d, ok := lookup(n.Name); ok {
			return d, nil
		}
		return ScalarDims, nil
	case SelfRef:
		return self, nil
	case *Unary:
		return inferNode(n.X, lookup, self)
	case *Binary:
		l, err := inferNode(n.L, lookup, self)
		if err != nil {
			return Dims{}, err
		}
		r, err := inferNode(n.R, lookup, self)
		if err != nil {
			return Dims{}, err
		}
		return broadcastDims(n.Op.String(), l, r)
	case *Cond:
		dims, err := inferChildren(n.children(), lookup, self)
		if err != nil {
			return Dims{}, err
		}
		return broadcastAll(dims)
	case *Call:
		dims, err := inferChildren(n.Args, lookup, self)
		if err != nil {
			return Dims{}, err
		}
		return n.fn.shape(dims)
	case *goFunc:
		// Opaque closures are checked at evaluation time only.
		if _, err := inferChildren(n.params, lookup, self); err != nil {
			return Dims{}, err
		}
		return Dims{}, ErrOpaqueShape
	default:
		return Dims{}, fmt.Errorf("expr: cannot infer shape of %T", n)
	}
}

func inferChildren(nodes []Node, lookup DimsLookup, self Dims) ([]Dims, error) {
	out := make([]Dims, len(nodes))
	for i, c := range nodes {
		d, err := inferNode(c, lookup, self)
		if err != nil {
			return nil, err
		}
		out[i] = d
	}
	return out, nil
}
