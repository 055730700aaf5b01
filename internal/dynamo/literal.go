package dynamo

import (
	"fmt"

	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/tensor"
)

// Literal is a constant value as written in a definition or preset: a
// scalar, a list, or a list of lists. Data is row-major. A regional
// literal holds one literal per region instead of Dims and Data.
type Literal struct {
	Dims    []int
	Data    []float64
	Regions []*Literal
}

// ParseLiteral accepts numbers, []float64, [][]float64 and nested []any as
// produced by YAML decoding, plus a mapping {regions: [...]} giving one
// value per region.
func ParseLiteral(v any) (*Literal, error) {
	switch v := v.(type) {
	case *Literal:
		return v, nil
	case map[string]any:
		return parseRegional(v)
	case []float64:
		return &Literal{Dims: []int{len(v)}, Data: append([]float64(nil), v...)}, nil
	case [][]float64:
		rows := make([]any, len(v))
		for i, r := range v {
			rows[i] = r
		}
		return ParseLiteral(rows)
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty list")
		}
		if _, nested := v[0].([]any); nested {
			return parseMatrix(v)
		}
		if _, nested := v[0].([]float64); nested {
			return parseMatrix(v)
		}
		data := make([]float64, len(v))
		for i, x := range v {
			f, err := number(x)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			data[i] = f
		}
		return &Literal{Dims: []int{len(v)}, Data: data}, nil
	default:
		f, err := number(v)
		if err != nil {
			return nil, err
		}
		return &Literal{Data: []float64{f}}, nil
	}
}

func parseMatrix(rows []any) (*Literal, error) {
	var data []float64
	cols := -1
	for i, r := range rows {
		row, err := ParseLiteral(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		if len(row.Dims) != 1 {
			return nil, fmt.Errorf("row %d: expected a flat list", i)
		}
		if cols >= 0 && row.Dims[0] != cols {
			return nil, fmt.Errorf("row %d has %d elements, want %d", i, row.Dims[0], cols)
		}
		cols = row.Dims[0]
		data = append(data, row.Data...)
	}
	return &Literal{Dims: []int{len(rows), cols}, Data: data}, nil
}

func parseRegional(m map[string]any) (*Literal, error) {
	raw, ok := m["regions"]
	if !ok || len(m) != 1 {
		return nil, fmt.Errorf("a mapping literal takes exactly one key, regions")
	}
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("regions must be a non-empty list")
	}
	lit := &Literal{Regions: make([]*Literal, len(list))}
	for i, r := range list {
		sub, err := ParseLiteral(r)
		if err != nil {
			return nil, fmt.Errorf("region %d: %w", i, err)
		}
		if sub.Regions != nil {
			return nil, fmt.Errorf("region %d: nested regions", i)
		}
		lit.Regions[i] = sub
	}
	return lit, nil
}

func number(v any) (float64, error) {
	switch v := v.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("%v (%T) is not a number", v, v)
	}
}

func (l *Literal) IsScalar() bool { return l.Regions == nil && len(l.Dims) == 0 }

func (l *Literal) String() string {
	if l.Regions != nil {
		return fmt.Sprintf("regions[%d] of %s", len(l.Regions), l.Regions[0])
	}
	switch len(l.Dims) {
	case 0:
		return "scalar"
	case 1:
		return fmt.Sprintf("list[%d]", l.Dims[0])
	default:
		return fmt.Sprintf("list[%d][%d]", l.Dims[0], l.Dims[1])
	}
}

// Fit converts l into a tensor for a field of extent d. Scalars broadcast.
// A list matching the field's rows (or cols) fills that axis; a list on a
// scalar field, or a list of row-vectors on a vector field, spreads over
// the parallel axis. A regional literal fits each region on its own and
// stacks them on the region axis.
func (l *Literal) Fit(field string, d expr.Dims) (*tensor.Tensor, error) {
	if l.Regions != nil {
		return l.fitRegions(field, d)
	}
	var s tensor.Shape
	switch len(l.Dims) {
	case 0:
		return tensor.Scalar(l.Data[0]), nil
	case 1:
		n := l.Dims[0]
		switch {
		case n == 1:
			s = tensor.ScalarShape
		case d.Rows == n:
			s = tensor.Shape{1, 1, n, 1}
		case d.Rows == 1 && d.Cols == n:
			s = tensor.Shape{1, 1, 1, n}
		case d == expr.ScalarDims:
			s = tensor.Shape{n, 1, 1, 1}
		}
	case 2:
		r, c := l.Dims[0], l.Dims[1]
		switch {
		case r == d.Rows && c == d.Cols:
			s = tensor.Shape{1, 1, r, c}
		case d.Cols == 1 && d.Rows > 1 && c == d.Rows:
			s = tensor.Shape{r, 1, c, 1}
		case d.Rows == 1 && d.Cols > 1 && c == d.Cols:
			s = tensor.Shape{r, 1, 1, c}
		}
	}
	if s.Size() == 0 {
		return nil, &ShapeMismatchError{Field: field, Declared: d, Got: l.String()}
	}
	return tensor.Wrap(s, append([]float64(nil), l.Data...))
}

func (l *Literal) fitRegions(field string, d expr.Dims) (*tensor.Tensor, error) {
	parts := make([]*tensor.Tensor, len(l.Regions))
	common := tensor.ScalarShape
	for i, r := range l.Regions {
		v, err := r.Fit(field, d)
		if err != nil {
			return nil, err
		}
		if common, err = tensor.Broadcast(common, v.Shape()); err != nil {
			return nil, &ShapeMismatchError{Field: field, Declared: d, Got: l.String(), Err: err}
		}
		parts[i] = v
	}

	out := tensor.New(tensor.Shape{common[tensor.AxisParallel], len(parts), common[tensor.AxisRow], common[tensor.AxisCol]})
	for r, v := range parts {
		full, err := v.BroadcastTo(common)
		if err != nil {
			return nil, &ShapeMismatchError{Field: field, Declared: d, Got: l.String(), Err: err}
		}
		for p := 0; p < common[tensor.AxisParallel]; p++ {
			for i := 0; i < common[tensor.AxisRow]; i++ {
				for j := 0; j < common[tensor.AxisCol]; j++ {
					out.Set(p, r, i, j, full.At(p, 0, i, j))
				}
			}
		}
	}
	return out, nil
}
