package expr

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/gemsim/internal/tensor"
)

type builtin struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	eval             func(args []*tensor.Tensor) (*tensor.Tensor, error)
	shape            func(args []Dims) (Dims, error)
}

func mathFunc(fn func(float64) float64) *builtin {
	return &builtin{
		minArgs: 1, maxArgs: 1,
		eval:  func(a []*tensor.Tensor) (*tensor.Tensor, error) { return tensor.Map(a[0], fn), nil },
		shape: func(d []Dims) (Dims, error) { return d[0], nil },
	}
}

func foldFunc(min int, fn func(x, y float64) float64) *builtin {
	return &builtin{
		minArgs: min, maxArgs: -1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			acc := a[0]
			for _, x := range a[1:] {
				var err error
				if acc, err = tensor.Zip(acc, x, fn); err != nil {
					return nil, err
				}
			}
			return acc, nil
		},
		shape: broadcastAll,
	}
}

var builtins = map[string]*builtin{
	"exp":  mathFunc(math.Exp),
	"log":  mathFunc(math.Log),
	"sqrt": mathFunc(math.Sqrt),
	"abs":  mathFunc(math.Abs),
	"sin":  mathFunc(math.Sin),
	"cos":  mathFunc(math.Cos),
	"tan":  mathFunc(math.Tan),
	"tanh": mathFunc(math.Tanh),
	"heaviside": mathFunc(func(x float64) float64 {
		if x > 0 {
			return 1
		}
		return 0
	}),

	"pow": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.Zip(a[0], a[1], math.Pow)
		},
		shape: broadcastAll,
	},
	"min": foldFunc(2, math.Min),
	"max": foldFunc(2, math.Max),
	"clip": {
		minArgs: 3, maxArgs: 3,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			lo, err := tensor.Zip(a[0], a[1], math.Max)
			if err != nil {
				return nil, err
			}
			return tensor.Zip(lo, a[2], math.Min)
		},
		shape: broadcastAll,
	},

	"matmul": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.MatMul(a[0], a[1])
		},
		shape: func(d []Dims) (Dims, error) {
			if d[0].Cols != d[1].Rows {
				return Dims{}, &ShapeError{Op: "matmul", Left: d[0], Right: d[1]}
			}
			return Dims{Rows: d[0].Rows, Cols: d[1].Cols}, nil
		},
	},
	"transpose": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.Transpose(a[0]), nil
		},
		shape: func(d []Dims) (Dims, error) { return Dims{Rows: d[0].Cols, Cols: d[0].Rows}, nil },
	},
	"sprod": {
		minArgs: 2, maxArgs: 2,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.Sprod(a[0], a[1])
		},
		shape: func(d []Dims) (Dims, error) {
			if d[0].Rows != d[1].Rows {
				return Dims{}, &ShapeError{Op: "sprod", Left: d[0], Right: d[1]}
			}
			return Dims{Rows: d[0].Cols, Cols: d[1].Cols}, nil
		},
	},
	"ssum": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.SumAxis(a[0], tensor.AxisRow), nil
		},
		shape: func(d []Dims) (Dims, error) { return Dims{Rows: 1, Cols: d[0].Cols}, nil },
	},
	"ssum2": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.SumAxis(a[0], tensor.AxisCol), nil
		},
		shape: func(d []Dims) (Dims, error) { return Dims{Rows: d[0].Rows, Cols: 1}, nil },
	},
	"ssumR": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.SumAxis(a[0], tensor.AxisRegion), nil
		},
		shape: func(d []Dims) (Dims, error) { return d[0], nil },
	},
	"identity": {
		minArgs: 1, maxArgs: 1,
		eval: func(a []*tensor.Tensor) (*tensor.Tensor, error) {
			return tensor.Identity(a[0].Shape()[tensor.AxisCol]), nil
		},
		shape: func(d []Dims) (Dims, error) { return Dims{Rows: d[0].Cols, Cols: d[0].Cols}, nil },
	},
}

// Builtins lists the function names usable in equations.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupBuiltin(name string, nargs int) (*builtin, error) {
	b, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown function %q", ErrSyntax, name)
	}
	if nargs < b.minArgs || (b.maxArgs >= 0 && nargs > b.maxArgs) {
		return nil, fmt.Errorf("%w: %s called with %d arguments", ErrSyntax, name, nargs)
	}
	return b, nil
}
