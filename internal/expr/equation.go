package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"

	"github.com/san-kum/gemsim/internal/tensor"
)

// SelfToken names the owning differential field inside its own rule.
// "self" is accepted as an alias.
const SelfToken = "itself"

var (
	ErrSyntax = errors.New("expr: invalid equation")
	// ErrOpaqueShape is returned by InferShape for equations built from Go
	// closures.
	ErrOpaqueShape = errors.New("expr: shape of Go function is not known statically")
)

// Equation is a parsed rule together with the argument names it reads.
type Equation struct {
	source   string
	root     Node
	args     []string
	self     bool
	defaults map[string]float64
}

// Parse reads an equation written in HCL expression syntax.
func Parse(src string) (*Equation, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	hx, diags := hclsyntax.ParseExpression([]byte(normalizeMinus(src)), "equation", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s", ErrSyntax, diags.Error())
	}
	root, err := convert(hx)
	if err != nil {
		return nil, err
	}
	return newEquation(src, root), nil
}

// MustParse is Parse for equations known to be valid at compile time.
func MustParse(src string) *Equation {
	e, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return e
}

// Func wraps a Go closure. params name the arguments passed to fn in order;
// SelfToken (or "self") binds the owning differential field.
func Func(params []string, fn func(args []*tensor.Tensor) (*tensor.Tensor, error)) *Equation {
	nodes := make([]Node, len(params))
	for i, p := range params {
		if isSelf(p) {
			nodes[i] = SelfRef{}
		} else {
			nodes[i] = &Ref{Name: p}
		}
	}
	g := &goFunc{params: nodes, fn: fn}
	return newEquation(g.String(), g)
}

func newEquation(src string, root Node) *Equation {
	e := &Equation{source: src, root: root}
	seen := make(map[string]bool)
	walk(root, func(n Node) {
		switch n := n.(type) {
		case *Ref:
			if !seen[n.Name] {
				seen[n.Name] = true
				e.args = append(e.args, n.Name)
			}
		case SelfRef:
			e.self = true
		}
	})
	return e
}

// WithDefaults returns a copy of e that falls back to defaults for
// arguments the bindings cannot supply.
func (e *Equation) WithDefaults(defaults map[string]float64) *Equation {
	out := *e
	out.defaults = make(map[string]float64, len(e.defaults)+len(defaults))
	for k, v := range e.defaults {
		out.defaults[k] = v
	}
	for k, v := range defaults {
		out.defaults[k] = v
	}
	return &out
}

// Args returns argument names in order of first appearance, excluding the
// self token.
func (e *Equation) Args() []string { return e.args }

// UsesSelf reports whether the equation reads its owning field.
func (e *Equation) UsesSelf() bool { return e.self }

func (e *Equation) Default(name string) (float64, bool) {
	v, ok := e.defaults[name]
	return v, ok
}

func (e *Equation) Root() Node     { return e.root }
func (e *Equation) String() string { return e.source }

func (e *Equation) Eval(b Bindings) (*tensor.Tensor, error) {
	if len(e.defaults) > 0 {
		b = defaultBindings{Bindings: b, defaults: e.defaults}
	}
	return e.root.Eval(b)
}

type defaultBindings struct {
	Bindings
	defaults map[string]float64
}

func (d defaultBindings) Lookup(name string) (*tensor.Tensor, bool) {
	if v, ok := d.Bindings.Lookup(name); ok {
		return v, true
	}
	if v, ok := d.defaults[name]; ok {
		return tensor.Scalar(v), true
	}
	return nil, false
}

// MapBindings is a Bindings over a plain map, mostly for tests and one-off
// evaluation.
type MapBindings struct {
	Values map[string]*tensor.Tensor
	Own    *tensor.Tensor
}

func (m MapBindings) Lookup(name string) (*tensor.Tensor, bool) {
	v, ok := m.Values[name]
	return v, ok
}

func (m MapBindings) Self() (*tensor.Tensor, bool) { return m.Own, m.Own != nil }

func isSelf(name string) bool { return name == SelfToken || name == "self" }

var binaryOps = map[*hclsyntax.Operation]Op{
	hclsyntax.OpAdd:                OpAdd,
	hclsyntax.OpSubtract:           OpSub,
	hclsyntax.OpMultiply:           OpMul,
	hclsyntax.OpDivide:             OpDiv,
	hclsyntax.OpModulo:             OpMod,
	hclsyntax.OpLessThan:           OpLT,
	hclsyntax.OpLessThanOrEqual:    OpLE,
	hclsyntax.OpGreaterThan:        OpGT,
	hclsyntax.OpGreaterThanOrEqual: OpGE,
	hclsyntax.OpEqual:              OpEQ,
	hclsyntax.OpNotEqual:           OpNE,
	hclsyntax.OpLogicalAnd:         OpAnd,
	hclsyntax.OpLogicalOr:          OpOr,
}

var unaryOps = map[*hclsyntax.Operation]Op{
	hclsyntax.OpNegate:     OpNeg,
	hclsyntax.OpLogicalNot: OpNot,
}

func convert(hx hclsyntax.Expression) (Node, error) {
	switch x := hx.(type) {
	case *hclsyntax.LiteralValueExpr:
		return literal(x.Val)
	case *hclsyntax.ScopeTraversalExpr:
		if len(x.Traversal) != 1 {
			return nil, fmt.Errorf("%w: attribute or index access in %q is not supported", ErrSyntax, x.Traversal.RootName())
		}
		name := x.Traversal.RootName()
		if isSelf(name) {
			return SelfRef{}, nil
		}
		return &Ref{Name: name}, nil
	case *hclsyntax.ParenthesesExpr:
		return convert(x.Expression)
	case *hclsyntax.UnaryOpExpr:
		op, ok := unaryOps[x.Op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported unary operator", ErrSyntax)
		}
		v, err := convert(x.Val)
		if err != nil {
			return nil, err
		}
		return &Unary{Op: op, X: v}, nil
	case *hclsyntax.BinaryOpExpr:
		op, ok := binaryOps[x.Op]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported binary operator", ErrSyntax)
		}
		l, err := convert(x.LHS)
		if err != nil {
			return nil, err
		}
		r, err := convert(x.RHS)
		if err != nil {
			return nil, err
		}
		return &Binary{Op: op, L: l, R: r}, nil
	case *hclsyntax.ConditionalExpr:
		c, err := convert(x.Condition)
		if err != nil {
			return nil, err
		}
		a, err := convert(x.TrueResult)
		if err != nil {
			return nil, err
		}
		b, err := convert(x.FalseResult)
		if err != nil {
			return nil, err
		}
		return &Cond{If: c, Then: a, Else: b}, nil
	case *hclsyntax.FunctionCallExpr:
		if x.ExpandFinal {
			return nil, fmt.Errorf("%w: argument expansion in %s", ErrSyntax, x.Name)
		}
		fn, err := lookupBuiltin(x.Name, len(x.Args))
		if err != nil {
			return nil, err
		}
		args := make([]Node, len(x.Args))
		for i, a := range x.Args {
			if args[i], err = convert(a); err != nil {
				return nil, err
			}
		}
		return &Call{Name: x.Name, Args: args, fn: fn}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", ErrSyntax, hx)
	}
}

func literal(v cty.Value) (Node, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, fmt.Errorf("%w: null literal", ErrSyntax)
	}
	switch v.Type() {
	case cty.Number:
		f, _ := v.AsBigFloat().Float64()
		return &Number{Value: f}, nil
	case cty.Bool:
		return &Number{Value: boolf(v.True())}, nil
	default:
		return nil, fmt.Errorf("%w: %s literal is not numeric", ErrSyntax, v.Type().FriendlyName())
	}
}

// normalizeMinus separates '-' that directly follows an identifier. HCL
// allows dashes inside identifiers, so "A-B" would otherwise be one name.
// Exponents such as 1e-3 are left alone.
func normalizeMinus(src string) string {
	var b strings.Builder
	b.Grow(len(src) + 8)
	inIdent, inNumber := false, false
	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case inIdent:
			if c == '-' {
				b.WriteString(" - ")
				inIdent = false
				continue
			}
			inIdent = isIdentChar(c)
		case inNumber:
			exp := (c == '-' || c == '+') && (src[i-1] == 'e' || src[i-1] == 'E')
			inNumber = exp || isDigit(c) || c == '.' || c == 'e' || c == 'E'
		default:
			inIdent = isLetter(c)
			inNumber = isDigit(c) || c == '.'
		}
		b.WriteByte(c)
	}
	return b.String()
}

func isLetter(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isIdentChar(c byte) bool { return isLetter(c) || isDigit(c) }
