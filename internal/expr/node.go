package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/san-kum/gemsim/internal/tensor"
)

// Bindings supplies argument values while an equation is evaluated.
type Bindings interface {
	Lookup(name string) (*tensor.Tensor, bool)
	// Self returns the current value of the differential field that owns the
	// equation. It is never resolved through Lookup.
	Self() (*tensor.Tensor, bool)
}

// Node is one operation of an equation tree.
type Node interface {
	Eval(b Bindings) (*tensor.Tensor, error)
	String() string
	children() []Node
}

type Number struct{ Value float64 }

func (n *Number) Eval(Bindings) (*tensor.Tensor, error) { return tensor.Scalar(n.Value), nil }
func (n *Number) String() string                        { return strconv.FormatFloat(n.Value, 'g', -1, 64) }
func (n *Number) children() []Node                      { return nil }

// Ref reads another field by name.
type Ref struct{ Name string }

func (r *Ref) Eval(b Bindings) (*tensor.Tensor, error) {
	v, ok := b.Lookup(r.Name)
	if !ok {
		return nil, &UnboundError{Name: r.Name}
	}
	return v, nil
}
func (r *Ref) String() string   { return r.Name }
func (r *Ref) children() []Node { return nil }

// SelfRef reads the owning differential field's current value.
type SelfRef struct{}

func (SelfRef) Eval(b Bindings) (*tensor.Tensor, error) {
	v, ok := b.Self()
	if !ok {
		return nil, &UnboundError{Name: SelfToken}
	}
	return v, nil
}
func (SelfRef) String() string   { return SelfToken }
func (SelfRef) children() []Node { return nil }

type Unary struct {
	Op Op
	X  Node
}

func (u *Unary) Eval(b Bindings) (*tensor.Tensor, error) {
	x, err := u.X.Eval(b)
	if err != nil {
		return nil, err
	}
	fn := unaryFuncs[u.Op]
	if fn == nil {
		return nil, fmt.Errorf("expr: %s is not a unary operator", u.Op)
	}
	return tensor.Map(x, fn), nil
}
func (u *Unary) String() string   { return u.Op.String() + u.X.String() }
func (u *Unary) children() []Node { return []Node{u.X} }

type Binary struct {
	Op   Op
	L, R Node
}

func (n *Binary) Eval(b Bindings) (*tensor.Tensor, error) {
	l, err := n.L.Eval(b)
	if err != nil {
		return nil, err
	}
	r, err := n.R.Eval(b)
	if err != nil {
		return nil, err
	}
	fn := binaryFuncs[n.Op]
	if fn == nil {
		return nil, fmt.Errorf("expr: %s is not a binary operator", n.Op)
	}
	out, err := tensor.Zip(l, r, fn)
	if err != nil {
		return nil, fmt.Errorf("expr: %s: %w", n, err)
	}
	return out, nil
}
func (n *Binary) String() string   { return "(" + n.L.String() + " " + n.Op.String() + " " + n.R.String() + ")" }
func (n *Binary) children() []Node { return []Node{n.L, n.R} }

// Cond evaluates both branches and selects elementwise.
type Cond struct {
	If, Then, Else Node
}

func (c *Cond) Eval(b Bindings) (*tensor.Tensor, error) {
	cond, err := c.If.Eval(b)
	if err != nil {
		return nil, err
	}
	a, err := c.Then.Eval(b)
	if err != nil {
		return nil, err
	}
	e, err := c.Else.Eval(b)
	if err != nil {
		return nil, err
	}
	return tensor.Where(cond, a, e)
}
func (c *Cond) String() string {
	return "(" + c.If.String() + " ? " + c.Then.String() + " : " + c.Else.String() + ")"
}
func (c *Cond) children() []Node { return []Node{c.If, c.Then, c.Else} }

// Call invokes a built-in function.
type Call struct {
	Name string
	Args []Node
	fn   *builtin
}

func (c *Call) Eval(b Bindings) (*tensor.Tensor, error) {
	args := make([]*tensor.Tensor, len(c.Args))
	for i, a := range c.Args {
		v, err := a.Eval(b)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	out, err := c.fn.eval(args)
	if err != nil {
		return nil, fmt.Errorf("expr: %s: %w", c.Name, err)
	}
	return out, nil
}

func (c *Call) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}
func (c *Call) children() []Node { return c.Args }

// goFunc wraps a Go closure whose arguments are named explicitly.
type goFunc struct {
	params []Node
	fn     func(args []*tensor.Tensor) (*tensor.Tensor, error)
}

func (g *goFunc) Eval(b Bindings) (*tensor.Tensor, error) {
	args := make([]*tensor.Tensor, len(g.params))
	for i, p := range g.params {
		v, err := p.Eval(b)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return g.fn(args)
}

func (g *goFunc) String() string {
	parts := make([]string, len(g.params))
	for i, p := range g.params {
		parts[i] = p.String()
	}
	return "func(" + strings.Join(parts, ", ") + ")"
}
func (g *goFunc) children() []Node { return g.params }

// UnboundError reports an argument with no value at evaluation time.
type UnboundError struct {
	Name string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("expr: no value bound for %q", e.Name)
}

// walk visits n and its descendants depth-first, left to right.
func walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.children() {
		walk(c, fn)
	}
}
