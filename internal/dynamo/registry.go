package dynamo

import (
	"errors"
	"fmt"
	"regexp"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/san-kum/gemsim/internal/expr"
)

var validName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry is the validated, merged set of fields of one model. It is
// read-only after BuildRegistry returns.
type Registry struct {
	model  string
	names  []string
	fields map[string]Field
	index  map[string]int
	dims   map[string]expr.Dims
	sizes  map[string]SizeGroup
}

// BuildRegistry merges the library into def and validates the result. A
// model declaration replaces a library entry of the same name entirely.
// Library fields the model does not declare are always included. All
// problems found are returned together.
func BuildRegistry(lib *Library, def *Definition) (*Registry, error) {
	var errs *multierror.Error

	specs := make([]FieldSpec, 0, len(def.Fields)+lib.Len())
	pos := make(map[string]int, len(def.Fields))
	for _, s := range def.Fields {
		if !validName.MatchString(s.Name) || s.Name == expr.SelfToken || s.Name == "self" {
			errs = multierror.Append(errs, fmt.Errorf("dynamo: invalid field name %q", s.Name))
			continue
		}
		if i, ok := pos[s.Name]; ok {
			if !s.Override {
				errs = multierror.Append(errs, &FieldConflictError{Name: s.Name, Kinds: []Kind{specs[i].Kind, s.Kind}})
				continue
			}
			specs[i] = s
			continue
		}
		pos[s.Name] = len(specs)
		specs = append(specs, s)
	}
	for _, name := range lib.Names() {
		if _, ok := pos[name]; !ok {
			s, _ := lib.Lookup(name)
			specs = append(specs, s)
		}
	}

	r := &Registry{
		model:  def.Name,
		fields: make(map[string]Field, len(specs)),
		index:  make(map[string]int, len(specs)),
		dims:   make(map[string]expr.Dims, len(specs)),
		sizes:  make(map[string]SizeGroup),
	}
	if lib != nil {
		for name, g := range lib.sizes {
			r.sizes[name] = g
		}
	}
	for _, g := range def.Sizes {
		r.sizes[g.Name] = g
	}

	for _, s := range specs {
		f, err := NewField(s)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		r.index[s.Name] = len(r.names)
		r.names = append(r.names, s.Name)
		r.fields[s.Name] = f
	}

	for _, name := range r.names {
		d, err := r.declaredDims(r.fields[name])
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		r.dims[name] = d
	}
	for _, name := range r.names {
		if _, ok := r.dims[name]; !ok {
			continue
		}
		for _, err := range r.check(r.fields[name]) {
			errs = multierror.Append(errs, err)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) declaredDims(f Field) (expr.Dims, error) {
	size := f.Size()
	if len(size) > 2 {
		return expr.Dims{}, &ShapeMismatchError{Field: f.Name(), Got: fmt.Sprintf("%d dimension groups, at most 2 supported", len(size))}
	}
	extents := []int{1, 1}
	for i, group := range size {
		g, ok := r.sizes[group]
		if !ok {
			return expr.Dims{}, &UnknownSizeError{Field: f.Name(), Size: group, Suggestion: Suggest(group, r.SizeNames())}
		}
		extents[i] = g.Extent()
	}
	return expr.Dims{Rows: extents[0], Cols: extents[1]}, nil
}

// check validates the arguments and static shape of f's rule, and the
// shape of its literal value.
func (r *Registry) check(f Field) []error {
	name, declared := f.Name(), r.dims[f.Name()]

	var lit *Literal
	switch f := f.(type) {
	case *Parameter:
		lit = f.Value
	case *Differential:
		lit = f.Initial
	}
	if lit != nil {
		if _, err := lit.Fit(name, declared); err != nil {
			return []error{err}
		}
	}

	eq := f.Rule()
	if eq == nil {
		return nil
	}

	var errs []error
	if eq.UsesSelf() && f.Kind() != KindDifferential {
		errs = append(errs, &UnresolvedArgumentError{
			Field: name, Arg: expr.SelfToken,
			Reason: "self reference is only valid in a differential rule",
		})
	}
	for _, arg := range eq.Args() {
		target, ok := r.fields[arg]
		if !ok {
			if _, ok := eq.Default(arg); ok {
				continue
			}
			errs = append(errs, &UnresolvedArgumentError{Field: name, Arg: arg, Suggestion: Suggest(arg, r.names)})
			continue
		}
		if f.Kind() == KindParameter && target.Kind() != KindParameter {
			errs = append(errs, &UnresolvedArgumentError{
				Field: name, Arg: arg,
				Reason: fmt.Sprintf("parameter equations may only read parameters, not %s", target.Kind()),
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}

	got, err := eq.InferShape(r.lookupDims, declared)
	switch {
	case errors.Is(err, expr.ErrOpaqueShape):
	case err != nil:
		errs = append(errs, &ShapeMismatchError{Field: name, Declared: declared, Err: err})
	case !got.BroadcastsTo(declared):
		errs = append(errs, &ShapeMismatchError{Field: name, Declared: declared, Got: got.String()})
	}
	return errs
}

func (r *Registry) lookupDims(name string) (expr.Dims, bool) {
	d, ok := r.dims[name]
	return d, ok
}

// Model is the name of the definition the registry was built from.
func (r *Registry) Model() string { return r.model }

func (r *Registry) Lookup(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Field is Lookup with a descriptive error.
func (r *Registry) Field(name string) (Field, error) {
	if f, ok := r.fields[name]; ok {
		return f, nil
	}
	return nil, &UnknownFieldError{Name: name, Suggestion: Suggest(name, r.names)}
}

// Names returns all field names: model declarations in order, then library
// defaults sorted.
func (r *Registry) Names() []string { return r.names }
func (r *Registry) Len() int        { return len(r.names) }

// Index is the declaration position of name, or -1.
func (r *Registry) Index(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

// Dims is the declared (row, col) extent of a field.
func (r *Registry) Dims(name string) expr.Dims { return r.dims[name] }

func (r *Registry) ByKind(k Kind) []Field {
	var out []Field
	for _, name := range r.names {
		if f := r.fields[name]; f.Kind() == k {
			out = append(out, f)
		}
	}
	return out
}

func (r *Registry) Parameters() []Field    { return r.ByKind(KindParameter) }
func (r *Registry) Differentials() []Field { return r.ByKind(KindDifferential) }
func (r *Registry) Statevars() []Field     { return r.ByKind(KindStatevar) }

func (r *Registry) SizeGroup(name string) (SizeGroup, bool) {
	g, ok := r.sizes[name]
	return g, ok
}

// SizeNames returns the size group names sorted.
func (r *Registry) SizeNames() []string {
	names := make([]string, 0, len(r.sizes))
	for n := range r.sizes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
