package dynamo

import (
	"fmt"
	"sort"
)

// SizeGroup is a named dimension; its extent is the number of labels.
type SizeGroup struct {
	Name        string
	Labels      []string
	Description string
}

func (g SizeGroup) Extent() int { return len(g.Labels) }

// Preset is a named bundle of overrides. Values hold anything ParseLiteral
// accepts.
type Preset struct {
	Name    string
	Comment string
	Values  map[string]any
}

// Definition is a model as declared. Fields keep declaration order, which
// breaks ties in the resolved order.
type Definition struct {
	Name        string
	Description string
	Fields      []FieldSpec
	Sizes       []SizeGroup
	Presets     []Preset
	// Order, when set, replaces the computed statevar order.
	Order []string
}

func (d *Definition) Preset(name string) (*Preset, error) {
	names := make([]string, len(d.Presets))
	for i := range d.Presets {
		if d.Presets[i].Name == name {
			return &d.Presets[i], nil
		}
		names[i] = d.Presets[i].Name
	}
	return nil, &UnknownPresetError{Model: d.Name, Name: name, Suggestion: Suggest(name, names)}
}

func (d *Definition) PresetNames() []string {
	names := make([]string, len(d.Presets))
	for i, p := range d.Presets {
		names[i] = p.Name
	}
	return names
}

// Merge combines d with other. On a name collision other wins and takes
// the position of the entry it replaces. The explicit order is kept only
// when other supplies one, since d's order cannot cover other's fields.
func (d *Definition) Merge(other *Definition) *Definition {
	out := &Definition{
		Name:        d.Name + "+" + other.Name,
		Description: d.Description,
		Order:       append([]string(nil), other.Order...),
	}
	if out.Description == "" {
		out.Description = other.Description
	}

	out.Fields = append(out.Fields, d.Fields...)
	for _, f := range other.Fields {
		replaced := false
		for i := range out.Fields {
			if out.Fields[i].Name == f.Name {
				out.Fields[i] = f
				replaced = true
			}
		}
		if !replaced {
			out.Fields = append(out.Fields, f)
		}
	}

	out.Sizes = append(out.Sizes, d.Sizes...)
	for _, g := range other.Sizes {
		if i := indexOf(out.Sizes, g.Name, func(s SizeGroup) string { return s.Name }); i >= 0 {
			out.Sizes[i] = g
		} else {
			out.Sizes = append(out.Sizes, g)
		}
	}

	out.Presets = append(out.Presets, d.Presets...)
	for _, p := range other.Presets {
		if i := indexOf(out.Presets, p.Name, func(p Preset) string { return p.Name }); i >= 0 {
			out.Presets[i] = p
		} else {
			out.Presets = append(out.Presets, p)
		}
	}
	return out
}

func indexOf[T any](xs []T, name string, key func(T) string) int {
	for i, x := range xs {
		if key(x) == name {
			return i
		}
	}
	return -1
}

// Library is the shared set of default fields merged into every model.
// It is immutable once built.
type Library struct {
	fields map[string]FieldSpec
	sizes  map[string]SizeGroup
}

// NewLibrary indexes specs by name. Duplicates are rejected.
func NewLibrary(specs []FieldSpec, sizes []SizeGroup) (*Library, error) {
	lib := &Library{
		fields: make(map[string]FieldSpec, len(specs)),
		sizes:  make(map[string]SizeGroup, len(sizes)),
	}
	for _, s := range specs {
		if prev, ok := lib.fields[s.Name]; ok {
			return nil, &FieldConflictError{Name: s.Name, Kinds: []Kind{prev.Kind, s.Kind}}
		}
		lib.fields[s.Name] = s
	}
	for _, g := range sizes {
		lib.sizes[g.Name] = g
	}
	return lib, nil
}

func (l *Library) Lookup(name string) (FieldSpec, bool) {
	if l == nil {
		return FieldSpec{}, false
	}
	s, ok := l.fields[name]
	return s, ok
}

// Names returns the library field names sorted.
func (l *Library) Names() []string {
	if l == nil {
		return nil
	}
	names := make([]string, 0, len(l.fields))
	for n := range l.fields {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (l *Library) Len() int {
	if l == nil {
		return 0
	}
	return len(l.fields)
}

func (l *Library) String() string { return fmt.Sprintf("library(%d fields)", l.Len()) }
