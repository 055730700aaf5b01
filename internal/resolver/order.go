package resolver

import (
	"sort"

	"github.com/san-kum/gemsim/internal/dynamo"
)

// Args partitions the arguments of a field's rule by the kind of field they
// name. Defaults holds arguments satisfied by an equation default.
type Args struct {
	Parameters    []string
	Statevars     []string
	Differentials []string
	Defaults      []string
}

func Partition(reg *dynamo.Registry, f dynamo.Field) Args {
	var a Args
	eq := f.Rule()
	if eq == nil {
		return a
	}
	for _, name := range eq.Args() {
		target, ok := reg.Lookup(name)
		if !ok {
			a.Defaults = append(a.Defaults, name)
			continue
		}
		switch target.Kind() {
		case dynamo.KindParameter:
			a.Parameters = append(a.Parameters, name)
		case dynamo.KindStatevar:
			a.Statevars = append(a.Statevars, name)
		case dynamo.KindDifferential:
			a.Differentials = append(a.Differentials, name)
		}
	}
	return a
}

// ResolveOrder returns the statevar fields of reg in an order where every
// statevar comes after the statevars it reads.
func ResolveOrder(reg *dynamo.Registry) ([]string, error) {
	fields := reg.Statevars()
	items := make([]Item, len(fields))
	for i, f := range fields {
		a := Partition(reg, f)
		items[i] = Item{Name: f.Name(), Deps: a.Statevars, Weight: len(a.Parameters)}
	}
	return Sort(items)
}

// ParameterOrder orders the parameters defined by equations. Constant
// parameters are not included.
func ParameterOrder(reg *dynamo.Registry) ([]string, error) {
	var items []Item
	for _, f := range reg.Parameters() {
		if f.Rule() == nil {
			continue
		}
		var deps []string
		weight := 0
		for _, name := range Partition(reg, f).Parameters {
			if p, _ := reg.Lookup(name); p.Rule() != nil {
				deps = append(deps, name)
			} else {
				weight++
			}
		}
		items = append(items, Item{Name: f.Name(), Deps: deps, Weight: weight})
	}
	return Sort(items)
}

// ValidateOrder checks that order names every statevar exactly once and
// nothing else.
func ValidateOrder(reg *dynamo.Registry, order []string) error {
	want := make(map[string]bool)
	for _, f := range reg.Statevars() {
		want[f.Name()] = true
	}

	var e dynamo.IncompleteOrderError
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		switch {
		case seen[name]:
			e.Duplicate = append(e.Duplicate, name)
		case !want[name]:
			e.Extra = append(e.Extra, name)
		}
		seen[name] = true
	}
	for name := range want {
		if !seen[name] {
			e.Missing = append(e.Missing, name)
		}
	}
	sort.Strings(e.Missing)

	if len(e.Missing)+len(e.Extra)+len(e.Duplicate) > 0 {
		return &e
	}
	return nil
}

// Lagged returns the statevars in order that read another statevar placed
// at or after them. Such reads see the previous time slice.
func Lagged(reg *dynamo.Registry, order []string) []string {
	at := make(map[string]int, len(order))
	for i, name := range order {
		at[name] = i
	}
	var out []string
	for i, name := range order {
		f, ok := reg.Lookup(name)
		if !ok {
			continue
		}
		for _, dep := range Partition(reg, f).Statevars {
			if at[dep] >= i {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
