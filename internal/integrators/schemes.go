package integrators

import (
	"sort"
	"strings"

	"github.com/san-kum/gemsim/internal/dynamo"
)

// Default is the scheme used when none is named.
const Default = "rk4"

var schemes = map[string]func() dynamo.Integrator{
	"euler": func() dynamo.Integrator { return NewEuler() },
	"rk2":   func() dynamo.Integrator { return NewRK2() },
	"rk4":   func() dynamo.Integrator { return NewRK4() },
	"rk45":  func() dynamo.Integrator { return NewRK45() },
}

// ByName returns a fresh integrator. Names are case-insensitive; the empty
// name selects Default.
func ByName(name string) (dynamo.Integrator, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = Default
	}
	if f, ok := schemes[key]; ok {
		return f(), nil
	}
	return nil, &dynamo.UnknownSchemeError{Name: name, Suggestion: dynamo.Suggest(key, Names())}
}

func Names() []string {
	names := make([]string, 0, len(schemes))
	for n := range schemes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
