package config

import "sort"

// Profiles holds run settings that suit each built-in model. Model
// presets change field values; profiles change how the run is stepped.
var Profiles = map[string]*Config{
	"goodwin": {
		Model: "goodwin", Integrator: "rk4", Dt: 0.01, Duration: 100.0,
	},
	"predator-prey": {
		Model: "predator-prey", Integrator: "rk4", Dt: 0.01, Duration: 3.0,
	},
	"lotka-volterra": {
		Model: "lotka-volterra", Integrator: "rk4", Dt: 0.01, Duration: 30.0,
	},
	"lorenz": {
		Model: "lorenz", Integrator: "rk45", Dt: 0.005, Duration: 40.0,
	},
	"multisector": {
		Model: "multisector", Integrator: "euler", Dt: 0.05, Duration: 20.0,
	},
}

// GetProfile returns a copy of the model's profile, nil when it has none.
func GetProfile(model string) *Config {
	p, ok := Profiles[model]
	if !ok {
		return nil
	}
	cfg := *p
	return &cfg
}

func ListProfiles() []string {
	names := make([]string, 0, len(Profiles))
	for name := range Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
