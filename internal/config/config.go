package config

import (
	"fmt"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel      = "goodwin"
	DefaultIntegrator = "rk4"
	DefaultDt         = 0.01
	DefaultDuration   = 10.0
	DefaultLogLevel   = "info"
)

// Config describes one run. Zero run settings are filled by Resolve from
// the model's profile and then from the package defaults.
type Config struct {
	Model      string         `yaml:"model"`
	Preset     string         `yaml:"preset,omitempty"`
	Integrator string         `yaml:"integrator,omitempty"`
	Dt         float64        `yaml:"dt,omitempty"`
	Duration   float64        `yaml:"duration,omitempty"`
	Steps      int            `yaml:"steps,omitempty"`
	Parallel   int            `yaml:"parallel,omitempty"`
	Regions    int            `yaml:"regions,omitempty"`
	Set        map[string]any `yaml:"set,omitempty"`
	ModelPaths []string       `yaml:"model_paths,omitempty"`
	LogLevel   string         `yaml:"log_level,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Model:    DefaultModel,
		LogLevel: DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve fills unset run settings from the model's profile, then from
// the defaults.
func (c *Config) Resolve() {
	if p := GetProfile(c.Model); p != nil {
		if c.Integrator == "" {
			c.Integrator = p.Integrator
		}
		if c.Dt == 0 {
			c.Dt = p.Dt
		}
		if c.Duration == 0 && c.Steps == 0 {
			c.Duration = p.Duration
		}
	}
	if c.Integrator == "" {
		c.Integrator = DefaultIntegrator
	}
	if c.Dt == 0 {
		c.Dt = DefaultDt
	}
	if c.Duration == 0 && c.Steps == 0 {
		c.Duration = DefaultDuration
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// NumSteps is the number of time slices, counting the initial one.
func (c *Config) NumSteps() int {
	if c.Steps > 0 {
		return c.Steps
	}
	if c.Dt <= 0 {
		return 0
	}
	return int(math.Round(c.Duration/c.Dt)) + 1
}

func (c *Config) Validate() error {
	var errs *multierror.Error
	if c.Model == "" {
		errs = multierror.Append(errs, fmt.Errorf("config: model is required"))
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		errs = multierror.Append(errs, fmt.Errorf("config: dt must be positive, got %g", c.Dt))
	}
	if c.Duration < 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: duration must not be negative, got %g", c.Duration))
	}
	if c.Steps < 0 || c.Parallel < 0 || c.Regions < 0 {
		errs = multierror.Append(errs, fmt.Errorf("config: steps, parallel and regions must not be negative"))
	}
	if c.Dt > 0 && c.NumSteps() < 1 {
		errs = multierror.Append(errs, fmt.Errorf("config: run has no time slices"))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = multierror.Append(errs, fmt.Errorf("config: unknown log level %q", c.LogLevel))
	}
	return errs.ErrorOrNil()
}
