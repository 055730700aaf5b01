// Package automation runs scripted batches of experiments and Monte Carlo
// trials over perturbed initial conditions.
package automation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/gemsim/internal/catalog"
	"github.com/san-kum/gemsim/internal/config"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/experiment"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
	"github.com/san-kum/gemsim/internal/store"
)

// Scenario is a scripted sequence of runs.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep is one run of a scenario. Unset run settings are resolved
// like a config file.
type ScenarioStep struct {
	Model      string         `yaml:"model"`
	Preset     string         `yaml:"preset"`
	Integrator string         `yaml:"integrator"`
	Dt         float64        `yaml:"dt"`
	Duration   float64        `yaml:"duration"`
	Steps      int            `yaml:"steps"`
	Parallel   int            `yaml:"parallel"`
	Regions    int            `yaml:"regions"`
	Set        map[string]any `yaml:"set"`
	// SaveAs exports the trajectories, as JSON when it ends in .json and
	// as CSV otherwise.
	SaveAs string `yaml:"save_as"`
}

func (s ScenarioStep) config() *config.Config {
	return &config.Config{
		Model:      s.Model,
		Preset:     s.Preset,
		Integrator: s.Integrator,
		Dt:         s.Dt,
		Duration:   s.Duration,
		Steps:      s.Steps,
		Parallel:   s.Parallel,
		Regions:    s.Regions,
		Set:        s.Set,
	}
}

// LoadScenario loads a scenario from a YAML file. Relative save_as paths
// are taken relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("automation: %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("automation: %s: scenario has no steps", path)
	}
	dir := filepath.Dir(path)
	for i := range scenario.Steps {
		if p := scenario.Steps[i].SaveAs; p != "" && !filepath.IsAbs(p) {
			scenario.Steps[i].SaveAs = filepath.Join(dir, p)
		}
	}
	return &scenario, nil
}

// RunScenario executes the steps in order and stops at the first failure.
// The instances of the steps that ran are returned in either case.
func RunScenario(ctx context.Context, scenario *Scenario, cat *catalog.Catalog, log *zap.Logger) ([]*sim.Instance, error) {
	if log == nil {
		log = zap.NewNop()
	}
	results := make([]*sim.Instance, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		log.Info("scenario step", zap.String("scenario", scenario.Name), zap.Int("step", i+1),
			zap.Int("of", len(scenario.Steps)), zap.String("model", step.Model))

		cfg := step.config()
		cfg.Resolve()
		if err := cfg.Validate(); err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		exp := experiment.New(cat, experiment.FromConfig(cfg), experiment.WithLogger(log))
		if err := exp.Setup(); err != nil {
			return results, fmt.Errorf("step %d setup: %w", i+1, err)
		}
		inst, err := exp.Run(ctx)
		results = append(results, inst)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		if step.SaveAs != "" {
			if err := save(step.SaveAs, inst); err != nil {
				return results, fmt.Errorf("step %d save: %w", i+1, err)
			}
			log.Info("trajectories saved", zap.String("path", step.SaveAs))
		}
	}

	return results, nil
}

func save(path string, inst *sim.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = store.ExportJSON(f, inst, nil)
	} else {
		err = store.ExportCSV(f, inst, nil)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// MonteCarloConfig defines Monte Carlo simulation parameters. Every trial
// shifts the initial value of Fields by a uniform draw in
// [-Perturbation, Perturbation].
type MonteCarloConfig struct {
	Model        string
	Integrator   string
	Overrides    map[string]any
	Fields       []string
	Perturbation float64
	NumTrials    int
	Steps        int
	Dt           float64
	// Seed fixes the random sequence, so equal configs draw equal trials.
	Seed int64
	// Bound is the magnitude past which a final value counts as unstable;
	// 0 means 1e6.
	Bound float64
}

// MonteCarloResult holds the initial and final values of one trial.
type MonteCarloResult struct {
	TrialID int
	Initial map[string]float64
	Final   map[string]float64
	Stable  bool // Did simulation remain bounded?
}

// RunMonteCarlo runs every trial side by side on the parallel axis of a
// single instance. A run that fails marks every trial unstable.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, cat *catalog.Catalog, log *zap.Logger) ([]MonteCarloResult, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NumTrials < 1 {
		return nil, fmt.Errorf("automation: monte carlo needs at least one trial")
	}
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("automation: monte carlo needs at least one field to perturb")
	}
	bound := cfg.Bound
	if bound == 0 {
		bound = 1e6
	}

	m, err := cat.Model(cfg.Model)
	if err != nil {
		return nil, err
	}
	integ, err := integrators.ByName(cfg.Integrator)
	if err != nil {
		return nil, err
	}

	overrides := make(map[string]any, len(cfg.Overrides)+len(cfg.Fields))
	for k, v := range cfg.Overrides {
		overrides[k] = v
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	initial := make(map[string][]float64, len(cfg.Fields))
	for _, name := range cfg.Fields {
		base, err := baseValue(m, cfg.Overrides, name)
		if err != nil {
			return nil, err
		}
		vals := make([]float64, cfg.NumTrials)
		for i := range vals {
			vals[i] = base + (rng.Float64()-0.5)*2*cfg.Perturbation
		}
		initial[name] = vals
		overrides[name] = vals
	}

	inst, err := sim.Instantiate(m, overrides, sim.RunShape{Steps: cfg.Steps, Parallel: cfg.NumTrials})
	if err != nil {
		return nil, err
	}
	_, runErr := sim.New(integ, sim.WithLogger(log)).Run(ctx, inst, sim.Config{Dt: cfg.Dt})
	if runErr != nil && inst.Filled() == 0 {
		return nil, runErr
	}
	last := inst.Filled() - 1

	results := make([]MonteCarloResult, cfg.NumTrials)
	for trial := range results {
		r := MonteCarloResult{
			TrialID: trial,
			Initial: make(map[string]float64, len(cfg.Fields)),
			Final:   make(map[string]float64, len(cfg.Fields)),
			Stable:  runErr == nil,
		}
		for _, name := range cfg.Fields {
			tr, err := inst.Trajectory(name)
			if err != nil {
				return nil, err
			}
			v := tr.At(last, trial, 0, 0, 0)
			r.Initial[name] = initial[name][trial]
			r.Final[name] = v
			if math.IsNaN(v) || math.Abs(v) > bound {
				r.Stable = false
			}
		}
		results[trial] = r
	}

	stable, unstable := MonteCarloStats(results)
	log.Info("monte carlo complete", zap.String("model", cfg.Model), zap.Int("trials", cfg.NumTrials),
		zap.Int("stable", stable), zap.Int("unstable", unstable))
	return results, nil
}

// baseValue is the unperturbed initial value of a scalar differential
// field: its override when one is given, its declared initial otherwise.
func baseValue(m *sim.Model, overrides map[string]any, name string) (float64, error) {
	f, err := m.Registry().Field(name)
	if err != nil {
		return 0, err
	}
	d, ok := f.(*dynamo.Differential)
	if !ok {
		return 0, fmt.Errorf("automation: %s is a %s, only differential fields can be perturbed", name, f.Kind())
	}
	lit := d.Initial
	if v, ok := overrides[name]; ok {
		if lit, err = dynamo.ParseLiteral(v); err != nil {
			return 0, fmt.Errorf("automation: %s: %w", name, err)
		}
	}
	if lit == nil || !lit.IsScalar() || m.Registry().Dims(name) != expr.ScalarDims {
		return 0, fmt.Errorf("automation: %s must be a scalar to be perturbed", name)
	}
	return lit.Data[0], nil
}

// MonteCarloStats counts stable and unstable trials.
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
