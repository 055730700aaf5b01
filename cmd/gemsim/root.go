package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/gemsim/internal/catalog"
	"github.com/san-kum/gemsim/internal/config"
	"github.com/san-kum/gemsim/internal/experiment"
	"github.com/san-kum/gemsim/internal/logging"
	"github.com/san-kum/gemsim/internal/sim"
)

// cli carries the state shared by every subcommand once the root
// pre-run hook has loaded the configuration.
type cli struct {
	configPath string
	modelDirs  []string
	logLevel   string

	cfg *config.Config
	log *zap.Logger
	cat *catalog.Catalog
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "gemsim",
		Short:        "Resolve and run coupled equation models",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.log != nil {
				_ = c.log.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file")
	root.PersistentFlags().StringSliceVar(&c.modelDirs, "models-dir", nil, "extra directories of model files")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		c.runCmd(),
		c.modelsCmd(),
		c.presetsCmd(),
		c.describeCmd(),
		c.sweepCmd(),
		c.analyzeCmd(),
		c.scriptCmd(),
		c.monteCarloCmd(),
	)
	return root
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = c.logLevel
	}

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}

	cat, err := catalog.New(catalog.WithLogger(log))
	if err != nil {
		return err
	}
	for _, dir := range append(cfg.ModelPaths, c.modelDirs...) {
		if err := cat.LoadDir(dir); err != nil {
			return err
		}
	}

	c.cfg, c.log, c.cat = cfg, log, cat
	return nil
}

// runFlags are the settings shared by every command that steps a model.
type runFlags struct {
	preset     string
	set        []string
	dt         float64
	duration   float64
	steps      int
	integrator string
	parallel   int
	regions    int
}

func (rf *runFlags) register(cmd *cobra.Command, parallel bool) {
	f := cmd.Flags()
	f.StringVarP(&rf.preset, "preset", "p", "", "model preset")
	f.StringArrayVarP(&rf.set, "set", "s", nil, "override a field, name=value (value is YAML, lists allowed)")
	f.Float64Var(&rf.dt, "dt", 0, "time step")
	f.Float64VarP(&rf.duration, "time", "t", 0, "simulated duration")
	f.IntVar(&rf.steps, "steps", 0, "number of time slices, overrides --time")
	f.StringVarP(&rf.integrator, "integrator", "i", "", "integration scheme")
	f.IntVar(&rf.regions, "regions", 0, "region axis extent")
	if parallel {
		f.IntVar(&rf.parallel, "parallel", 0, "parallel axis extent")
	}
}

// runConfig layers the command line over the loaded configuration and
// fills what is still unset from the model profile and the defaults.
func (c *cli) runConfig(cmd *cobra.Command, args []string, rf *runFlags) (*config.Config, error) {
	cfg := *c.cfg
	if len(args) > 0 {
		if args[0] != cfg.Model {
			// Run settings in the file belong to the model it names.
			cfg.Preset, cfg.Set = "", nil
		}
		cfg.Model = args[0]
	}

	f := cmd.Flags()
	if f.Changed("preset") {
		cfg.Preset = rf.preset
	}
	if f.Changed("dt") {
		cfg.Dt = rf.dt
	}
	if f.Changed("time") {
		cfg.Duration = rf.duration
		cfg.Steps = 0
	}
	if f.Changed("steps") {
		cfg.Steps = rf.steps
	}
	if f.Changed("integrator") {
		cfg.Integrator = rf.integrator
	}
	if f.Changed("parallel") {
		cfg.Parallel = rf.parallel
	}
	if f.Changed("regions") {
		cfg.Regions = rf.regions
	}
	if len(rf.set) > 0 {
		set, err := parseSet(rf.set)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]any, len(cfg.Set)+len(set))
		for k, v := range cfg.Set {
			merged[k] = v
		}
		for k, v := range set {
			merged[k] = v
		}
		cfg.Set = merged
	}

	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parseSet(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q, want name=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", kv, err)
		}
		if v == nil {
			return nil, fmt.Errorf("invalid --set %q: empty value", kv)
		}
		out[name] = v
	}
	return out, nil
}

func (c *cli) overrides(cfg *config.Config) (*sim.Model, map[string]any, error) {
	m, err := c.cat.Model(cfg.Model)
	if err != nil {
		return nil, nil, err
	}
	values, err := experiment.Overrides(m, cfg.Preset, cfg.Set)
	if err != nil {
		return nil, nil, err
	}
	return m, values, nil
}

func formatValues(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, values[k])
	}
	return strings.Join(parts, " ")
}
