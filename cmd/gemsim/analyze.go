package main

import (
	"fmt"
	"math"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/gemsim/internal/analysis"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/experiment"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
)

func (c *cli) analyzeCmd() *cobra.Command {
	var (
		rf       runFlags
		field    string
		lyapunov bool
		eps      float64
	)

	cmd := &cobra.Command{
		Use:   "analyze [model]",
		Short: "Run a model and report the periodicity of one field",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.runConfig(cmd, args, &rf)
			if err != nil {
				return err
			}
			if cfg.Parallel > 1 {
				return fmt.Errorf("analyze works on a single run, got parallel %d", cfg.Parallel)
			}

			exp := experiment.New(c.cat, experiment.FromConfig(cfg), experiment.WithLogger(c.log))
			if err := exp.Setup(); err != nil {
				return err
			}
			inst, err := exp.Run(cmd.Context())
			if err != nil {
				return err
			}
			m := inst.Model()
			if inst.Shape().Parallel > 1 {
				return fmt.Errorf("analyze works on a single run, the overrides spread %s over %d runs", m.Name(), inst.Shape().Parallel)
			}

			if field == "" {
				if field = firstScalarDifferential(m); field == "" {
					return fmt.Errorf("model %s has no scalar differential field, use --field", m.Name())
				}
			}
			if reg := m.Registry(); reg.Dims(field) != expr.ScalarDims {
				if _, err := reg.Field(field); err != nil {
					return err
				}
				return fmt.Errorf("field %s is not a scalar", field)
			}
			tr, err := inst.Trajectory(field)
			if err != nil {
				return err
			}
			series := tr.Series(0, 0, 0, 0)
			times := inst.Times()

			w := cmd.OutOrStdout()
			heading(w, m.Name(), fmt.Sprintf("%s over t in [%g, %g]", field, times[0], times[len(times)-1]))
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

			if period, ok := analysis.DominantPeriod(series, cfg.Dt); ok {
				fmt.Fprintf(tw, "dominant period\t%.6g\n", period)
			} else {
				fmt.Fprintf(tw, "dominant period\t%s\n", subtleStyle.Render("none"))
			}

			cycles := analysis.FindCycles(series, times)
			fmt.Fprintf(tw, "cycles\t%d\n", len(cycles))
			if len(cycles) > 0 {
				var period, amp float64
				for _, cy := range cycles {
					period += cy.Period
					amp += cy.Amplitude
				}
				n := float64(len(cycles))
				fmt.Fprintf(tw, "mean cycle period\t%.6g\n", period/n)
				fmt.Fprintf(tw, "mean amplitude\t%.6g\n", amp/n)
			}
			fmt.Fprintf(tw, "mean variation rate\t%.6g\n", meanFinite(analysis.VariationRate(series, cfg.Dt)))

			if lyapunov {
				integ, err := integrators.ByName(cfg.Integrator)
				if err != nil {
					return err
				}
				_, overrides, err := c.overrides(cfg)
				if err != nil {
					return err
				}
				target := firstScalarDifferential(m)
				if f, _ := m.Registry().Field(field); f != nil && f.Kind() == dynamo.KindDifferential {
					target = field
				}
				lambda, err := analysis.LyapunovExponent(cmd.Context(), m, sim.New(integ, sim.WithLogger(c.log)),
					overrides, target, eps, cfg.NumSteps(), cfg.Dt)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "lyapunov exponent (%s)\t%.6g\n", target, lambda)
			}
			return tw.Flush()
		},
	}

	rf.register(cmd, false)
	cmd.Flags().StringVar(&field, "field", "", "scalar field to analyse, the first scalar differential when empty")
	cmd.Flags().BoolVar(&lyapunov, "lyapunov", false, "also estimate the largest Lyapunov exponent")
	cmd.Flags().Float64Var(&eps, "eps", 1e-8, "initial perturbation for the Lyapunov estimate")
	return cmd
}

// scalarDifferentials lists the scalar differential fields of m other than
// the library clock.
func scalarDifferentials(m *sim.Model) []string {
	reg := m.Registry()
	var names []string
	for _, f := range reg.Differentials() {
		if f.Name() != "time" && reg.Dims(f.Name()) == expr.ScalarDims {
			names = append(names, f.Name())
		}
	}
	return names
}

func firstScalarDifferential(m *sim.Model) string {
	if names := scalarDifferentials(m); len(names) > 0 {
		return names[0]
	}
	return ""
}

func meanFinite(xs []float64) float64 {
	sum, n := 0.0, 0
	for _, x := range xs {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			sum += x
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
