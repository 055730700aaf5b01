package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/gemsim/internal/analysis"
	"github.com/san-kum/gemsim/internal/expr"
	"github.com/san-kum/gemsim/internal/integrators"
	"github.com/san-kum/gemsim/internal/sim"
	"github.com/san-kum/gemsim/internal/sweep"
)

func (c *cli) sweepCmd() *cobra.Command {
	var (
		rf          runFlags
		axes        []string
		chunks      int
		objective   string
		bifurcation string
		transient   int
	)

	cmd := &cobra.Command{
		Use:   "sweep [model]",
		Short: "Run a model over a grid of parameter values",
		Example: `  gemsim sweep predator-prey --axis A=0.5:1.5:5 --axis B=2,3
  gemsim sweep lorenz --axis rho=20:30:11 --bifurcation z --transient 2000`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(axes) == 0 {
				return fmt.Errorf("at least one --axis is required")
			}
			cfg, err := c.runConfig(cmd, args, &rf)
			if err != nil {
				return err
			}
			m, base, err := c.overrides(cfg)
			if err != nil {
				return err
			}

			parsed := make([]sweep.Axis, len(axes))
			for i, a := range axes {
				if parsed[i], err = sweep.ParseAxis(a); err != nil {
					return err
				}
			}
			grid, err := sweep.NewGrid(parsed...)
			if err != nil {
				return err
			}

			integ, err := integrators.ByName(cfg.Integrator)
			if err != nil {
				return err
			}
			runner := sweep.NewRunner(m, sim.New(integ, sim.WithLogger(c.log)),
				sim.Config{Dt: cfg.Dt}, cfg.NumSteps(),
				sweep.WithLogger(c.log),
				sweep.WithChunks(chunks),
				sweep.WithRegions(cfg.Regions),
			)
			w := cmd.OutOrStdout()

			if objective != "" {
				best, val, err := sweep.NewGridSearch(runner, grid).Search(cmd.Context(), base, sweep.FinalValue(objective))
				if err != nil {
					return err
				}
				heading(w, m.Name(), fmt.Sprintf("minimum of final %s over %d points", objective, grid.Len()))
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				for _, a := range grid.Axes() {
					fmt.Fprintf(tw, "%s\t%g\n", a.Name, best[a.Name])
				}
				fmt.Fprintf(tw, "%s\t%.6g\n", objective, val)
				return tw.Flush()
			}

			res, err := runner.Run(cmd.Context(), grid, base)
			if res == nil {
				return err
			}
			if bifurcation != "" {
				diagram, err := analysis.BifurcationDiagram(res, bifurcation, transient)
				if err != nil {
					return err
				}
				return printBifurcation(w, m.Name(), grid.Axes()[0].Name, bifurcation, diagram)
			}
			if perr := printSweep(w, m, res); perr != nil {
				return perr
			}
			return err
		},
	}

	rf.register(cmd, false)
	cmd.Flags().StringArrayVarP(&axes, "axis", "a", nil, "sweep axis, name=v1,v2,... or name=lo:hi:n")
	cmd.Flags().IntVar(&chunks, "chunks", 0, "number of concurrent instances, GOMAXPROCS when 0")
	cmd.Flags().StringVar(&objective, "objective", "", "report the point minimising the final value of this field")
	cmd.Flags().StringVar(&bifurcation, "bifurcation", "", "report the distinct maxima of this field per value of a single axis")
	cmd.Flags().IntVar(&transient, "transient", 0, "slices discarded before looking for maxima")
	cmd.MarkFlagsMutuallyExclusive("objective", "bifurcation")
	return cmd
}

// printSweep writes one row per grid point holding the final value of every
// scalar differential field.
func printSweep(w io.Writer, m *sim.Model, res *sweep.Result) error {
	reg := m.Registry()
	var cols []string
	for _, f := range reg.Differentials() {
		if reg.Dims(f.Name()) == expr.ScalarDims {
			cols = append(cols, f.Name())
		}
	}

	heading(w, m.Name(), fmt.Sprintf("%d points", res.Grid.Len()))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	var header []string
	for _, a := range res.Grid.Axes() {
		header = append(header, a.Name)
	}
	header = append(header, cols...)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(header, "\t")))

	for i := 0; i < res.Grid.Len(); i++ {
		point := res.Grid.Point(i)
		row := make([]string, 0, len(header))
		for _, a := range res.Grid.Axes() {
			row = append(row, fmt.Sprintf("%g", point[a.Name]))
		}
		for _, name := range cols {
			s, err := res.Series(name, i)
			if err != nil {
				row = append(row, statusText(false, "failed"))
				continue
			}
			row = append(row, fmt.Sprintf("%.6g", s[len(s)-1]))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func printBifurcation(w io.Writer, model, param, field string, diagram []analysis.BifurcationPoint) error {
	heading(w, model, fmt.Sprintf("maxima of %s against %s", field, param))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCOUNT\tMAXIMA\n", strings.ToUpper(param))
	for _, p := range diagram {
		vals := make([]string, len(p.Values))
		for i, v := range p.Values {
			vals[i] = fmt.Sprintf("%.4g", v)
		}
		fmt.Fprintf(tw, "%g\t%d\t%s\n", p.Param, len(p.Values), strings.Join(vals, " "))
	}
	return tw.Flush()
}
