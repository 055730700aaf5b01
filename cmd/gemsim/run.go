package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/gemsim/internal/analysis"
	"github.com/san-kum/gemsim/internal/experiment"
	"github.com/san-kum/gemsim/internal/sim"
	"github.com/san-kum/gemsim/internal/store"
)

func (c *cli) runCmd() *cobra.Command {
	var (
		rf     runFlags
		format string
		fields []string
		output string
	)

	cmd := &cobra.Command{
		Use:   "run [model]",
		Short: "Run a model and print a summary or its trajectories",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.runConfig(cmd, args, &rf)
			if err != nil {
				return err
			}

			exp := experiment.New(c.cat, experiment.FromConfig(cfg),
				experiment.WithLogger(c.log),
				experiment.WithObserver(sim.NewProgressLogger(c.log, 100)),
			)
			if err := exp.Setup(); err != nil {
				return err
			}
			inst, runErr := exp.Run(cmd.Context())
			if runErr != nil && inst.Filled() == 0 {
				return runErr
			}
			if runErr != nil {
				c.log.Warn("run failed", zap.Error(runErr), zap.Int("filled", inst.Filled()))
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			switch format {
			case "table":
				err = printSummary(w, inst, cfg.Dt)
			case "csv":
				err = store.ExportCSV(w, inst, fields)
			case "json":
				err = store.ExportJSON(w, inst, fields)
			default:
				err = fmt.Errorf("unknown format %q, want table, csv or json", format)
			}
			if err != nil {
				return err
			}
			return runErr
		},
	}

	rf.register(cmd, true)
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, csv, json)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "fields to export, all when empty")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func printSummary(w io.Writer, inst *sim.Instance, dt float64) error {
	summary, err := analysis.Summary(inst)
	if err != nil {
		return err
	}

	shape := inst.Shape()
	heading(w, inst.Model().Name(), inst.ID().String())
	fmt.Fprintf(w, "status: %s  slices: %d/%d  dt: %g  parallel: %d  regions: %d\n",
		statusText(inst.Err() == nil, inst.Status().String()),
		inst.Filled(), shape.Steps, dt, shape.Parallel, shape.Regions)
	if err := inst.Err(); err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tKIND\tRUN\tMIN\tMAX\tMEAN\tFINAL")
	for _, s := range summary {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.6g\t%.6g\t%.6g\t%.6g\n",
			s.Field, s.Kind, s.Parallel, s.Min, s.Max, s.Mean, s.Final)
	}
	return tw.Flush()
}
