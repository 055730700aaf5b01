package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/gemsim/internal/automation"
)

func (c *cli) scriptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "script <scenario.yaml>",
		Short: "Run the steps of a scenario file in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := automation.LoadScenario(args[0])
			if err != nil {
				return err
			}
			insts, runErr := automation.RunScenario(cmd.Context(), sc, c.cat, c.log)

			w := cmd.OutOrStdout()
			heading(w, sc.Name, sc.Description)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "STEP\tMODEL\tSTATUS\tSLICES\tSAVED")
			for i, inst := range insts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\n", i+1, inst.Model().Name(),
					statusText(inst.Err() == nil, inst.Status().String()),
					inst.Filled(), inst.Shape().Steps, sc.Steps[i].SaveAs)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			return runErr
		},
	}
}

func (c *cli) monteCarloCmd() *cobra.Command {
	var (
		rf      runFlags
		fields  []string
		perturb float64
		trials  int
		seed    int64
		bound   float64
	)

	cmd := &cobra.Command{
		Use:   "montecarlo [model]",
		Short: "Run trials from randomly perturbed initial values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.runConfig(cmd, args, &rf)
			if err != nil {
				return err
			}
			m, overrides, err := c.overrides(cfg)
			if err != nil {
				return err
			}
			if len(fields) == 0 {
				fields = scalarDifferentials(m)
			}

			results, err := automation.RunMonteCarlo(cmd.Context(), &automation.MonteCarloConfig{
				Model:        cfg.Model,
				Integrator:   cfg.Integrator,
				Overrides:    overrides,
				Fields:       fields,
				Perturbation: perturb,
				NumTrials:    trials,
				Steps:        cfg.NumSteps(),
				Dt:           cfg.Dt,
				Seed:         seed,
				Bound:        bound,
			}, c.cat, c.log)
			if err != nil {
				return err
			}

			stable, unstable := automation.MonteCarloStats(results)
			w := cmd.OutOrStdout()
			heading(w, cfg.Model, fmt.Sprintf("%d trials, %d stable, %d unstable", len(results), stable, unstable))

			names := append([]string(nil), fields...)
			sort.Strings(names)
			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			header := []string{"TRIAL", "STABLE"}
			for _, n := range names {
				header = append(header, n+"(0)", n+"(end)")
			}
			fmt.Fprintln(tw, strings.Join(header, "\t"))
			for _, r := range results {
				row := []string{fmt.Sprint(r.TrialID), fmt.Sprint(r.Stable)}
				for _, n := range names {
					row = append(row, fmt.Sprintf("%.6g", r.Initial[n]), fmt.Sprintf("%.6g", r.Final[n]))
				}
				fmt.Fprintln(tw, strings.Join(row, "\t"))
			}
			return tw.Flush()
		},
	}

	rf.register(cmd, false)
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "differential fields to perturb, every scalar one when empty")
	cmd.Flags().Float64Var(&perturb, "perturb", 0.01, "largest shift of an initial value")
	cmd.Flags().IntVarP(&trials, "trials", "n", 20, "number of trials")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed")
	cmd.Flags().Float64Var(&bound, "bound", 0, "magnitude past which a trial is unstable, 1e6 when 0")
	return cmd
}

