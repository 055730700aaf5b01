package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/san-kum/gemsim/internal/config"
	"github.com/san-kum/gemsim/internal/dynamo"
	"github.com/san-kum/gemsim/internal/integrators"
)

func (c *cli) modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			heading(w, "models", fmt.Sprintf("integrators: %s", strings.Join(integrators.Names(), ", ")))

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tPRESETS\tSOURCE\tDESCRIPTION")
			for _, name := range c.cat.Names() {
				def, err := c.cat.Definition(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", name, len(def.Presets), c.cat.Source(name), def.Description)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets <model>",
		Short: "List the presets of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := c.cat.Definition(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			heading(w, def.Name, "presets")
			if len(def.Presets) == 0 {
				fmt.Fprintln(w, subtleStyle.Render("no presets"))
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVALUES\tCOMMENT")
			for _, p := range def.Presets {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, formatValues(p.Values), p.Comment)
			}
			return tw.Flush()
		},
	}
}

func (c *cli) describeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <model>",
		Short: "Show the resolved fields of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.cat.Model(args[0])
			if err != nil {
				return err
			}
			reg := m.Registry()
			w := cmd.OutOrStdout()

			heading(w, m.Name(), m.Definition().Description)
			if p := config.GetProfile(m.Name()); p != nil {
				fmt.Fprintln(w, subtleStyle.Render(fmt.Sprintf("profile: %s, dt %g, duration %g", p.Integrator, p.Dt, p.Duration)))
			}

			if names := reg.SizeNames(); len(names) > 0 {
				section(w, "sizes")
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				for _, name := range names {
					g, _ := reg.SizeGroup(name)
					fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(g.Labels, ", "), g.Description)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			groups := []struct {
				title  string
				fields []dynamo.Field
			}{
				{"differentials", reg.Differentials()},
				{"statevars", reg.Statevars()},
				{"parameters", reg.Parameters()},
			}
			for _, g := range groups {
				if len(g.fields) == 0 {
					continue
				}
				section(w, g.title)
				tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDIMS\tRULE\tUNITS\tCOMMENT")
				for _, f := range g.fields {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						f.Name(), reg.Dims(f.Name()), describeRule(f), f.Meta().Units, f.Meta().Com)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}

			if order := m.Order(); len(order) > 0 {
				section(w, "statevar order")
				fmt.Fprintln(w, strings.Join(order, " -> "))
			}
			return nil
		},
	}
}

func describeRule(f dynamo.Field) string {
	switch f := f.(type) {
	case *dynamo.Differential:
		return fmt.Sprintf("d/dt = %s, initial %s", f.Equation, formatLiteral(f.Initial))
	case *dynamo.Parameter:
		if f.Equation != nil {
			return "= " + f.Equation.String()
		}
		return formatLiteral(f.Value)
	default:
		return "= " + f.Rule().String()
	}
}

func formatLiteral(l *dynamo.Literal) string {
	switch {
	case l == nil:
		return "-"
	case l.IsScalar():
		return fmt.Sprintf("%g", l.Data[0])
	case l.Regions == nil && len(l.Data) <= 9:
		return fmt.Sprintf("%s %g", l, l.Data)
	default:
		return l.String()
	}
}
