// Package cmd - tables command
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/report"
)

func newTablesCmd(g *globals) *cobra.Command {
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and manage price tables",
	}

	tablesCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tables (built-in and stored)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Service.Tables(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-18s %-24s %-12s %-11s %s\n", "ID", "NAME", "CATEGORY", "PLAN", "CREDITS")
			for _, t := range list {
				credits := make([]string, 0, len(t.Rows))
				for _, c := range t.Credits() {
					credits = append(credits, c.String())
				}
				fmt.Fprintf(w, "%-18s %-24s %-12s %-11s %s\n",
					t.Meta.ID, truncate(t.Meta.Name, 24), t.Meta.Category, t.Meta.PlanKind, strings.Join(credits, ","))
			}
			return nil
		},
	})

	tablesCmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Print a table's rates and price grid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Service.Table(cmd.Context(), quota.TableID(args[0]))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s)\n", t.Meta.Name, t.Meta.ID)
			fmt.Fprintf(w, "category %s, plan %s\n", t.Meta.Category, t.Meta.PlanKind)
			fmt.Fprintf(w, "admin %s, reserve %s, insurance %s/month, max embedded %s\n",
				report.FormatRate(t.Meta.AdminFeeRate), report.FormatRate(t.Meta.ReserveFundRate),
				report.FormatRate(t.Meta.InsuranceRate), report.FormatRate(t.Meta.MaxEmbeddedBidRatio))
			for _, c := range t.Credits() {
				row, err := t.Row(c)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "\n%s\n", report.FormatBRL(row.Credit))
				for _, opt := range row.Terms {
					inst := opt.Installment
					if inst.Kind == catalog.InstallmentSingle {
						fmt.Fprintf(w, "  %4d months  %s\n", opt.Term, report.FormatBRL(inst.Value))
						continue
					}
					fmt.Fprintf(w, "  %4d months  %s with insurance, %s without\n",
						opt.Term, report.FormatBRL(inst.WithInsurance), report.FormatBRL(inst.WithoutInsurance))
				}
			}
			return nil
		},
	})

	tablesCmd.AddCommand(&cobra.Command{
		Use:   "export <id>",
		Short: "Print a table as its JSON definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.Service.Table(cmd.Context(), quota.TableID(args[0]))
			if err != nil {
				return err
			}
			js, err := factory.NewTableFactory().Marshal(t)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), js)
			return nil
		},
	})

	tablesCmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Store a table from its JSON definition",
		Long: `Store a table from its JSON definition in the configured store.
A table with the same id replaces the stored one and hides the built-in one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			t, err := factory.NewTableFactory().ParseTable(string(data))
			if err != nil {
				return err
			}

			a, err := g.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Service.SaveTable(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s (%d credits)\n", t.Meta.ID, len(t.Rows))
			return nil
		},
	})

	return tablesCmd
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
