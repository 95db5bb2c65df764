// Package cmd - simulate and validate commands
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/report"
	"github.com/warp/quota-simulator/simulation"
)

// ErrRejected is returned by validate when the input would not be calculated.
var ErrRejected = errors.New("simulation rejected")

// requestFlags are the inputs of the simulation form.
type requestFlags struct {
	table      string
	credit     string
	term       int
	insurance  bool
	pocketBid  string
	embedded   string
	appraisal  string
	adhesion   string
	allocation string
	month      int
}

func (f *requestFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.table, "table", "t", "", "table id (see 'tables list')")
	fs.StringVar(&f.credit, "credit", "", "credit value, must be a row of the table")
	fs.IntVar(&f.term, "term", 0, "term in months, must be offered for the credit")
	fs.BoolVar(&f.insurance, "insurance", false, "elect life insurance")
	fs.StringVar(&f.pocketBid, "pocket-bid", "0", "bid paid in cash")
	fs.StringVar(&f.embedded, "embedded-ratio", "0", "embedded bid as a fraction of the credit")
	fs.StringVar(&f.appraisal, "appraisal-bid", "0", "bid from an appraised asset")
	fs.StringVar(&f.adhesion, "adhesion", "0", "adhesion fee rate (0, 0.005 ... 0.03)")
	fs.StringVar(&f.allocation, "allocation", "50", "percent of the bid used to reduce the installment")
	fs.IntVarP(&f.month, "month", "m", 1, "contemplation month")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("credit")
	cmd.MarkFlagRequired("term")
}

func (f *requestFlags) request() (simulation.Request, error) {
	req := simulation.Request{
		TableID:            quota.TableID(f.table),
		Term:               f.term,
		Insurance:          f.insurance,
		ContemplationMonth: f.month,
	}
	fields := []struct {
		flag string
		raw  string
		dst  *decimal.Decimal
	}{
		{"credit", f.credit, &req.Credit},
		{"pocket-bid", f.pocketBid, &req.PocketBid},
		{"embedded-ratio", f.embedded, &req.EmbeddedBidRatio},
		{"appraisal-bid", f.appraisal, &req.AppraisalBid},
		{"adhesion", f.adhesion, &req.AdhesionRate},
		{"allocation", f.allocation, &req.InstallmentAllocationPct},
	}
	for _, fld := range fields {
		v, err := decimal.NewFromString(fld.raw)
		if err != nil {
			return simulation.Request{}, fmt.Errorf("--%s: invalid number %q", fld.flag, fld.raw)
		}
		*fld.dst = v
	}
	return req, nil
}

func newSimulateCmd(g *globals) *cobra.Command {
	var (
		flags   requestFlags
		format  string
		persist bool
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a simulation",
		Long: `Run a simulation and print the result.

By default nothing is stored; use --persist to record it in the configured
history store.

Examples:
  quota-sim simulate -t auto-std --credit 100000 --term 60 --pocket-bid 10000 -m 10
  quota-sim simulate -t imovel-light --credit 300000 --term 200 --embedded-ratio 0.3 --format csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			a, err := g.open(cmd.Context(), !persist)
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.Service.Simulate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printRecord(cmd.OutOrStdout(), *rec, format)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json, csv, markdown)")
	cmd.Flags().BoolVar(&persist, "persist", false, "store the simulation in the configured history")
	return cmd
}

func newValidateCmd(g *globals) *cobra.Command {
	var flags requestFlags

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check whether a simulation input would be accepted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request()
			if err != nil {
				return err
			}

			a, err := g.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			verr, err := a.Service.Validate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if verr != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "rejected (%s): %s\n", verr.Code, verr.Message)
				return fmt.Errorf("%w: %s", ErrRejected, verr.Code)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// =============================================================================
// OUTPUT
// =============================================================================

func printRecord(w io.Writer, rec simulation.Record, format string) error {
	switch format {
	case "text", "":
		printText(w, rec)
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	case "csv":
		fmt.Fprint(w, report.CSV(rec.Result))
	case "markdown", "md":
		fmt.Fprint(w, report.Markdown(rec))
	default:
		return fmt.Errorf("unknown format %q (text, json, csv, markdown)", format)
	}
	return nil
}

func printText(w io.Writer, rec simulation.Record) {
	r := rec.Result
	line := strings.Repeat("─", 72)

	fmt.Fprintln(w, line)
	fmt.Fprintf(w, " %s (%s, %s)\n", rec.TableName, rec.TableID, r.PlanKind)
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, " %-40s %29s\n", "Credit", report.FormatBRL(r.OriginalCredit))
	fmt.Fprintf(w, " %-40s %29s\n", "Installment before contemplation", report.FormatBRL(r.PreContemplationInstallment))
	fmt.Fprintf(w, " %-40s %29s\n", "First installment", report.FormatBRL(r.FirstInstallment))
	fmt.Fprintf(w, " %-40s %29s\n", "Total bid", report.FormatBRL(r.TotalBid))
	fmt.Fprintf(w, " %-40s %29s\n", "Net credit", report.FormatBRL(r.NetCredit))
	fmt.Fprintf(w, " %-40s %29s\n", "Total cost", report.FormatBRL(r.TotalCost))
	if r.PlanKind.IsReduced() && !r.ReducedAvailable() {
		fmt.Fprintln(w, " Reduced credit unavailable: the bid consumes it.")
	}

	for _, p := range r.Paths() {
		marker := ""
		if p.Kind == r.DefaultPath {
			marker = " (default)"
		}
		fmt.Fprintln(w, line)
		fmt.Fprintf(w, " Path %s%s: net credit %s, installment %s\n",
			p.Kind, marker, report.FormatBRL(p.NetCredit), report.FormatBRL(p.ReferenceInstallment))
		fmt.Fprintf(w, " %5s %16s %16s %12s  %s\n", "Month", "Installment", "Reduction", "Remaining", "Outcome")
		for _, s := range p.Scenarios {
			fmt.Fprintf(w, " %5d %16s %16s %12s  %s\n",
				s.Month,
				report.FormatBRL(s.Installment),
				report.FormatBRL(s.Reduction),
				report.FormatMonths(s.RemainingTerm),
				s.Outcome)
		}
	}
	fmt.Fprintln(w, line)
}
