package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

var pathTitles = map[quota.PathKind]string{
	quota.PathStandard:      "Standard",
	quota.PathReducedCredit: "Reduced credit",
	quota.PathFullCredit:    "Full credit",
}

var outcomeLabels = map[quota.Outcome]string{
	quota.OutcomeNormal:  "",
	quota.OutcomeCapped:  "capped at 40%",
	quota.OutcomePaidOff: "paid off",
}

// Markdown renders a stored simulation as a Markdown document.
func Markdown(rec simulation.Record) string {
	r := rec.Result
	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("# Simulation %s\n\n", rec.ID))
	sb.WriteString(fmt.Sprintf("Table: %s (%s) | Plan: %s | Created: %s\n\n",
		rec.TableName, rec.TableID, r.PlanKind, rec.CreatedAt.Format(time.RFC3339)))

	// Baseline
	sb.WriteString("## Before contemplation\n\n")
	sb.WriteString("| Item | Value |\n")
	sb.WriteString("|------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Credit | %s |\n", FormatBRL(r.OriginalCredit)))
	sb.WriteString(fmt.Sprintf("| Term | %d months |\n", r.Term))
	sb.WriteString(fmt.Sprintf("| Installment | %s |\n", FormatBRL(r.PreContemplationInstallment)))
	sb.WriteString(fmt.Sprintf("| First installment | %s |\n", FormatBRL(r.FirstInstallment)))
	sb.WriteString(fmt.Sprintf("| Adhesion fee | %s |\n", FormatBRL(r.AdhesionFee)))
	sb.WriteString(fmt.Sprintf("| Administration fee | %s |\n", FormatBRL(r.AdminFee)))
	sb.WriteString(fmt.Sprintf("| Reserve fund | %s |\n", FormatBRL(r.ReserveFund)))
	sb.WriteString(fmt.Sprintf("| Monthly insurance | %s |\n", FormatBRL(r.MonthlyInsurance)))
	sb.WriteString("\n")

	// Bid
	sb.WriteString("## Bid\n\n")
	sb.WriteString("| Item | Value |\n")
	sb.WriteString("|------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total bid | %s |\n", FormatBRL(r.TotalBid)))
	sb.WriteString(fmt.Sprintf("| Embedded bid | %s |\n", FormatBRL(r.EmbeddedBid)))
	sb.WriteString(fmt.Sprintf("| Appraisal bid | %s |\n", FormatBRL(r.AppraisalBid)))
	sb.WriteString(fmt.Sprintf("| Toward installment | %s |\n", FormatPercent(rec.Request.InstallmentAllocationPct)))
	sb.WriteString(fmt.Sprintf("| Contemplation month | %d |\n", r.ContemplationMonth))
	sb.WriteString("\n")

	// Paths
	sb.WriteString("## Paths\n\n")
	sb.WriteString("| Path | Net credit | Total cost | Installment after contemplation |\n")
	sb.WriteString("|------|------------|------------|---------------------------------|\n")
	for _, p := range r.Paths() {
		title := pathTitles[p.Kind]
		if p.Kind == r.DefaultPath {
			title += " (default)"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			title, FormatBRL(p.NetCredit), FormatBRL(p.TotalCost), FormatBRL(p.ReferenceInstallment)))
	}
	sb.WriteString("\n")
	if r.PlanKind.IsReduced() && !r.ReducedAvailable() {
		sb.WriteString("Reduced credit is not available: the bid consumes the reduced credit.\n\n")
	}

	// Projections
	for _, p := range r.Paths() {
		sb.WriteString(fmt.Sprintf("### Projection: %s\n\n", pathTitles[p.Kind]))
		sb.WriteString("| Month | Installment | Reduction | Remaining term | Abated | Note |\n")
		sb.WriteString("|-------|-------------|-----------|----------------|--------|------|\n")
		for _, s := range p.Scenarios {
			sb.WriteString(fmt.Sprintf("| %d | %s | %s (%s) | %s | %s | %s |\n",
				s.Month,
				FormatBRL(s.Installment),
				FormatBRL(s.Reduction),
				FormatPercent(s.ReductionPct),
				FormatMonths(s.RemainingTerm),
				FormatMonths(s.InstallmentsAbated),
				outcomeLabels[s.Outcome]))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
