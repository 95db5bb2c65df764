package report

import (
	"fmt"
	"strings"

	"github.com/warp/quota-simulator/quota"
)

// CSV renders the projection rows of every computed path.
// Amounts use plain dot decimals with two places for spreadsheet import.
func CSV(r *quota.SimulationResult) string {
	var sb strings.Builder

	// Header
	sb.WriteString("path,default,month,offset,base_installment,installment,reduction,reduction_pct,")
	sb.WriteString("installments_abated,remaining_term,outcome,credit,bid_to_installment,bid_to_term,cap_spillover\n")

	// Rows
	for _, p := range r.Paths() {
		isDefault := p.Kind == r.DefaultPath
		for _, s := range p.Scenarios {
			sb.WriteString(fmt.Sprintf("%s,%t,%d,%d,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
				p.Kind,
				isDefault,
				s.Month,
				s.Offset,
				s.BaseInstallment.StringFixed(2),
				s.Installment.StringFixed(2),
				s.Reduction.StringFixed(2),
				s.ReductionPct.StringFixed(2),
				s.InstallmentsAbated.StringFixed(2),
				s.RemainingTerm.StringFixed(2),
				s.Outcome,
				s.Credit.StringFixed(2),
				s.BidToInstallment.StringFixed(2),
				s.BidToTerm.StringFixed(2),
				s.CapSpillover.StringFixed(2),
			))
		}
	}

	return sb.String()
}
