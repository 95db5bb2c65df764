/*
projection.go - Post-contemplation projection

PURPOSE:
  Produces up to ProjectionRows sequential rows starting at the target
  contemplation month. Each row answers "what if the quota were contemplated
  in month N": the bid proceeds are applied to that month's base installment
  under a 40% reduction cap, and whatever is left shortens the term.

KEY INSIGHT:
  Rows do NOT carry state forward. Each row is an independent snapshot
  computed from the same inputs, so this is a sensitivity display rather
  than a payment ledger. Only the base installment and the remaining term
  change from row to row.

ROW ALGORITHM (total bid > 0):
  1. split the bid: toInstallment = bid * pct/100, toTerm = bid - toInstallment
  2. naive reduction = toInstallment / remaining
  3. clamp to 40% of base; the unspent part spills into the term pool
  4. installment = max(0, base - reduction)
  5. abated = (toTerm + spill) / installment, or the whole remaining term
     when the installment is (almost) zero
  6. new term = max(0, remaining - abated); below 0.1 the quota is paid off

GUARDS:
  remaining term is floored at 1 and installment division is skipped below
  InstallmentEpsilon, so no row can divide by zero.

SEE ALSO:
  - plan.go: decides the base installment of each row per path
*/
package quota

import "github.com/shopspring/decimal"

// =============================================================================
// POLICY CONSTANTS
// =============================================================================

// ProjectionRows is the maximum number of rows of a projection.
const ProjectionRows = 5

var (
	// ReductionCap is the fraction of the base installment a bid may remove.
	ReductionCap = decimal.RequireFromString("0.40")

	// InstallmentEpsilon: installments at or below it count as fully absorbed.
	InstallmentEpsilon = decimal.RequireFromString("0.01")

	// PaidOffThreshold: a remaining term below it tags the row paid off.
	PaidOffThreshold = decimal.RequireFromString("0.1")
)

// =============================================================================
// PROJECTION
// =============================================================================

// BaseInstallmentFunc returns the base installment of a row given the
// remaining term at that row's month.
type BaseInstallmentFunc func(remaining decimal.Decimal) decimal.Decimal

// FlatInstallment returns a BaseInstallmentFunc ignoring the remaining term.
func FlatInstallment(v decimal.Decimal) BaseInstallmentFunc {
	return func(decimal.Decimal) decimal.Decimal { return v }
}

// ProjectionParams contains everything a projection needs.
type ProjectionParams struct {
	StartMonth      int
	Term            int
	TotalBid        decimal.Decimal
	AllocationPct   decimal.Decimal // share of the bid toward the installment
	Credit          decimal.Decimal // effective credit of the path
	BaseInstallment BaseInstallmentFunc
}

// RemainingTerm is total term minus the absolute month, floored at 1.
func RemainingTerm(term, month int) decimal.Decimal {
	r := term - month
	if r < 1 {
		r = 1
	}
	return decimal.NewFromInt(int64(r))
}

// Project emits rows for months StartMonth, StartMonth+1, ... and stops
// after ProjectionRows rows or once the month exceeds the term.
func Project(p ProjectionParams) []ContemplationScenario {
	rows := make([]ContemplationScenario, 0, ProjectionRows)
	for offset := 0; offset < ProjectionRows; offset++ {
		month := p.StartMonth + offset
		if month > p.Term {
			break
		}
		remaining := RemainingTerm(p.Term, month)
		base := p.BaseInstallment(remaining)
		row := projectRow(p, base, remaining)
		row.Month = month
		row.Offset = offset
		rows = append(rows, row)
	}
	return rows
}

func projectRow(p ProjectionParams, base, remaining decimal.Decimal) ContemplationScenario {
	row := ContemplationScenario{
		RemainingTerm:      remaining,
		InstallmentsAbated: decimal.Zero,
		Installment:        base,
		Outcome:            OutcomeNormal,
		Credit:             p.Credit,
		Reduction:          decimal.Zero,
		ReductionPct:       decimal.Zero,
		BaseInstallment:    base,
		BidToInstallment:   decimal.Zero,
		BidToTerm:          decimal.Zero,
		CapSpillover:       decimal.Zero,
	}
	if !p.TotalBid.IsPositive() {
		return row
	}

	toInstallment := p.TotalBid.Mul(p.AllocationPct).Div(hundred)
	toTerm := p.TotalBid.Sub(toInstallment)

	reduction := toInstallment.Div(remaining)
	spill := decimal.Zero
	limit := base.Mul(ReductionCap)
	if reduction.GreaterThan(limit) {
		reduction = limit
		spill = toInstallment.Sub(limit.Mul(remaining))
		row.Outcome = OutcomeCapped
	}

	installment := base.Sub(reduction)
	if installment.IsNegative() {
		installment = decimal.Zero
	}

	pool := toTerm.Add(spill)
	abated := remaining
	if installment.GreaterThan(InstallmentEpsilon) {
		abated = pool.Div(installment)
	}

	newTerm := remaining.Sub(abated)
	if newTerm.IsNegative() {
		newTerm = decimal.Zero
	}
	if newTerm.LessThan(PaidOffThreshold) {
		row.Outcome = OutcomePaidOff
	}

	row.RemainingTerm = newTerm
	row.InstallmentsAbated = abated
	row.Installment = installment
	row.Reduction = base.Sub(installment)
	if base.IsPositive() {
		row.ReductionPct = row.Reduction.Div(base).Mul(hundred)
	}
	row.BidToInstallment = toInstallment
	row.BidToTerm = pool
	row.CapSpillover = spill
	return row
}
