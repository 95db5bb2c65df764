/*
plan.go - Plan-path orchestration

PURPOSE:
  Decides, per plan kind, which projection paths to run and with which base
  installment, then assembles the SimulationResult.

PATHS:
  Standard plan (factor 1.00):
    One path. Base installment = raw installment for every row.
    Cost = raw * term.

  Reduced plan (factor 0.75 / 0.50), two competing paths:
    Reduced credit: credit * factor - embedded - appraisal. Viable only when
      that is > 0 AND total bid < credit * factor. Base = raw installment.
    Full credit: credit - embedded - appraisal. The raw installment only
      covers the reduced share, so it is recomposed upward (see below).

  Default path = reduced credit when viable, otherwise full credit.

RECOMPOSITION:
  Selected from a {category, plan kind} table so a new rule is a data change:
    additive:       base = raw + credit*(1-factor) / remaining
    multiplicative: base = raw / factor

COST:
  raw * month + reference installment * (term - month), where month is the
  contemplation month and the reference installment is the path's base
  installment at that month.

SEE ALSO:
  - projection.go: row algorithm
*/
package quota

import "github.com/shopspring/decimal"

// =============================================================================
// RECOMPOSITION STRATEGY
// =============================================================================

// Recomposition turns the raw installment of a reduced plan into the
// installment of the full credit.
type Recomposition string

const (
	RecomposeNone           Recomposition = "none"
	RecomposeAdditive       Recomposition = "additive"
	RecomposeMultiplicative Recomposition = "multiplicative"
)

type recompositionKey struct {
	Category Category
	PlanKind PlanKind
}

// recompositionRules overrides the default for specific combinations.
var recompositionRules = map[recompositionKey]Recomposition{
	{CategoryVehicle, PlanReduced50}: RecomposeAdditive,
}

// RecompositionFor returns the strategy for a category and plan kind.
func RecompositionFor(category Category, plan PlanKind) Recomposition {
	if !plan.IsReduced() {
		return RecomposeNone
	}
	if r, ok := recompositionRules[recompositionKey{category, plan}]; ok {
		return r
	}
	return RecomposeMultiplicative
}

// BaseFunc builds the per-row base installment of the full-credit path.
func (r Recomposition) BaseFunc(raw, credit decimal.Decimal, plan PlanKind) BaseInstallmentFunc {
	factor := plan.Factor()
	switch r {
	case RecomposeAdditive:
		gap := credit.Mul(one.Sub(factor))
		return func(remaining decimal.Decimal) decimal.Decimal {
			return raw.Add(gap.Div(decimal.Max(one, remaining)))
		}
	case RecomposeMultiplicative:
		flat := raw.Div(factor)
		return FlatInstallment(flat)
	default:
		return FlatInstallment(raw)
	}
}

// =============================================================================
// ORCHESTRATION
// =============================================================================

// Simulate validates the input and, when valid, calculates the result.
func Simulate(in SimulationInput, meta TableMetadata, inst Installment) (*SimulationResult, error) {
	if err := Validate(in, meta); err != nil {
		return nil, err
	}
	return Calculate(in, meta, inst), nil
}

// Calculate computes the simulation result. It assumes Validate passed and
// never fails; degenerate arithmetic is clamped, not reported.
func Calculate(in SimulationInput, meta TableMetadata, inst Installment) *SimulationResult {
	b := ComputeBaseline(in, meta, inst)

	result := &SimulationResult{
		PreContemplationInstallment: inst.Value,
		AdminFee:                    b.AdminFee,
		ReserveFund:                 b.ReserveFund,
		MonthlyInsurance:            b.MonthlyInsurance,
		AdhesionFee:                 b.AdhesionFee,
		FirstInstallment:            b.FirstInstallment,
		OriginalCredit:              in.Credit,
		TotalBid:                    b.TotalBid,
		EmbeddedBid:                 b.EmbeddedBid,
		AppraisalBid:                in.AppraisalBid,
		PlanKind:                    meta.PlanKind,
		Category:                    meta.Category,
		Term:                        in.Term,
		ContemplationMonth:          in.ContemplationMonth,
	}

	netFull := in.Credit.Sub(b.EmbeddedBid).Sub(in.AppraisalBid)

	if !meta.PlanKind.IsReduced() {
		result.Standard = buildPath(PathStandard, in, b, netFull, inst.Value, FlatInstallment(inst.Value))
		return selectDefault(result, result.Standard)
	}

	factor := meta.PlanKind.Factor()
	reducedBase := in.Credit.Mul(factor)
	netReduced := reducedBase.Sub(b.EmbeddedBid).Sub(in.AppraisalBid)
	if netReduced.IsPositive() && b.TotalBid.LessThan(reducedBase) {
		result.Reduced = buildPath(PathReducedCredit, in, b, netReduced, inst.Value, FlatInstallment(inst.Value))
	}

	strategy := RecompositionFor(meta.Category, meta.PlanKind)
	base := strategy.BaseFunc(inst.Value, in.Credit, meta.PlanKind)
	result.Full = buildPath(PathFullCredit, in, b, netFull, inst.Value, base)
	recomposed := result.Full.ReferenceInstallment
	result.RecomposedInstallment = &recomposed

	if result.Reduced != nil {
		return selectDefault(result, result.Reduced)
	}
	return selectDefault(result, result.Full)
}

func buildPath(kind PathKind, in SimulationInput, b Baseline, net, raw decimal.Decimal, base BaseInstallmentFunc) *Path {
	month := in.ContemplationMonth
	reference := base(RemainingTerm(in.Term, month))

	// Installments before contemplation are always raw; after it, the path's own.
	before := raw.Mul(decimal.NewFromInt(int64(month)))
	after := reference.Mul(decimal.NewFromInt(int64(in.Term - month)))

	return &Path{
		Kind:                 kind,
		NetCredit:            net,
		TotalCost:            before.Add(after),
		ReferenceInstallment: reference,
		Scenarios: Project(ProjectionParams{
			StartMonth:      month,
			Term:            in.Term,
			TotalBid:        b.TotalBid,
			AllocationPct:   in.InstallmentAllocationPct,
			Credit:          net,
			BaseInstallment: base,
		}),
	}
}

func selectDefault(r *SimulationResult, p *Path) *SimulationResult {
	r.DefaultPath = p.Kind
	r.TotalCost = p.TotalCost
	r.NetCredit = p.NetCredit
	r.Scenarios = p.Scenarios
	return r
}
