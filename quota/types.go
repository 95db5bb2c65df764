/*
Package quota provides the consortium quota amortization engine.

PURPOSE:
  Given a table's metadata, a user's simulation input and the raw installment
  already resolved for the chosen credit/term/insurance combination, the engine
  computes the pre-contemplation figures (fees, insurance, first installment),
  one or two post-contemplation projection paths, and the aggregate cost of
  each path.

KEY CONCEPTS IN THIS FILE (types.go):
  - Category / PlanKind: fixed enumerations carried by every table
  - TableMetadata: immutable rates and limits of a table
  - Installment: the raw installment value handed in by the caller
  - SimulationInput: one "Calculate" action of the user
  - ContemplationScenario / Path / SimulationResult: engine output

DESIGN PRINCIPLES:
  1. Purity: no I/O, no shared state. Safe to call concurrently.
  2. Precision: every amount, rate and fractional term is decimal.Decimal.
  3. No rounding: the engine keeps full precision, presenters round.
  4. No panics: invalid input is rejected by Validate before Calculate runs,
     and every division is guarded.

USAGE:
  inst, _ := table.Resolve(credit, term, insurance)
  result, err := quota.Simulate(input, table.Meta, inst)
  if err != nil {
      var verr *quota.ValidationError
      errors.As(err, &verr) // user-correctable reason
  }

SEE ALSO:
  - validate.go: input rejection rules
  - baseline.go: pre-contemplation figures
  - projection.go: the 5-row contemplation projection
  - plan.go: standard vs reduced plan orchestration
*/
package quota

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CATEGORY & PLAN KIND
// =============================================================================

// Category is the product family of a table.
type Category string

const (
	CategoryVehicle    Category = "vehicle"
	CategoryRealEstate Category = "real_estate"
	CategoryMotorcycle Category = "motorcycle"
	CategoryService    Category = "service"
)

// Categories lists every known category in display order.
var Categories = []Category{CategoryVehicle, CategoryRealEstate, CategoryMotorcycle, CategoryService}

func (c Category) Valid() bool {
	switch c {
	case CategoryVehicle, CategoryRealEstate, CategoryMotorcycle, CategoryService:
		return true
	}
	return false
}

// ParseCategory converts a stored or user supplied string into a Category.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", ErrInvalidTable, s)
	}
	return c, nil
}

// PlanKind scales the nominal credit down in exchange for a lower installment.
type PlanKind string

const (
	PlanStandard  PlanKind = "standard"
	PlanReduced75 PlanKind = "reduced_75"
	PlanReduced50 PlanKind = "reduced_50"
)

var (
	factorStandard  = decimal.NewFromInt(1)
	factorReduced75 = decimal.RequireFromString("0.75")
	factorReduced50 = decimal.RequireFromString("0.50")
)

// Factor returns the plan factor: 1.00, 0.75 or 0.50.
// Unknown kinds behave as standard.
func (p PlanKind) Factor() decimal.Decimal {
	switch p {
	case PlanReduced75:
		return factorReduced75
	case PlanReduced50:
		return factorReduced50
	default:
		return factorStandard
	}
}

// IsReduced reports whether the plan delivers less than the nominal credit.
func (p PlanKind) IsReduced() bool { return p == PlanReduced75 || p == PlanReduced50 }

func (p PlanKind) Valid() bool {
	switch p {
	case PlanStandard, PlanReduced75, PlanReduced50:
		return true
	}
	return false
}

// ParsePlanKind converts a stored or user supplied string into a PlanKind.
func ParsePlanKind(s string) (PlanKind, error) {
	p := PlanKind(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown plan kind %q", ErrInvalidTable, s)
	}
	return p, nil
}

// =============================================================================
// TABLE METADATA
// =============================================================================

type TableID string

// TableMetadata is loaded once per table and never mutated.
// All rates are fractions of the credit.
type TableMetadata struct {
	ID                  TableID
	Name                string
	Category            Category
	PlanKind            PlanKind
	AdminFeeRate        decimal.Decimal
	ReserveFundRate     decimal.Decimal
	InsuranceRate       decimal.Decimal // monthly, applies only when insured
	MaxEmbeddedBidRatio decimal.Decimal
}

// Validate checks the enumerations and that every rate is within [0, 1].
func (m TableMetadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidTable)
	}
	if !m.Category.Valid() {
		return fmt.Errorf("%w: table %s has unknown category %q", ErrInvalidTable, m.ID, m.Category)
	}
	if !m.PlanKind.Valid() {
		return fmt.Errorf("%w: table %s has unknown plan kind %q", ErrInvalidTable, m.ID, m.PlanKind)
	}
	rates := []struct {
		name string
		v    decimal.Decimal
	}{
		{"admin_fee_rate", m.AdminFeeRate},
		{"reserve_fund_rate", m.ReserveFundRate},
		{"insurance_rate", m.InsuranceRate},
		{"max_embedded_bid_ratio", m.MaxEmbeddedBidRatio},
	}
	for _, r := range rates {
		if r.v.IsNegative() || r.v.GreaterThan(one) {
			return fmt.Errorf("%w: table %s %s %s outside [0, 1]", ErrInvalidTable, m.ID, r.name, r.v)
		}
	}
	return nil
}

// =============================================================================
// INPUT
// =============================================================================

// Installment is the raw table installment for the chosen credit, term and
// insurance variant. Resolving it is the caller's job.
type Installment struct {
	Value   decimal.Decimal
	Insured bool // insurance elected, or compulsory for the row
}

// SimulationInput is built per "Calculate" action and discarded afterwards.
type SimulationInput struct {
	TableID          TableID
	Credit           decimal.Decimal
	Term             int
	Insurance        bool
	PocketBid        decimal.Decimal
	EmbeddedBidRatio decimal.Decimal // fraction of credit
	AppraisalBid     decimal.Decimal
	AdhesionRate     decimal.Decimal // fraction of credit, one of AdhesionRates

	// Share of the total bid used to reduce the installment (0-100).
	// The remainder shortens the term.
	InstallmentAllocationPct decimal.Decimal

	// 1-based month at which the quota is contemplated.
	ContemplationMonth int
}

func (in SimulationInput) EmbeddedBid() decimal.Decimal {
	return in.Credit.Mul(in.EmbeddedBidRatio)
}

// TotalBid is pocket + embedded + appraisal.
func (in SimulationInput) TotalBid() decimal.Decimal {
	return in.PocketBid.Add(in.EmbeddedBid()).Add(in.AppraisalBid)
}

// AdhesionRates is the fixed option set offered for the adhesion fee.
var AdhesionRates = []decimal.Decimal{
	decimal.Zero,
	decimal.RequireFromString("0.005"),
	decimal.RequireFromString("0.01"),
	decimal.RequireFromString("0.015"),
	decimal.RequireFromString("0.02"),
	decimal.RequireFromString("0.025"),
	decimal.RequireFromString("0.03"),
}

// =============================================================================
// OUTPUT
// =============================================================================

// Outcome tags a projected row.
type Outcome string

const (
	OutcomeNormal  Outcome = "normal"
	OutcomeCapped  Outcome = "capped"   // 40% cap hit, excess spilled into the term pool
	OutcomePaidOff Outcome = "paid_off" // remaining term below PaidOffThreshold
)

// ContemplationScenario is one "what if contemplated in month N" row.
type ContemplationScenario struct {
	Month              int // absolute, 1-based
	Offset             int // 0..ProjectionRows-1
	RemainingTerm      decimal.Decimal
	InstallmentsAbated decimal.Decimal
	Installment        decimal.Decimal
	Outcome            Outcome
	Credit             decimal.Decimal // effective credit of the path
	Reduction          decimal.Decimal
	ReductionPct       decimal.Decimal // of BaseInstallment, 0-100

	BaseInstallment  decimal.Decimal
	BidToInstallment decimal.Decimal
	BidToTerm        decimal.Decimal // includes CapSpillover
	CapSpillover     decimal.Decimal
}

// PathKind names a projection path.
type PathKind string

const (
	PathStandard      PathKind = "standard"
	PathReducedCredit PathKind = "reduced_credit"
	PathFullCredit    PathKind = "full_credit"
)

// Path is one projection path with its aggregate cost.
type Path struct {
	Kind      PathKind
	NetCredit decimal.Decimal
	TotalCost decimal.Decimal

	// Base installment at the contemplation month. For the full-credit path
	// of a reduced plan this is the recomposed installment.
	ReferenceInstallment decimal.Decimal

	Scenarios []ContemplationScenario
}

// SimulationResult is created fresh per calculation and never mutated.
type SimulationResult struct {
	PreContemplationInstallment decimal.Decimal
	TotalCost                   decimal.Decimal // of DefaultPath
	AdminFee                    decimal.Decimal
	ReserveFund                 decimal.Decimal
	MonthlyInsurance            decimal.Decimal
	AdhesionFee                 decimal.Decimal
	FirstInstallment            decimal.Decimal
	OriginalCredit              decimal.Decimal
	NetCredit                   decimal.Decimal // of DefaultPath
	TotalBid                    decimal.Decimal
	EmbeddedBid                 decimal.Decimal
	AppraisalBid                decimal.Decimal
	PlanKind                    PlanKind
	Category                    Category
	Term                        int
	ContemplationMonth          int

	// Projection of DefaultPath, kept for simple consumers.
	Scenarios   []ContemplationScenario
	DefaultPath PathKind

	// Standard plans carry their single path in Standard.
	// Reduced plans carry Full always, and Reduced only when viable.
	Standard *Path
	Reduced  *Path
	Full     *Path

	// Full-credit installment at the contemplation month (reduced plans only).
	RecomposedInstallment *decimal.Decimal
}

// ReducedAvailable reports whether the reduced-credit path is viable.
func (r *SimulationResult) ReducedAvailable() bool { return r.Reduced != nil }

// Paths returns the computed paths in display order.
func (r *SimulationResult) Paths() []*Path {
	var paths []*Path
	for _, p := range []*Path{r.Standard, r.Reduced, r.Full} {
		if p != nil {
			paths = append(paths, p)
		}
	}
	return paths
}

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)
