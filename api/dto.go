/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's decimal model from the external API contract: amounts are
  rounded to cents only here, never inside the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Tables:
    TableSummaryDTO, TableDTO, PriceRowDTO, TermOptionDTO

  Simulations:
    SimulationDTO, ResultDTO, PathDTO, ProjectionRowDTO, ValidationDTO

  Options:
    OptionsDTO

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

ROUNDING:
  Money is rounded half away from zero to 2 places. Remaining terms and
  percentages are rounded to 2 places too. Table rates are passed through.

SEE ALSO:
  - handlers.go: Uses these types
  - simulation/request.go: Request body of simulate/validate
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

// =============================================================================
// TABLES
// =============================================================================

// TableSummaryDTO represents a table in list responses.
type TableSummaryDTO struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Category            string    `json:"category"`
	PlanKind            string    `json:"plan_kind"`
	PlanFactor          float64   `json:"plan_factor"`
	AdminFeeRate        float64   `json:"admin_fee_rate"`
	ReserveFundRate     float64   `json:"reserve_fund_rate"`
	InsuranceRate       float64   `json:"insurance_rate"`
	MaxEmbeddedBidRatio float64   `json:"max_embedded_bid_ratio"`
	Credits             []float64 `json:"credits"`
}

// TableDTO is a table with its price grid.
type TableDTO struct {
	TableSummaryDTO
	Rows []PriceRowDTO `json:"rows"`
}

// PriceRowDTO is one credit row of the grid.
type PriceRowDTO struct {
	Credit float64         `json:"credit"`
	Terms  []TermOptionDTO `json:"terms"`
}

// TermOptionDTO is one term column. Single-installment terms set
// Installment; the others set both insurance variants.
type TermOptionDTO struct {
	Term             int      `json:"term"`
	Installment      *float64 `json:"installment,omitempty"`
	WithInsurance    *float64 `json:"with_insurance,omitempty"`
	WithoutInsurance *float64 `json:"without_insurance,omitempty"`
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// SimulationDTO is a stored simulation.
type SimulationDTO struct {
	ID        string             `json:"id"`
	TableID   string             `json:"table_id"`
	TableName string             `json:"table_name"`
	CreatedAt string             `json:"created_at"`
	Cached    bool               `json:"cached"`
	Request   simulation.Request `json:"request"`
	Result    ResultDTO          `json:"result"`
}

// ResultDTO is the rounded engine result.
type ResultDTO struct {
	PreContemplationInstallment float64  `json:"pre_contemplation_installment"`
	FirstInstallment            float64  `json:"first_installment"`
	TotalCost                   float64  `json:"total_cost"`
	AdminFee                    float64  `json:"admin_fee"`
	ReserveFund                 float64  `json:"reserve_fund"`
	MonthlyInsurance            float64  `json:"monthly_insurance"`
	AdhesionFee                 float64  `json:"adhesion_fee"`
	OriginalCredit              float64  `json:"original_credit"`
	NetCredit                   float64  `json:"net_credit"`
	TotalBid                    float64  `json:"total_bid"`
	EmbeddedBid                 float64  `json:"embedded_bid"`
	AppraisalBid                float64  `json:"appraisal_bid"`
	PlanKind                    string   `json:"plan_kind"`
	Category                    string   `json:"category"`
	Term                        int      `json:"term"`
	ContemplationMonth          int      `json:"contemplation_month"`
	DefaultPath                 string   `json:"default_path"`
	ReducedAvailable            bool     `json:"reduced_available"`
	RecomposedInstallment       *float64 `json:"recomposed_installment,omitempty"`

	Scenarios []ProjectionRowDTO `json:"scenarios"`
	Paths     []PathDTO          `json:"paths"`
}

// PathDTO is one projection path.
type PathDTO struct {
	Kind                 string             `json:"kind"`
	Default              bool               `json:"default"`
	NetCredit            float64            `json:"net_credit"`
	TotalCost            float64            `json:"total_cost"`
	ReferenceInstallment float64            `json:"reference_installment"`
	Scenarios            []ProjectionRowDTO `json:"scenarios"`
}

// ProjectionRowDTO is one contemplation scenario row.
type ProjectionRowDTO struct {
	Month              int     `json:"month"`
	Offset             int     `json:"offset"`
	RemainingTerm      float64 `json:"remaining_term"`
	InstallmentsAbated float64 `json:"installments_abated"`
	Installment        float64 `json:"installment"`
	Outcome            string  `json:"outcome"`
	Credit             float64 `json:"credit"`
	Reduction          float64 `json:"reduction"`
	ReductionPct       float64 `json:"reduction_pct"`
	BaseInstallment    float64 `json:"base_installment"`
	BidToInstallment   float64 `json:"bid_to_installment"`
	BidToTerm          float64 `json:"bid_to_term"`
	CapSpillover       float64 `json:"cap_spillover"`
}

// ValidationDTO answers a validate call.
type ValidationDTO struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// =============================================================================
// OPTIONS & SCENARIOS
// =============================================================================

// OptionsDTO lists the fixed choices offered by the simulation form.
type OptionsDTO struct {
	AdhesionRates       []float64 `json:"adhesion_rates"`
	Categories          []string  `json:"categories"`
	PlanKinds           []string  `json:"plan_kinds"`
	ProjectionRows      int       `json:"projection_rows"`
	ReductionCapPct     float64   `json:"reduction_cap_pct"`
	InstallmentEpsilon  float64   `json:"installment_epsilon"`
	PaidOffThreshold    float64   `json:"paid_off_threshold"`
	DefaultHistoryLimit int       `json:"default_history_limit"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	TableID     string `json:"table_id"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse is returned after a scenario ran.
type LoadScenarioResponse struct {
	Status     string        `json:"status"`
	Scenario   string        `json:"scenario"`
	Simulation SimulationDTO `json:"simulation"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func moneyPtr(d decimal.Decimal) *float64 {
	v := money(d)
	return &v
}

func rate(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func toTableSummaryDTO(t catalog.Table) TableSummaryDTO {
	credits := t.Credits()
	dto := TableSummaryDTO{
		ID:                  string(t.Meta.ID),
		Name:                t.Meta.Name,
		Category:            string(t.Meta.Category),
		PlanKind:            string(t.Meta.PlanKind),
		PlanFactor:          rate(t.Meta.PlanKind.Factor()),
		AdminFeeRate:        rate(t.Meta.AdminFeeRate),
		ReserveFundRate:     rate(t.Meta.ReserveFundRate),
		InsuranceRate:       rate(t.Meta.InsuranceRate),
		MaxEmbeddedBidRatio: rate(t.Meta.MaxEmbeddedBidRatio),
		Credits:             make([]float64, len(credits)),
	}
	for i, c := range credits {
		dto.Credits[i] = money(c)
	}
	return dto
}

func toTableDTO(t catalog.Table) TableDTO {
	dto := TableDTO{TableSummaryDTO: toTableSummaryDTO(t)}
	for _, credit := range t.Credits() {
		row, err := t.Row(credit)
		if err != nil {
			continue
		}
		rd := PriceRowDTO{Credit: money(row.Credit)}
		terms, _ := t.Terms(credit)
		for _, term := range terms {
			opt, err := t.Option(credit, term)
			if err != nil {
				continue
			}
			td := TermOptionDTO{Term: opt.Term}
			if opt.Installment.Kind == catalog.InstallmentSingle {
				td.Installment = moneyPtr(opt.Installment.Value)
			} else {
				td.WithInsurance = moneyPtr(opt.Installment.WithInsurance)
				td.WithoutInsurance = moneyPtr(opt.Installment.WithoutInsurance)
			}
			rd.Terms = append(rd.Terms, td)
		}
		dto.Rows = append(dto.Rows, rd)
	}
	return dto
}

func toSimulationDTO(rec simulation.Record) SimulationDTO {
	return SimulationDTO{
		ID:        rec.ID,
		TableID:   string(rec.TableID),
		TableName: rec.TableName,
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		Cached:    rec.Cached,
		Request:   rec.Request,
		Result:    toResultDTO(rec.Result),
	}
}

func toResultDTO(r *quota.SimulationResult) ResultDTO {
	if r == nil {
		return ResultDTO{}
	}
	dto := ResultDTO{
		PreContemplationInstallment: money(r.PreContemplationInstallment),
		FirstInstallment:            money(r.FirstInstallment),
		TotalCost:                   money(r.TotalCost),
		AdminFee:                    money(r.AdminFee),
		ReserveFund:                 money(r.ReserveFund),
		MonthlyInsurance:            money(r.MonthlyInsurance),
		AdhesionFee:                 money(r.AdhesionFee),
		OriginalCredit:              money(r.OriginalCredit),
		NetCredit:                   money(r.NetCredit),
		TotalBid:                    money(r.TotalBid),
		EmbeddedBid:                 money(r.EmbeddedBid),
		AppraisalBid:                money(r.AppraisalBid),
		PlanKind:                    string(r.PlanKind),
		Category:                    string(r.Category),
		Term:                        r.Term,
		ContemplationMonth:          r.ContemplationMonth,
		DefaultPath:                 string(r.DefaultPath),
		ReducedAvailable:            r.ReducedAvailable(),
		Scenarios:                   toProjectionRowDTOs(r.Scenarios),
	}
	if r.RecomposedInstallment != nil {
		dto.RecomposedInstallment = moneyPtr(*r.RecomposedInstallment)
	}
	for _, p := range r.Paths() {
		dto.Paths = append(dto.Paths, PathDTO{
			Kind:                 string(p.Kind),
			Default:              p.Kind == r.DefaultPath,
			NetCredit:            money(p.NetCredit),
			TotalCost:            money(p.TotalCost),
			ReferenceInstallment: money(p.ReferenceInstallment),
			Scenarios:            toProjectionRowDTOs(p.Scenarios),
		})
	}
	return dto
}

func toProjectionRowDTOs(rows []quota.ContemplationScenario) []ProjectionRowDTO {
	dtos := make([]ProjectionRowDTO, len(rows))
	for i, s := range rows {
		dtos[i] = ProjectionRowDTO{
			Month:              s.Month,
			Offset:             s.Offset,
			RemainingTerm:      money(s.RemainingTerm),
			InstallmentsAbated: money(s.InstallmentsAbated),
			Installment:        money(s.Installment),
			Outcome:            string(s.Outcome),
			Credit:             money(s.Credit),
			Reduction:          money(s.Reduction),
			ReductionPct:       money(s.ReductionPct),
			BaseInstallment:    money(s.BaseInstallment),
			BidToInstallment:   money(s.BidToInstallment),
			BidToTerm:          money(s.BidToTerm),
			CapSpillover:       money(s.CapSpillover),
		}
	}
	return dtos
}
