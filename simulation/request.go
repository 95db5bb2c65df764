package simulation

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/quota"
)

// Request is what a user submits with the "Calculate" action.
type Request struct {
	TableID                  quota.TableID   `json:"table_id"`
	Credit                   decimal.Decimal `json:"credit"`
	Term                     int             `json:"term"`
	Insurance                bool            `json:"insurance"`
	PocketBid                decimal.Decimal `json:"pocket_bid"`
	EmbeddedBidRatio         decimal.Decimal `json:"embedded_bid_ratio"`
	AppraisalBid             decimal.Decimal `json:"appraisal_bid"`
	AdhesionRate             decimal.Decimal `json:"adhesion_rate"`
	InstallmentAllocationPct decimal.Decimal `json:"installment_allocation_pct"`
	ContemplationMonth       int             `json:"contemplation_month"`
}

// Input converts the request to engine input.
func (r Request) Input() quota.SimulationInput {
	return quota.SimulationInput{
		TableID:                  r.TableID,
		Credit:                   r.Credit,
		Term:                     r.Term,
		Insurance:                r.Insurance,
		PocketBid:                r.PocketBid,
		EmbeddedBidRatio:         r.EmbeddedBidRatio,
		AppraisalBid:             r.AppraisalBid,
		AdhesionRate:             r.AdhesionRate,
		InstallmentAllocationPct: r.InstallmentAllocationPct,
		ContemplationMonth:       r.ContemplationMonth,
	}
}

// CacheKey identifies a calculation by everything that feeds the engine.
// The table rates and resolved installment are part of the key, so
// repricing a table never serves a stale result.
func CacheKey(in quota.SimulationInput, meta quota.TableMetadata, inst quota.Installment) string {
	var b strings.Builder
	fields := []string{
		string(meta.ID),
		string(meta.Category),
		string(meta.PlanKind),
		meta.AdminFeeRate.String(),
		meta.ReserveFundRate.String(),
		meta.InsuranceRate.String(),
		meta.MaxEmbeddedBidRatio.String(),
		inst.Value.String(),
		strconv.FormatBool(inst.Insured),
		in.Credit.String(),
		strconv.Itoa(in.Term),
		in.PocketBid.String(),
		in.EmbeddedBidRatio.String(),
		in.AppraisalBid.String(),
		in.AdhesionRate.String(),
		in.InstallmentAllocationPct.String(),
		strconv.Itoa(in.ContemplationMonth),
	}
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(f)
	}
	return "sim:" + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
