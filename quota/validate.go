package quota

import "github.com/shopspring/decimal"

// Validate rejects inconsistent input before any computation.
// It returns nil or a *ValidationError and never panics.
//
// The first four checks are the core rejection rules. Net credit and total bid
// are checked independently: embedded + appraisal alone can exceed the credit
// even when the pocket bid is zero. A bid exactly equal to the credit is invalid.
func Validate(in SimulationInput, meta TableMetadata) error {
	if verr := validate(in, meta); verr != nil {
		return verr
	}
	return nil
}

func validate(in SimulationInput, meta TableMetadata) *ValidationError {
	if in.EmbeddedBidRatio.GreaterThan(meta.MaxEmbeddedBidRatio) {
		return reject(CodeEmbeddedBidExceedsMax,
			"embedded bid of %s%% exceeds the table maximum of %s%%",
			in.EmbeddedBidRatio.Mul(hundred).String(), meta.MaxEmbeddedBidRatio.Mul(hundred).String())
	}
	if !in.Credit.IsPositive() {
		return reject(CodeNonPositiveCredit, "credit must be greater than zero")
	}

	net := in.Credit.Sub(in.EmbeddedBid()).Sub(in.AppraisalBid)
	if net.IsNegative() {
		return reject(CodeNegativeNetCredit,
			"embedded and appraisal bids (%s) exceed the credit (%s)",
			in.EmbeddedBid().Add(in.AppraisalBid).String(), in.Credit.String())
	}
	if total := in.TotalBid(); !total.LessThan(in.Credit) {
		return reject(CodeBidNotBelowCredit,
			"total bid (%s) must be lower than the credit (%s)", total.String(), in.Credit.String())
	}

	if in.Term <= 0 {
		return reject(CodeInvalidTerm, "term must be at least one month")
	}
	if in.ContemplationMonth < 1 || in.ContemplationMonth > in.Term {
		return reject(CodeContemplationOutOfRange,
			"contemplation month %d must be between 1 and %d", in.ContemplationMonth, in.Term)
	}
	if in.InstallmentAllocationPct.IsNegative() || in.InstallmentAllocationPct.GreaterThan(hundred) {
		return reject(CodeInvalidAllocation,
			"installment allocation %s%% must be between 0 and 100", in.InstallmentAllocationPct.String())
	}
	if in.PocketBid.IsNegative() || in.EmbeddedBidRatio.IsNegative() || in.AppraisalBid.IsNegative() {
		return reject(CodeNegativeBid, "bid components cannot be negative")
	}
	if !isAdhesionOption(in.AdhesionRate) {
		return reject(CodeInvalidAdhesionRate, "adhesion rate %s is not an offered option", in.AdhesionRate.String())
	}
	if in.TableID != "" && meta.ID != "" && in.TableID != meta.ID {
		return reject(CodeTableMismatch, "input targets table %s but metadata is for %s", in.TableID, meta.ID)
	}
	return nil
}

func isAdhesionOption(rate decimal.Decimal) bool {
	for _, opt := range AdhesionRates {
		if opt.Equal(rate) {
			return true
		}
	}
	return false
}
