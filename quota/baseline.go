package quota

import "github.com/shopspring/decimal"

// Baseline holds the pre-contemplation figures of a simulation.
type Baseline struct {
	Installment      decimal.Decimal // raw table installment
	MonthlyInsurance decimal.Decimal
	AdminFee         decimal.Decimal
	ReserveFund      decimal.Decimal
	AdhesionFee      decimal.Decimal
	EmbeddedBid      decimal.Decimal
	TotalBid         decimal.Decimal
	FirstInstallment decimal.Decimal // installment + adhesion
}

// ComputeBaseline derives the fee and bid amounts from the table rates.
// Insurance is charged only when the resolved installment is insured.
func ComputeBaseline(in SimulationInput, meta TableMetadata, inst Installment) Baseline {
	insurance := decimal.Zero
	if inst.Insured {
		insurance = in.Credit.Mul(meta.InsuranceRate)
	}
	adhesion := in.Credit.Mul(in.AdhesionRate)

	return Baseline{
		Installment:      inst.Value,
		MonthlyInsurance: insurance,
		AdminFee:         in.Credit.Mul(meta.AdminFeeRate),
		ReserveFund:      in.Credit.Mul(meta.ReserveFundRate),
		AdhesionFee:      adhesion,
		EmbeddedBid:      in.EmbeddedBid(),
		TotalBid:         in.TotalBid(),
		FirstInstallment: inst.Value.Add(adhesion),
	}
}
