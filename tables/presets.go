/*
Package tables provides the built-in price table definitions.

These functions return JSON table definitions ready for factory.ParseTable.
Installments are derived from the table rates the way an administrator
prices a group: (credit * plan factor) * (1 + admin + reserve) / term,
plus credit * insurance rate for the insured variant.

USAGE:
  import "github.com/warp/quota-simulator/tables"

  table, err := factory.NewTableFactory().ParseTable(tables.AutoStandardJSON())
  cat, err := tables.DefaultCatalog()
*/
package tables

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/quota"
)

// Preset table ids.
const (
	AutoStandardID   quota.TableID = "auto-std"
	AutoSuperLightID quota.TableID = "auto-superlight"
	ImovelLightID    quota.TableID = "imovel-light"
	MotoID           quota.TableID = "moto"
	ServicosID       quota.TableID = "servicos"
)

// AutoStandardJSON returns JSON for the standard vehicle table.
func AutoStandardJSON() string {
	return build(preset{
		id:          AutoStandardID,
		name:        "Auto Standard",
		category:    quota.CategoryVehicle,
		plan:        quota.PlanStandard,
		adminFee:    "0.16",
		reserveFund: "0.02",
		insurance:   "0.00038",
		maxEmbedded: "0.25",
		credits:     []int64{50000, 75000, 100000, 125000, 150000},
		terms:       []int{60, 72, 80},
		byInsurance: true,
	})
}

// AutoSuperLightJSON returns JSON for the vehicle table that pays 50% of the
// installment until contemplation.
func AutoSuperLightJSON() string {
	return build(preset{
		id:          AutoSuperLightID,
		name:        "Auto Super Light 50%",
		category:    quota.CategoryVehicle,
		plan:        quota.PlanReduced50,
		adminFee:    "0.17",
		reserveFund: "0.02",
		insurance:   "0.00038",
		maxEmbedded: "0.25",
		credits:     []int64{60000, 80000, 100000, 150000, 200000},
		terms:       []int{80, 100},
		byInsurance: true,
	})
}

// ImovelLightJSON returns JSON for the real-estate 75% table. Insurance is
// compulsory, so every term prints a single installment.
func ImovelLightJSON() string {
	return build(preset{
		id:          ImovelLightID,
		name:        "Imovel Light 75%",
		category:    quota.CategoryRealEstate,
		plan:        quota.PlanReduced75,
		adminFee:    "0.22",
		reserveFund: "0.02",
		insurance:   "0.00035",
		maxEmbedded: "0.30",
		credits:     []int64{200000, 300000, 400000, 500000, 600000},
		terms:       []int{180, 200, 220},
	})
}

// MotoJSON returns JSON for the motorcycle table.
func MotoJSON() string {
	return build(preset{
		id:          MotoID,
		name:        "Moto",
		category:    quota.CategoryMotorcycle,
		plan:        quota.PlanStandard,
		adminFee:    "0.18",
		reserveFund: "0.02",
		insurance:   "0.0005",
		maxEmbedded: "0.20",
		credits:     []int64{15000, 20000, 25000, 30000, 35000},
		terms:       []int{36, 48, 60},
	})
}

// ServicosJSON returns JSON for the services table. It carries no insurance.
func ServicosJSON() string {
	return build(preset{
		id:          ServicosID,
		name:        "Servicos",
		category:    quota.CategoryService,
		plan:        quota.PlanStandard,
		adminFee:    "0.20",
		reserveFund: "0.03",
		insurance:   "0",
		maxEmbedded: "0.15",
		credits:     []int64{10000, 15000, 20000, 25000, 30000},
		terms:       []int{24, 36, 40},
	})
}

// All returns every preset definition.
func All() []string {
	return []string{AutoStandardJSON(), AutoSuperLightJSON(), ImovelLightJSON(), MotoJSON(), ServicosJSON()}
}

// DefaultCatalog parses every preset into a catalog.
func DefaultCatalog() (*catalog.TableCatalog, error) {
	f := factory.NewTableFactory()
	var list []catalog.Table
	for _, js := range All() {
		t, err := f.ParseTable(js)
		if err != nil {
			return nil, err
		}
		list = append(list, t)
	}
	return catalog.NewCatalog(list...)
}

// =============================================================================
// BUILDER
// =============================================================================

type preset struct {
	id          quota.TableID
	name        string
	category    quota.Category
	plan        quota.PlanKind
	adminFee    string
	reserveFund string
	insurance   string
	maxEmbedded string
	credits     []int64
	terms       []int
	byInsurance bool
}

func build(p preset) string {
	admin := decimal.RequireFromString(p.adminFee)
	reserve := decimal.RequireFromString(p.reserveFund)
	insurance := decimal.RequireFromString(p.insurance)
	loading := decimal.NewFromInt(1).Add(admin).Add(reserve)

	rows := make([]map[string]interface{}, 0, len(p.credits))
	for _, c := range p.credits {
		credit := decimal.NewFromInt(c)
		priced := credit.Mul(p.plan.Factor()).Mul(loading)

		terms := make([]map[string]interface{}, 0, len(p.terms))
		for _, term := range p.terms {
			base := priced.Div(decimal.NewFromInt(int64(term))).Round(2)
			insured := base.Add(credit.Mul(insurance)).Round(2)
			if p.byInsurance {
				terms = append(terms, map[string]interface{}{
					"term":              term,
					"with_insurance":    insured.StringFixed(2),
					"without_insurance": base.StringFixed(2),
				})
			} else {
				terms = append(terms, map[string]interface{}{
					"term":        term,
					"installment": insured.StringFixed(2),
				})
			}
		}
		rows = append(rows, map[string]interface{}{
			"credit": c,
			"terms":  terms,
		})
	}

	pj := map[string]interface{}{
		"id":                     string(p.id),
		"name":                   p.name,
		"category":               string(p.category),
		"plan_kind":              string(p.plan),
		"admin_fee_rate":         p.adminFee,
		"reserve_fund_rate":      p.reserveFund,
		"insurance_rate":         p.insurance,
		"max_embedded_bid_ratio": p.maxEmbedded,
		"rows":                   rows,
	}
	b, _ := json.MarshalIndent(pj, "", "  ")
	return string(b)
}
