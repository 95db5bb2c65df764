/*
Package factory provides JSON to Go price table conversion.

PURPOSE:
  Converts JSON table definitions into catalog.Table values. Tables change
  every time the administrator reprices a group, so they live as data:
  a JSON file, a database row, or a POST to the API.

JSON SCHEMA:
  {
    "id": "auto-std",
    "name": "Auto Standard",
    "category": "vehicle",
    "plan_kind": "standard",
    "admin_fee_rate": 0.19,
    "reserve_fund_rate": 0.03,
    "insurance_rate": 0.00038,
    "max_embedded_bid_ratio": 0.25,
    "rows": [
      {
        "credit": 100000,
        "terms": [
          {"term": 60, "with_insurance": 1774.65, "without_insurance": 1736.65},
          {"term": 80, "installment": 1410.10}
        ]
      }
    ]
  }

  A term carries either "installment" (insurance compulsory) or both
  "with_insurance" and "without_insurance". Amounts may be JSON numbers or
  strings; ToJSON writes strings so no precision is lost.

USAGE:
  f := factory.NewTableFactory()
  table, err := f.ParseTable(tables.AutoStandardJSON())
  cat, err := f.ParseCatalog(fileBytes)

SEE ALSO:
  - catalog/table.go: Table type definition
  - tables/: preset table definitions
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// TableJSON is the JSON representation of a price table.
type TableJSON struct {
	ID                  string          `json:"id"`
	Name                string          `json:"name"`
	Category            string          `json:"category"`
	PlanKind            string          `json:"plan_kind,omitempty"` // default standard
	AdminFeeRate        decimal.Decimal `json:"admin_fee_rate"`
	ReserveFundRate     decimal.Decimal `json:"reserve_fund_rate"`
	InsuranceRate       decimal.Decimal `json:"insurance_rate"`
	MaxEmbeddedBidRatio decimal.Decimal `json:"max_embedded_bid_ratio"`
	Rows                []RowJSON       `json:"rows"`
}

// RowJSON is one credit row.
type RowJSON struct {
	Credit decimal.Decimal `json:"credit"`
	Terms  []TermJSON      `json:"terms"`
}

// TermJSON is one term column.
type TermJSON struct {
	Term             int              `json:"term"`
	Installment      *decimal.Decimal `json:"installment,omitempty"`
	WithInsurance    *decimal.Decimal `json:"with_insurance,omitempty"`
	WithoutInsurance *decimal.Decimal `json:"without_insurance,omitempty"`
}

// =============================================================================
// TABLE FACTORY
// =============================================================================

// TableFactory converts JSON tables to catalog tables.
type TableFactory struct{}

// NewTableFactory creates a new table factory.
func NewTableFactory() *TableFactory {
	return &TableFactory{}
}

// ParseTable parses a JSON string into a validated Table.
func (f *TableFactory) ParseTable(jsonStr string) (catalog.Table, error) {
	var tj TableJSON
	if err := json.Unmarshal([]byte(jsonStr), &tj); err != nil {
		return catalog.Table{}, fmt.Errorf("failed to parse table JSON: %w", err)
	}
	return f.FromJSON(tj)
}

// ParseCatalog parses a JSON array of tables into a TableCatalog.
func (f *TableFactory) ParseCatalog(data []byte) (*catalog.TableCatalog, error) {
	var list []TableJSON
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse catalog JSON: %w", err)
	}
	tables := make([]catalog.Table, 0, len(list))
	for _, tj := range list {
		t, err := f.FromJSON(tj)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return catalog.NewCatalog(tables...)
}

// FromJSON converts TableJSON to a validated catalog.Table.
func (f *TableFactory) FromJSON(tj TableJSON) (catalog.Table, error) {
	category, err := quota.ParseCategory(tj.Category)
	if err != nil {
		return catalog.Table{}, err
	}
	if tj.PlanKind == "" {
		tj.PlanKind = string(quota.PlanStandard)
	}
	plan, err := quota.ParsePlanKind(tj.PlanKind)
	if err != nil {
		return catalog.Table{}, err
	}

	table := catalog.Table{
		Meta: quota.TableMetadata{
			ID:                  quota.TableID(tj.ID),
			Name:                tj.Name,
			Category:            category,
			PlanKind:            plan,
			AdminFeeRate:        tj.AdminFeeRate,
			ReserveFundRate:     tj.ReserveFundRate,
			InsuranceRate:       tj.InsuranceRate,
			MaxEmbeddedBidRatio: tj.MaxEmbeddedBidRatio,
		},
	}

	for _, rj := range tj.Rows {
		row := catalog.PriceRow{Credit: rj.Credit}
		for _, termJ := range rj.Terms {
			spec, err := parseInstallment(termJ)
			if err != nil {
				return catalog.Table{}, fmt.Errorf("%w: table %s credit %s: %v", quota.ErrInvalidTable, tj.ID, rj.Credit, err)
			}
			row.Terms = append(row.Terms, catalog.TermOption{Term: termJ.Term, Installment: spec})
		}
		table.Rows = append(table.Rows, row)
	}

	if err := table.Validate(); err != nil {
		return catalog.Table{}, err
	}
	return table, nil
}

// ToJSON converts a Table to TableJSON.
func (f *TableFactory) ToJSON(t catalog.Table) TableJSON {
	tj := TableJSON{
		ID:                  string(t.Meta.ID),
		Name:                t.Meta.Name,
		Category:            string(t.Meta.Category),
		PlanKind:            string(t.Meta.PlanKind),
		AdminFeeRate:        t.Meta.AdminFeeRate,
		ReserveFundRate:     t.Meta.ReserveFundRate,
		InsuranceRate:       t.Meta.InsuranceRate,
		MaxEmbeddedBidRatio: t.Meta.MaxEmbeddedBidRatio,
	}
	for _, row := range t.Rows {
		rj := RowJSON{Credit: row.Credit}
		for _, opt := range row.Terms {
			termJ := TermJSON{Term: opt.Term}
			spec := opt.Installment
			if spec.Kind == catalog.InstallmentByInsurance {
				with, without := spec.WithInsurance, spec.WithoutInsurance
				termJ.WithInsurance = &with
				termJ.WithoutInsurance = &without
			} else {
				v := spec.Value
				termJ.Installment = &v
			}
			rj.Terms = append(rj.Terms, termJ)
		}
		tj.Rows = append(tj.Rows, rj)
	}
	return tj
}

// Marshal renders a table as indented JSON.
func (f *TableFactory) Marshal(t catalog.Table) (string, error) {
	b, err := json.MarshalIndent(f.ToJSON(t), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal table %s: %w", t.Meta.ID, err)
	}
	return string(b), nil
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseInstallment(tj TermJSON) (catalog.InstallmentSpec, error) {
	switch {
	case tj.Installment != nil && tj.WithInsurance == nil && tj.WithoutInsurance == nil:
		return catalog.Single(*tj.Installment), nil
	case tj.Installment == nil && tj.WithInsurance != nil && tj.WithoutInsurance != nil:
		return catalog.ByInsurance(*tj.WithInsurance, *tj.WithoutInsurance), nil
	default:
		return catalog.InstallmentSpec{}, fmt.Errorf("term %d needs either installment or with_insurance and without_insurance", tj.Term)
	}
}
