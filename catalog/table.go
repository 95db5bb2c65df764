/*
Package catalog holds the price tables a simulation is resolved against.

PURPOSE:
  A table is its quota.TableMetadata plus a price grid: for every offered
  credit, the offered terms and the raw installment of each term. Some
  tables print one installment per term (insurance is compulsory), others
  print the installment with and without insurance.

KEY CONCEPTS:
  - InstallmentSpec: tagged union, Single(value) | ByInsurance(with, without)
  - PriceRow / TermOption: one credit row and its term columns
  - Table: metadata + rows, resolves the raw installment for the engine
  - TableCatalog: immutable set of tables, built once and passed explicitly

USAGE:
  cat, err := catalog.NewCatalog(tables...)
  table, err := cat.Get("auto-std")
  inst, err := table.Resolve(credit, 60, true)

SEE ALSO:
  - factory/table.go: JSON <-> Table conversion
  - tables/: built-in presets
*/
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/quota"
)

var (
	ErrTableNotFound    = errors.New("table not found")
	ErrCreditNotOffered = errors.New("credit not offered by table")
	ErrTermNotOffered   = errors.New("term not offered for credit")
	ErrDuplicateTable   = errors.New("duplicate table id")
)

// =============================================================================
// INSTALLMENT SPEC
// =============================================================================

// InstallmentKind discriminates InstallmentSpec.
type InstallmentKind string

const (
	InstallmentSingle      InstallmentKind = "single"
	InstallmentByInsurance InstallmentKind = "by_insurance"
)

// InstallmentSpec is the printed installment of one term column.
// Build it with Single or ByInsurance.
type InstallmentSpec struct {
	Kind             InstallmentKind
	Value            decimal.Decimal // Single
	WithInsurance    decimal.Decimal // ByInsurance
	WithoutInsurance decimal.Decimal // ByInsurance
}

// Single is an installment that already includes compulsory insurance.
func Single(v decimal.Decimal) InstallmentSpec {
	return InstallmentSpec{Kind: InstallmentSingle, Value: v}
}

// ByInsurance is an installment printed in both variants.
func ByInsurance(with, without decimal.Decimal) InstallmentSpec {
	return InstallmentSpec{Kind: InstallmentByInsurance, WithInsurance: with, WithoutInsurance: without}
}

// Resolve picks the installment for the user's insurance election.
// A Single installment is always insured regardless of the election.
func (s InstallmentSpec) Resolve(insurance bool) quota.Installment {
	if s.Kind == InstallmentByInsurance {
		if insurance {
			return quota.Installment{Value: s.WithInsurance, Insured: true}
		}
		return quota.Installment{Value: s.WithoutInsurance, Insured: false}
	}
	return quota.Installment{Value: s.Value, Insured: true}
}

func (s InstallmentSpec) validate() error {
	switch s.Kind {
	case InstallmentSingle:
		if !s.Value.IsPositive() {
			return fmt.Errorf("installment %s must be positive", s.Value)
		}
	case InstallmentByInsurance:
		if !s.WithInsurance.IsPositive() || !s.WithoutInsurance.IsPositive() {
			return fmt.Errorf("installments %s/%s must be positive", s.WithInsurance, s.WithoutInsurance)
		}
	default:
		return fmt.Errorf("unknown installment kind %q", s.Kind)
	}
	return nil
}

// =============================================================================
// TABLE
// =============================================================================

// TermOption is one term column of a credit row.
type TermOption struct {
	Term        int
	Installment InstallmentSpec
}

// PriceRow lists the terms offered for a credit.
type PriceRow struct {
	Credit decimal.Decimal
	Terms  []TermOption
}

// Table is a price table. Treat it as read-only once it is in a catalog.
type Table struct {
	Meta quota.TableMetadata
	Rows []PriceRow
}

// Validate checks the metadata and the price grid.
func (t Table) Validate() error {
	if err := t.Meta.Validate(); err != nil {
		return err
	}
	if len(t.Rows) == 0 {
		return fmt.Errorf("%w: table %s has no price rows", quota.ErrInvalidTable, t.Meta.ID)
	}
	seen := make(map[string]bool, len(t.Rows))
	for _, row := range t.Rows {
		key := row.Credit.String()
		if !row.Credit.IsPositive() {
			return fmt.Errorf("%w: table %s has non-positive credit %s", quota.ErrInvalidTable, t.Meta.ID, key)
		}
		if seen[key] {
			return fmt.Errorf("%w: table %s repeats credit %s", quota.ErrInvalidTable, t.Meta.ID, key)
		}
		seen[key] = true
		if len(row.Terms) == 0 {
			return fmt.Errorf("%w: table %s credit %s has no terms", quota.ErrInvalidTable, t.Meta.ID, key)
		}
		for _, opt := range row.Terms {
			if opt.Term <= 0 {
				return fmt.Errorf("%w: table %s credit %s has term %d", quota.ErrInvalidTable, t.Meta.ID, key, opt.Term)
			}
			if err := opt.Installment.validate(); err != nil {
				return fmt.Errorf("%w: table %s credit %s term %d: %v", quota.ErrInvalidTable, t.Meta.ID, key, opt.Term, err)
			}
		}
	}
	return nil
}

// Row returns the price row of a credit.
func (t Table) Row(credit decimal.Decimal) (PriceRow, error) {
	for _, row := range t.Rows {
		if row.Credit.Equal(credit) {
			return row, nil
		}
	}
	return PriceRow{}, fmt.Errorf("%w: %s in %s", ErrCreditNotOffered, credit, t.Meta.ID)
}

// Option returns the term column of a credit.
func (t Table) Option(credit decimal.Decimal, term int) (TermOption, error) {
	row, err := t.Row(credit)
	if err != nil {
		return TermOption{}, err
	}
	for _, opt := range row.Terms {
		if opt.Term == term {
			return opt, nil
		}
	}
	return TermOption{}, fmt.Errorf("%w: %d months for %s in %s", ErrTermNotOffered, term, credit, t.Meta.ID)
}

// Credits returns the offered credits in ascending order.
func (t Table) Credits() []decimal.Decimal {
	credits := make([]decimal.Decimal, 0, len(t.Rows))
	for _, row := range t.Rows {
		credits = append(credits, row.Credit)
	}
	sort.Slice(credits, func(i, j int) bool { return credits[i].LessThan(credits[j]) })
	return credits
}

// Terms returns the offered terms of a credit in ascending order.
func (t Table) Terms(credit decimal.Decimal) ([]int, error) {
	row, err := t.Row(credit)
	if err != nil {
		return nil, err
	}
	terms := make([]int, 0, len(row.Terms))
	for _, opt := range row.Terms {
		terms = append(terms, opt.Term)
	}
	sort.Ints(terms)
	return terms, nil
}

// Resolve returns the raw installment for a credit, term and insurance election.
func (t Table) Resolve(credit decimal.Decimal, term int, insurance bool) (quota.Installment, error) {
	opt, err := t.Option(credit, term)
	if err != nil {
		return quota.Installment{}, err
	}
	return opt.Installment.Resolve(insurance), nil
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	rows := make([]PriceRow, len(t.Rows))
	for i, row := range t.Rows {
		terms := make([]TermOption, len(row.Terms))
		copy(terms, row.Terms)
		rows[i] = PriceRow{Credit: row.Credit, Terms: terms}
	}
	return Table{Meta: t.Meta, Rows: rows}
}
