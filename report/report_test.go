package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

func sampleRecord(meta quota.TableMetadata, raw string, pocket int64) simulation.Record {
	req := simulation.Request{
		TableID:                  meta.ID,
		Credit:                   decimal.NewFromInt(100000),
		Term:                     60,
		PocketBid:                decimal.NewFromInt(pocket),
		InstallmentAllocationPct: decimal.NewFromInt(50),
		ContemplationMonth:       10,
	}
	if meta.PlanKind != quota.PlanStandard {
		req.Term = 80
	}
	return simulation.Record{
		ID:        "sim-1",
		TableID:   meta.ID,
		TableName: meta.Name,
		Request:   req,
		Result:    quota.Calculate(req.Input(), meta, quota.Installment{Value: decimal.RequireFromString(raw)}),
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func standardMeta() quota.TableMetadata {
	return quota.TableMetadata{
		ID:                  "auto-std",
		Name:                "Auto Standard",
		Category:            quota.CategoryVehicle,
		PlanKind:            quota.PlanStandard,
		AdminFeeRate:        decimal.RequireFromString("0.19"),
		ReserveFundRate:     decimal.RequireFromString("0.03"),
		InsuranceRate:       decimal.Zero,
		MaxEmbeddedBidRatio: decimal.RequireFromString("0.25"),
	}
}

func reducedMeta() quota.TableMetadata {
	m := standardMeta()
	m.ID = "auto-superlight"
	m.Name = "Auto Super Light"
	m.PlanKind = quota.PlanReduced50
	return m
}

func TestFormatBRL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1736.65", "R$ 1.736,65"},
		{"0", "R$ 0,00"},
		{"999", "R$ 999,00"},
		{"1000", "R$ 1.000,00"},
		{"100000", "R$ 100.000,00"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-1234567.891", "-R$ 1.234.567,89"},
		{"-0.001", "R$ 0,00"},
		{"0.005", "R$ 0,01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatBRL(decimal.RequireFromString(tt.in)))
		})
	}
}

func TestFormatPercentAndRate(t *testing.T) {
	assert.Equal(t, "40,00%", FormatPercent(decimal.NewFromInt(40)))
	assert.Equal(t, "12,35%", FormatPercent(decimal.RequireFromString("12.345")))
	assert.Equal(t, "19,00%", FormatRate(decimal.RequireFromString("0.19")))
	assert.Equal(t, "0,50%", FormatRate(decimal.RequireFromString("0.005")))
	assert.Equal(t, "44,44", FormatMonths(decimal.RequireFromString("44.444")))
}

func TestCSV_StandardPlan(t *testing.T) {
	// GIVEN: a standard simulation contemplated at month 10
	rec := sampleRecord(standardMeta(), "1736.65", 10000)

	// WHEN: rendering CSV
	out := CSV(rec.Result)

	// THEN: one header and one line per projected row
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 1+len(rec.Result.Standard.Scenarios))
	assert.True(t, strings.HasPrefix(lines[0], "path,default,month,offset,"))
	assert.Equal(t, 15, len(strings.Split(lines[0], ",")))
	assert.True(t, strings.HasPrefix(lines[1], "standard,true,10,0,1736.65,"), lines[1])
	for _, l := range lines[1:] {
		assert.Equal(t, 15, len(strings.Split(l, ",")), l)
	}
}

func TestCSV_ReducedPlanListsBothPaths(t *testing.T) {
	// GIVEN: a viable reduced plan
	rec := sampleRecord(reducedMeta(), "743.75", 5000)
	require.True(t, rec.Result.ReducedAvailable())

	// WHEN: rendering CSV
	out := CSV(rec.Result)

	// THEN: reduced rows are marked default and full-credit rows follow
	assert.Contains(t, out, "\nreduced_credit,true,10,0,")
	assert.Contains(t, out, "\nfull_credit,false,10,0,")
	assert.Less(t, strings.Index(out, "reduced_credit"), strings.Index(out, "full_credit"))
}

func TestMarkdown(t *testing.T) {
	// GIVEN: a stored standard simulation
	rec := sampleRecord(standardMeta(), "1736.65", 10000)

	// WHEN: rendering Markdown
	out := Markdown(rec)

	// THEN: header, baseline, bid and the projection are present
	assert.True(t, strings.HasPrefix(out, "# Simulation sim-1\n"))
	assert.Contains(t, out, "Table: Auto Standard (auto-std) | Plan: standard | Created: 2026-03-01T12:00:00Z")
	assert.Contains(t, out, "| Credit | R$ 100.000,00 |")
	assert.Contains(t, out, "| Installment | R$ 1.736,65 |")
	assert.Contains(t, out, "| Administration fee | R$ 19.000,00 |")
	assert.Contains(t, out, "| Total bid | R$ 10.000,00 |")
	assert.Contains(t, out, "| Toward installment | 50,00% |")
	assert.Contains(t, out, "| Standard (default) | R$ 100.000,00 | R$ 104.199,00 |")
	assert.Contains(t, out, "### Projection: Standard")
	assert.NotContains(t, out, "Reduced credit is not available")
}

func TestMarkdown_ReducedUnavailable(t *testing.T) {
	// GIVEN: a reduced plan whose bid consumes the reduced credit
	rec := sampleRecord(reducedMeta(), "743.75", 50000)
	require.False(t, rec.Result.ReducedAvailable())

	// WHEN: rendering Markdown
	out := Markdown(rec)

	// THEN: only the full-credit path is shown, with a note
	assert.Contains(t, out, "Reduced credit is not available")
	assert.Contains(t, out, "| Full credit (default) |")
	assert.NotContains(t, out, "### Projection: Reduced credit")
}
