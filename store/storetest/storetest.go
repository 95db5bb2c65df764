// Package storetest holds the behavior every simulation.Store must share.
// Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) simulation.Store) {
	t.Run("TableRoundTrip", func(t *testing.T) { testTableRoundTrip(t, newStore(t)) })
	t.Run("TableReplace", func(t *testing.T) { testTableReplace(t, newStore(t)) })
	t.Run("TableNotFound", func(t *testing.T) { testTableNotFound(t, newStore(t)) })
	t.Run("SimulationRoundTrip", func(t *testing.T) { testSimulationRoundTrip(t, newStore(t)) })
	t.Run("SimulationList", func(t *testing.T) { testSimulationList(t, newStore(t)) })
	t.Run("SimulationPrune", func(t *testing.T) { testSimulationPrune(t, newStore(t)) })
}

// =============================================================================
// FIXTURES
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// Table returns a valid reduced-plan table with both installment shapes.
func Table(id quota.TableID) catalog.Table {
	return catalog.Table{
		Meta: quota.TableMetadata{
			ID:                  id,
			Name:                "Auto Light",
			Category:            quota.CategoryVehicle,
			PlanKind:            quota.PlanReduced50,
			AdminFeeRate:        d("0.17"),
			ReserveFundRate:     d("0.02"),
			InsuranceRate:       d("0.00038"),
			MaxEmbeddedBidRatio: d("0.25"),
		},
		Rows: []catalog.PriceRow{
			{Credit: d("100000"), Terms: []catalog.TermOption{
				{Term: 80, Installment: catalog.ByInsurance(d("781.75"), d("743.75"))},
				{Term: 100, Installment: catalog.Single(d("633.00"))},
			}},
		},
	}
}

// Record returns a calculated record created at the given time.
func Record(id string, createdAt time.Time) simulation.Record {
	table := Table("auto-light")
	req := simulation.Request{
		TableID:                  table.Meta.ID,
		Credit:                   d("100000"),
		Term:                     80,
		Insurance:                true,
		PocketBid:                d("10000"),
		EmbeddedBidRatio:         d("0.10"),
		AppraisalBid:             decimal.Zero,
		AdhesionRate:             d("0.01"),
		InstallmentAllocationPct: d("50"),
		ContemplationMonth:       12,
	}
	inst, err := table.Resolve(req.Credit, req.Term, req.Insurance)
	if err != nil {
		panic(err)
	}
	return simulation.Record{
		ID:        id,
		TableID:   table.Meta.ID,
		TableName: table.Meta.Name,
		Request:   req,
		Result:    quota.Calculate(req.Input(), table.Meta, inst),
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	}
}

// =============================================================================
// TABLES
// =============================================================================

func testTableRoundTrip(t *testing.T, s simulation.Store) {
	ctx := context.Background()
	table := Table("auto-light")

	require.NoError(t, s.SaveTable(ctx, table))

	got, err := s.GetTable(ctx, "auto-light")
	require.NoError(t, err)
	assert.Equal(t, table.Meta.ID, got.Meta.ID)
	assert.Equal(t, table.Meta.PlanKind, got.Meta.PlanKind)
	assert.True(t, table.Meta.InsuranceRate.Equal(got.Meta.InsuranceRate))

	for _, term := range []int{80, 100} {
		for _, ins := range []bool{true, false} {
			want, err := table.Resolve(d("100000"), term, ins)
			require.NoError(t, err)
			have, err := got.Resolve(d("100000"), term, ins)
			require.NoError(t, err)
			assert.True(t, want.Value.Equal(have.Value), "term %d insurance %v", term, ins)
			assert.Equal(t, want.Insured, have.Insured)
		}
	}
}

func testTableReplace(t *testing.T, s simulation.Store) {
	ctx := context.Background()
	table := Table("auto-light")
	require.NoError(t, s.SaveTable(ctx, table))

	table.Meta.Name = "Auto Light v2"
	require.NoError(t, s.SaveTable(ctx, table))
	require.NoError(t, s.SaveTable(ctx, Table("another")))

	list, err := s.ListTables(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, quota.TableID("another"), list[0].Meta.ID)
	assert.Equal(t, "Auto Light v2", list[1].Meta.Name)
}

func testTableNotFound(t *testing.T, s simulation.Store) {
	_, err := s.GetTable(context.Background(), "missing")
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func testSimulationRoundTrip(t *testing.T, s simulation.Store) {
	ctx := context.Background()
	rec := Record("sim-1", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))

	require.NoError(t, s.SaveSimulation(ctx, rec))

	got, err := s.GetSimulation(ctx, "sim-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.TableID, got.TableID)
	assert.Equal(t, rec.TableName, got.TableName)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, rec.Request.Credit.Equal(got.Request.Credit))
	assert.Equal(t, rec.Request.ContemplationMonth, got.Request.ContemplationMonth)

	require.NotNil(t, got.Result)
	assert.True(t, rec.Result.TotalCost.Equal(got.Result.TotalCost))
	assert.Equal(t, rec.Result.DefaultPath, got.Result.DefaultPath)
	require.Len(t, got.Result.Scenarios, len(rec.Result.Scenarios))
	assert.True(t, rec.Result.Scenarios[2].Installment.Equal(got.Result.Scenarios[2].Installment))
	require.NotNil(t, got.Result.RecomposedInstallment)
	assert.True(t, rec.Result.RecomposedInstallment.Equal(*got.Result.RecomposedInstallment))

	_, err = s.GetSimulation(ctx, "sim-404")
	assert.ErrorIs(t, err, simulation.ErrSimulationNotFound)
}

func testSimulationList(t *testing.T, s simulation.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// GIVEN: Three records saved out of chronological order
	require.NoError(t, s.SaveSimulation(ctx, Record("b", base.Add(time.Hour))))
	require.NoError(t, s.SaveSimulation(ctx, Record("a", base)))
	require.NoError(t, s.SaveSimulation(ctx, Record("c", base.Add(2*time.Hour))))

	// THEN: Listing is newest first and honors the limit
	all, err := s.ListSimulations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	two, err := s.ListSimulations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, two, 2)
	assert.Equal(t, "c", two[0].ID)
}

func testSimulationPrune(t *testing.T, s simulation.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveSimulation(ctx, Record("old", base)))
	require.NoError(t, s.SaveSimulation(ctx, Record("older", base.Add(-time.Hour))))
	require.NoError(t, s.SaveSimulation(ctx, Record("new", base.Add(2*time.Hour))))

	// WHEN: Pruning everything before base + 1h
	n, err := s.DeleteSimulationsBefore(ctx, base.Add(time.Hour))
	require.NoError(t, err)

	// THEN: Only the newest record remains
	assert.Equal(t, int64(2), n)
	left, err := s.ListSimulations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)

	n, err = s.DeleteSimulationsBefore(ctx, base)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
