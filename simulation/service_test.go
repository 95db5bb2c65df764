package simulation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/cache"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
	"github.com/warp/quota-simulator/store/memory"
	"github.com/warp/quota-simulator/tables"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type countingRecorder struct {
	mu        sync.Mutex
	completed int
	rejected  []string
	lookups   map[string]int
	errors    []string
	pruned    int64
	uploaded  int
}

func newRecorder() *countingRecorder { return &countingRecorder{lookups: map[string]int{}} }

func (r *countingRecorder) SimulationCompleted(string, string, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *countingRecorder) SimulationRejected(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, code)
}

func (r *countingRecorder) CacheLookup(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups[result]++
}

func (r *countingRecorder) StoreError(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, op)
}

func (r *countingRecorder) Pruned(n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned += n
}

func (r *countingRecorder) TableUploaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploaded++
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*quota.SimulationResult, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingCache) Set(context.Context, string, *quota.SimulationResult) error {
	return errors.New("connection refused")
}

type failingStore struct {
	*memory.Memory
}

func (failingStore) SaveSimulation(context.Context, simulation.Record) error {
	return errors.New("disk full")
}

func newService(t *testing.T, opts ...simulation.Option) (*simulation.Service, *memory.Memory) {
	t.Helper()
	cat, err := tables.DefaultCatalog()
	require.NoError(t, err)
	store := memory.NewMemory()
	return simulation.NewService(store, cat, opts...), store
}

func autoRequest() simulation.Request {
	return simulation.Request{
		TableID:                  tables.AutoStandardID,
		Credit:                   d("100000"),
		Term:                     60,
		Insurance:                false,
		PocketBid:                decimal.Zero,
		EmbeddedBidRatio:         decimal.Zero,
		AppraisalBid:             decimal.Zero,
		AdhesionRate:             decimal.Zero,
		InstallmentAllocationPct: decimal.Zero,
		ContemplationMonth:       10,
	}
}

// =============================================================================
// SIMULATE
// =============================================================================

func TestSimulate_PersistsRecord(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	svc, store := newService(t, simulation.WithRecorder(rec))

	// WHEN: Simulating on the standard vehicle preset
	record, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)

	// THEN: The uninsured installment is used for the whole term
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, tables.AutoStandardID, record.TableID)
	assert.Equal(t, "Auto Standard", record.TableName)
	assert.True(t, d("1966.67").Equal(record.Result.PreContemplationInstallment))
	assert.True(t, d("118000.20").Equal(record.Result.TotalCost))
	assert.True(t, record.Result.MonthlyInsurance.IsZero())
	assert.False(t, record.Cached)

	stored, err := store.GetSimulation(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, record.Result.TotalCost.Equal(stored.Result.TotalCost))
	assert.Equal(t, 1, rec.completed)
}

func TestSimulate_InsuranceElection(t *testing.T) {
	svc, _ := newService(t)
	req := autoRequest()
	req.Insurance = true

	record, err := svc.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, d("2004.67").Equal(record.Result.PreContemplationInstallment))
	assert.True(t, d("38").Equal(record.Result.MonthlyInsurance))
}

func TestSimulate_Rejection(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	svc, store := newService(t, simulation.WithRecorder(rec))

	req := autoRequest()
	req.PocketBid = d("100000")

	record, err := svc.Simulate(ctx, req)

	assert.Nil(t, record)
	var verr *quota.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, quota.CodeBidNotBelowCredit, verr.Code)
	assert.Equal(t, []string{quota.CodeBidNotBelowCredit}, rec.rejected)

	list, err := store.ListSimulations(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSimulate_LookupErrors(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	req := autoRequest()
	req.TableID = "boat"
	_, err := svc.Simulate(ctx, req)
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)

	req = autoRequest()
	req.Credit = d("99999")
	_, err = svc.Simulate(ctx, req)
	assert.ErrorIs(t, err, catalog.ErrCreditNotOffered)

	req = autoRequest()
	req.Term = 61
	_, err = svc.Simulate(ctx, req)
	assert.ErrorIs(t, err, catalog.ErrTermNotOffered)
}

func TestSimulate_CacheHit(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	svc, _ := newService(t,
		simulation.WithCache(cache.NewMemoryCache(time.Minute, 0)),
		simulation.WithRecorder(rec))

	first, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)
	second, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)

	// THEN: The second run reuses the result but is its own record
	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, first.Result.TotalCost.Equal(second.Result.TotalCost))
	assert.Equal(t, 1, rec.lookups["miss"])
	assert.Equal(t, 1, rec.lookups["hit"])

	list, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestSimulate_CacheFailuresAreNotFatal(t *testing.T) {
	rec := newRecorder()
	svc, _ := newService(t, simulation.WithCache(failingCache{}), simulation.WithRecorder(rec))

	record, err := svc.Simulate(context.Background(), autoRequest())

	require.NoError(t, err)
	assert.NotNil(t, record.Result)
	assert.Equal(t, 1, rec.lookups["error"])
	assert.Equal(t, []string{"cache_set"}, rec.errors)
}

func TestSimulate_HistoryWriteFailureIsReturned(t *testing.T) {
	cat, err := tables.DefaultCatalog()
	require.NoError(t, err)
	rec := newRecorder()
	svc := simulation.NewService(failingStore{memory.NewMemory()}, cat, simulation.WithRecorder(rec))

	_, err = svc.Simulate(context.Background(), autoRequest())

	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, []string{"save_simulation"}, rec.errors)
}

func TestSimulate_RepricedTableInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, simulation.WithCache(cache.NewMemoryCache(time.Minute, 0)))

	_, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)

	// WHEN: The preset is overridden with a new price
	table, err := svc.Table(ctx, tables.AutoStandardID)
	require.NoError(t, err)
	for i, row := range table.Rows {
		if row.Credit.Equal(d("100000")) {
			for j, opt := range row.Terms {
				if opt.Term == 60 {
					table.Rows[i].Terms[j].Installment = catalog.ByInsurance(d("2100"), d("2000"))
				}
			}
		}
	}
	require.NoError(t, svc.SaveTable(ctx, table))

	// THEN: The next run misses the cache and uses the new price
	record, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)
	assert.False(t, record.Cached)
	assert.True(t, d("120000").Equal(record.Result.TotalCost))
}

// =============================================================================
// TABLES, VALIDATE, PRUNE
// =============================================================================

func TestTables_StoredOverrideBuiltIn(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder()
	svc, _ := newService(t, simulation.WithRecorder(rec))

	custom, err := svc.Table(ctx, tables.MotoID)
	require.NoError(t, err)
	custom.Meta.Name = "Moto Promo"
	require.NoError(t, svc.SaveTable(ctx, custom))

	list, err := svc.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for _, table := range list {
		if table.Meta.ID == tables.MotoID {
			assert.Equal(t, "Moto Promo", table.Meta.Name)
		}
	}
	assert.Equal(t, 1, rec.uploaded)
}

func TestSaveTable_RejectsInvalid(t *testing.T) {
	svc, _ := newService(t)
	err := svc.SaveTable(context.Background(), catalog.Table{Meta: quota.TableMetadata{ID: "x"}})
	assert.ErrorIs(t, err, quota.ErrInvalidTable)
}

func TestValidate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	reason, err := svc.Validate(ctx, autoRequest())
	require.NoError(t, err)
	assert.Nil(t, reason)

	req := autoRequest()
	req.EmbeddedBidRatio = d("0.5")
	reason, err = svc.Validate(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, reason)
	assert.Equal(t, quota.CodeEmbeddedBidExceedsMax, reason.Code)

	req.TableID = "boat"
	_, err = svc.Validate(ctx, req)
	assert.ErrorIs(t, err, catalog.ErrTableNotFound)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := newRecorder()
	svc, _ := newService(t,
		simulation.WithRecorder(rec),
		simulation.WithClock(func() time.Time { return now }))

	_, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)
	now = now.Add(48 * time.Hour)
	kept, err := svc.Simulate(ctx, autoRequest())
	require.NoError(t, err)

	n, err := svc.Prune(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, int64(1), rec.pruned)

	left, err := svc.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, kept.ID, left[0].ID)

	_, err = svc.Get(ctx, "nope")
	assert.ErrorIs(t, err, simulation.ErrSimulationNotFound)
}

func TestCacheKey(t *testing.T) {
	cat, err := tables.DefaultCatalog()
	require.NoError(t, err)
	table, err := cat.Get(tables.AutoStandardID)
	require.NoError(t, err)
	inst, err := table.Resolve(d("100000"), 60, false)
	require.NoError(t, err)

	a := autoRequest().Input()
	b := autoRequest().Input()
	b.Credit = d("100000.00")
	assert.Equal(t, simulation.CacheKey(a, table.Meta, inst), simulation.CacheKey(b, table.Meta, inst),
		"equal amounts with different scale share a key")

	b.ContemplationMonth = 11
	assert.NotEqual(t, simulation.CacheKey(a, table.Meta, inst), simulation.CacheKey(b, table.Meta, inst))
}
