/*
Package simulation is the application service around the quota engine.

PURPOSE:
  Turns a user request into a persisted simulation record. The engine is
  pure; everything with side effects lives here: table lookup, result
  caching, persistence, metrics and logs.

SIMULATE FLOW:
  1. Load the table: runtime store first, built-in catalog second
  2. Resolve the raw installment for credit / term / insurance
  3. Validate (rejections return *quota.ValidationError)
  4. Look the result up in the ResultCache by content key
  5. Calculate on a miss
  6. Persist a Record in the SimulationStore
  7. Populate the cache
  8. Record metrics and log

FAILURE POLICY:
  Table lookup and validation errors are returned. Cache failures and a
  failed cache write are logged and counted, never returned: the user
  still gets the result. A failed history write IS returned, because the
  record id handed back would not resolve.

SEE ALSO:
  - store.go: ports implemented by store/* and cache/
  - quota/plan.go: the engine entry point
*/
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
	"go.uber.org/zap"
)

// Recorder receives service metrics. observability.Metrics implements it.
type Recorder interface {
	SimulationCompleted(planKind, defaultPath string, elapsed time.Duration)
	SimulationRejected(code string)
	CacheLookup(result string)
	StoreError(operation string)
	Pruned(n int64)
	TableUploaded()
}

type nopRecorder struct{}

func (nopRecorder) SimulationCompleted(string, string, time.Duration) {}
func (nopRecorder) SimulationRejected(string)                         {}
func (nopRecorder) CacheLookup(string)                                {}
func (nopRecorder) StoreError(string)                                 {}
func (nopRecorder) Pruned(int64)                                      {}
func (nopRecorder) TableUploaded()                                    {}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching.
func WithCache(c ResultCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

// WithLogger sets the logger. The default discards output.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service runs simulations against a catalog and a store.
type Service struct {
	store   Store
	catalog *catalog.TableCatalog
	cache   ResultCache
	metrics Recorder
	log     *zap.Logger
	now     func() time.Time
}

// NewService creates a Service. The catalog holds the built-in tables and
// may be empty; tables saved in the store take precedence.
func NewService(store Store, cat *catalog.TableCatalog, opts ...Option) *Service {
	if cat == nil {
		cat, _ = catalog.NewCatalog()
	}
	s := &Service{
		store:   store,
		catalog: cat,
		metrics: nopRecorder{},
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// =============================================================================
// TABLES
// =============================================================================

// Table returns a table by id.
func (s *Service) Table(ctx context.Context, id quota.TableID) (catalog.Table, error) {
	t, err := s.store.GetTable(ctx, id)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, catalog.ErrTableNotFound) {
		return catalog.Table{}, fmt.Errorf("load table %s: %w", id, err)
	}
	return s.catalog.Get(id)
}

// Tables returns the built-in tables merged with the stored ones, sorted by id.
func (s *Service) Tables(ctx context.Context) ([]catalog.Table, error) {
	stored, err := s.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	byID := make(map[quota.TableID]catalog.Table)
	for _, t := range s.catalog.List() {
		byID[t.Meta.ID] = t
	}
	for _, t := range stored {
		byID[t.Meta.ID] = t
	}
	out := make([]catalog.Table, 0, len(byID))
	for _, t := range byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta.ID < out[j].Meta.ID })
	return out, nil
}

// SaveTable validates and stores a table, replacing any table with its id.
func (s *Service) SaveTable(ctx context.Context, t catalog.Table) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := s.store.SaveTable(ctx, t); err != nil {
		s.metrics.StoreError("save_table")
		return fmt.Errorf("save table %s: %w", t.Meta.ID, err)
	}
	s.metrics.TableUploaded()
	s.log.Info("table saved",
		zap.String("table_id", string(t.Meta.ID)),
		zap.String("plan_kind", string(t.Meta.PlanKind)),
		zap.Int("rows", len(t.Rows)))
	return nil
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// resolve loads the table and the raw installment of a request.
func (s *Service) resolve(ctx context.Context, req Request) (catalog.Table, quota.Installment, error) {
	table, err := s.Table(ctx, req.TableID)
	if err != nil {
		return catalog.Table{}, quota.Installment{}, err
	}
	inst, err := table.Resolve(req.Credit, req.Term, req.Insurance)
	if err != nil {
		return catalog.Table{}, quota.Installment{}, err
	}
	return table, inst, nil
}

// Validate returns the rejection reason of a request, or nil when the
// request would be calculated. The error is for lookup failures only.
func (s *Service) Validate(ctx context.Context, req Request) (*quota.ValidationError, error) {
	table, _, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	var verr *quota.ValidationError
	if err := quota.Validate(req.Input(), table.Meta); errors.As(err, &verr) {
		return verr, nil
	}
	return nil, nil
}

// Simulate runs and persists a simulation.
func (s *Service) Simulate(ctx context.Context, req Request) (*Record, error) {
	start := s.now()

	table, inst, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	in := req.Input()

	if err := quota.Validate(in, table.Meta); err != nil {
		var verr *quota.ValidationError
		if errors.As(err, &verr) {
			s.metrics.SimulationRejected(verr.Code)
			s.log.Debug("simulation rejected",
				zap.String("table_id", string(req.TableID)),
				zap.String("code", verr.Code))
		}
		return nil, err
	}

	key := CacheKey(in, table.Meta, inst)
	result, cached := s.cached(ctx, key)
	if result == nil {
		result = quota.Calculate(in, table.Meta, inst)
	}

	record := &Record{
		ID:        uuid.NewString(),
		TableID:   table.Meta.ID,
		TableName: table.Meta.Name,
		Request:   req,
		Result:    result,
		CreatedAt: s.now().UTC(),
		Cached:    cached,
	}
	if err := s.store.SaveSimulation(ctx, *record); err != nil {
		s.metrics.StoreError("save_simulation")
		return nil, fmt.Errorf("save simulation: %w", err)
	}

	if s.cache != nil && !cached {
		if err := s.cache.Set(ctx, key, result); err != nil {
			s.metrics.StoreError("cache_set")
			s.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	elapsed := s.now().Sub(start)
	s.metrics.SimulationCompleted(string(result.PlanKind), string(result.DefaultPath), elapsed)
	s.log.Info("simulation completed",
		zap.String("simulation_id", record.ID),
		zap.String("table_id", string(record.TableID)),
		zap.String("plan_kind", string(result.PlanKind)),
		zap.String("default_path", string(result.DefaultPath)),
		zap.Bool("reduced_available", result.ReducedAvailable()),
		zap.Bool("cache_hit", cached),
		zap.Duration("elapsed", elapsed))

	return record, nil
}

func (s *Service) cached(ctx context.Context, key string) (*quota.SimulationResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	result, ok, err := s.cache.Get(ctx, key)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		s.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	case !ok:
		s.metrics.CacheLookup("miss")
		return nil, false
	default:
		s.metrics.CacheLookup("hit")
		return result, true
	}
}

// Get returns a stored simulation.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.store.GetSimulation(ctx, id)
}

// List returns the most recent simulations, newest first.
func (s *Service) List(ctx context.Context, limit int) ([]Record, error) {
	return s.store.ListSimulations(ctx, limit)
}

// Prune removes simulations created before olderThan.
func (s *Service) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	n, err := s.store.DeleteSimulationsBefore(ctx, olderThan)
	if err != nil {
		s.metrics.StoreError("prune")
		return 0, fmt.Errorf("prune simulations: %w", err)
	}
	s.metrics.Pruned(n)
	if n > 0 {
		s.log.Info("simulation history pruned", zap.Int64("removed", n), zap.Time("before", olderThan))
	}
	return n, nil
}
