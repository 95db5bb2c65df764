/*
store.go - Persistence ports of the simulation service

PURPOSE:
  Defines the interfaces between the simulation service and its storage.
  Tables saved through the store override the built-in catalog; simulation
  records form the user's history and are pruned by the retention scheduler.

KEY INTERFACES:
  TableStore:      Price tables uploaded at runtime
  SimulationStore: Simulation history (save, get, list, prune)
  Store:           Both, what the service is built with
  ResultCache:     Content-addressed cache of engine results

IMPLEMENTATIONS:
  - store/memory:   In-memory for testing/dev
  - store/sqlite:   Default persistence
  - store/postgres: PostgreSQL via pgx
  - cache:          Redis and in-memory result caches

NOT FOUND CONTRACT:
  GetTable returns an error wrapping catalog.ErrTableNotFound and
  GetSimulation one wrapping ErrSimulationNotFound, so callers can use
  errors.Is regardless of the backend.
*/
package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
)

var ErrSimulationNotFound = errors.New("simulation not found")

// Record is one persisted simulation run.
type Record struct {
	ID        string                  `json:"id"`
	TableID   quota.TableID           `json:"table_id"`
	TableName string                  `json:"table_name"`
	Request   Request                 `json:"request"`
	Result    *quota.SimulationResult `json:"result"`
	CreatedAt time.Time               `json:"created_at"`

	// Cached is true when the result came from the ResultCache. Not persisted.
	Cached bool `json:"-"`
}

// TableStore persists tables uploaded at runtime.
type TableStore interface {
	// SaveTable inserts or replaces the table with the same id.
	SaveTable(ctx context.Context, t catalog.Table) error
	GetTable(ctx context.Context, id quota.TableID) (catalog.Table, error)
	ListTables(ctx context.Context) ([]catalog.Table, error)
}

// SimulationStore persists simulation records.
type SimulationStore interface {
	SaveSimulation(ctx context.Context, r Record) error
	GetSimulation(ctx context.Context, id string) (Record, error)

	// ListSimulations returns at most limit records, newest first.
	// A limit <= 0 means no limit.
	ListSimulations(ctx context.Context, limit int) ([]Record, error)

	// DeleteSimulationsBefore removes records created before cutoff and
	// returns how many were removed.
	DeleteSimulationsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store is what the service needs from a backend.
type Store interface {
	TableStore
	SimulationStore
	Close() error
}

// ResultCache caches engine results by content key.
type ResultCache interface {
	// Get returns (nil, false, nil) on a miss.
	Get(ctx context.Context, key string) (*quota.SimulationResult, bool, error)
	Set(ctx context.Context, key string, result *quota.SimulationResult) error
}
