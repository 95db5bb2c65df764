/*
Package sqlite provides a SQLite-backed implementation of simulation.Store.

PURPOSE:
  Default persistence of the simulator: price tables uploaded at runtime
  and the simulation history. The same schema runs on PostgreSQL in
  store/postgres with minor dialect differences.

KEY TABLES:
  price_tables: table definitions as factory JSON, versioned on upsert
  simulations:  request and result JSON of every run

INDEXES:
  - idx_simulations_created_at: history listing and retention pruning
  - idx_simulations_table: per-table history

TIMESTAMPS:
  Stored as fixed-width UTC text (microsecond precision) so string
  comparison orders them chronologically.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to
  one connection, since every new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./quota.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := simulation.NewService(store, catalog)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - simulation/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// Store implements simulation.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.TableFactory
}

var _ simulation.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, factory: factory.NewTableFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Price tables uploaded at runtime (override built-in presets)
	CREATE TABLE IF NOT EXISTS price_tables (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		plan_kind TEXT NOT NULL,
		definition_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Simulation history
	CREATE TABLE IF NOT EXISTS simulations (
		id TEXT PRIMARY KEY,
		table_id TEXT NOT NULL,
		table_name TEXT NOT NULL,
		plan_kind TEXT NOT NULL,
		default_path TEXT NOT NULL,
		total_cost TEXT NOT NULL,
		request_json TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_simulations_created_at
		ON simulations(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_simulations_table
		ON simulations(table_id, created_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PRICE TABLES
// =============================================================================

// SaveTable upserts a table, bumping its version on replace.
func (s *Store) SaveTable(ctx context.Context, t catalog.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	definition, err := json.Marshal(s.factory.ToJSON(t))
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.Meta.ID, err)
	}

	query := `
		INSERT INTO price_tables (id, name, category, plan_kind, definition_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			plan_kind = excluded.plan_kind,
			definition_json = excluded.definition_json,
			version = price_tables.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(timeLayout)
	_, err = s.db.ExecContext(ctx, query,
		string(t.Meta.ID), t.Meta.Name, string(t.Meta.Category), string(t.Meta.PlanKind),
		string(definition), now, now,
	)
	return err
}

// GetTable retrieves a table by ID.
func (s *Store) GetTable(ctx context.Context, id quota.TableID) (catalog.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var definition string
	err := s.db.QueryRowContext(ctx,
		"SELECT definition_json FROM price_tables WHERE id = ?", string(id),
	).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Table{}, fmt.Errorf("%w: %s", catalog.ErrTableNotFound, id)
	}
	if err != nil {
		return catalog.Table{}, err
	}
	return s.factory.ParseTable(definition)
}

// ListTables returns all stored tables sorted by id.
func (s *Store) ListTables(ctx context.Context) ([]catalog.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT definition_json FROM price_tables ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalog.Table
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		t, err := s.factory.ParseTable(definition)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

// =============================================================================
// SIMULATIONS
// =============================================================================

// SaveSimulation inserts or replaces a simulation record.
func (s *Store) SaveSimulation(ctx context.Context, r simulation.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Result == nil {
		return fmt.Errorf("simulation %s has no result", r.ID)
	}
	requestJSON, err := json.Marshal(r.Request)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resultJSON, err := json.Marshal(r.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO simulations
			(id, table_id, table_name, plan_kind, default_path, total_cost, request_json, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		r.ID, string(r.TableID), r.TableName,
		string(r.Result.PlanKind), string(r.Result.DefaultPath), r.Result.TotalCost.String(),
		string(requestJSON), string(resultJSON),
		r.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

// GetSimulation retrieves a simulation record by ID.
func (s *Store) GetSimulation(ctx context.Context, id string) (simulation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+simulationColumns+" FROM simulations WHERE id = ?", id)
	r, err := scanSimulation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return simulation.Record{}, fmt.Errorf("%w: %s", simulation.ErrSimulationNotFound, id)
	}
	return r, err
}

// ListSimulations returns records newest first. limit <= 0 returns all.
func (s *Store) ListSimulations(ctx context.Context, limit int) ([]simulation.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + simulationColumns + " FROM simulations ORDER BY created_at DESC, id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []simulation.Record
	for rows.Next() {
		r, err := scanSimulation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSimulationsBefore removes records older than cutoff.
func (s *Store) DeleteSimulationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM simulations WHERE created_at < ?", cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"simulations", "price_tables"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

const simulationColumns = "id, table_id, table_name, request_json, result_json, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSimulation(row scanner) (simulation.Record, error) {
	var (
		r                       simulation.Record
		tableID                 string
		requestJSON, resultJSON string
		createdAt               string
	)
	if err := row.Scan(&r.ID, &tableID, &r.TableName, &requestJSON, &resultJSON, &createdAt); err != nil {
		return simulation.Record{}, err
	}
	r.TableID = quota.TableID(tableID)

	if err := json.Unmarshal([]byte(requestJSON), &r.Request); err != nil {
		return simulation.Record{}, fmt.Errorf("decode request of %s: %w", r.ID, err)
	}
	r.Result = &quota.SimulationResult{}
	if err := json.Unmarshal([]byte(resultJSON), r.Result); err != nil {
		return simulation.Record{}, fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	t, err := time.Parse(timeLayout, strings.TrimSpace(createdAt))
	if err != nil {
		return simulation.Record{}, fmt.Errorf("parse created_at of %s: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}
