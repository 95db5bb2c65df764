package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

// Store implements simulation.Store using PostgreSQL.
type Store struct {
	pool    *Pool
	factory *factory.TableFactory
}

// Compile-time interface check.
var _ simulation.Store = (*Store)(nil)

// New connects to dsn, applies the schema and returns a Store owning the pool.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore creates a Store on an existing, migrated pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool, factory: factory.NewTableFactory()}
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// =============================================================================
// PRICE TABLES
// =============================================================================

// SaveTable upserts a table, bumping its version on replace.
func (s *Store) SaveTable(ctx context.Context, t catalog.Table) error {
	definition, err := json.Marshal(s.factory.ToJSON(t))
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.Meta.ID, err)
	}

	query := `
		INSERT INTO price_tables (id, name, category, plan_kind, definition_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			plan_kind = EXCLUDED.plan_kind,
			definition_json = EXCLUDED.definition_json,
			version = price_tables.version + 1,
			updated_at = NOW()
	`
	_, err = s.pool.Exec(ctx, query,
		string(t.Meta.ID),
		t.Meta.Name,
		string(t.Meta.Category),
		string(t.Meta.PlanKind),
		string(definition),
	)
	if err != nil {
		return fmt.Errorf("upsert table: %w", err)
	}
	return nil
}

// GetTable retrieves a table by ID.
func (s *Store) GetTable(ctx context.Context, id quota.TableID) (catalog.Table, error) {
	var definition []byte
	err := s.pool.QueryRow(ctx,
		`SELECT definition_json FROM price_tables WHERE id = $1`, string(id),
	).Scan(&definition)
	if err != nil {
		if isNotFoundError(err) {
			return catalog.Table{}, fmt.Errorf("%w: %s", catalog.ErrTableNotFound, id)
		}
		return catalog.Table{}, fmt.Errorf("get table: %w", err)
	}
	return s.factory.ParseTable(string(definition))
}

// ListTables returns all stored tables sorted by id.
func (s *Store) ListTables(ctx context.Context) ([]catalog.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT definition_json FROM price_tables ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []catalog.Table
	for rows.Next() {
		var definition []byte
		if err := rows.Scan(&definition); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t, err := s.factory.ParseTable(string(definition))
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
		INSERT INTO simulations (
			id, table_id, table_name, plan_kind, default_path, total_cost, request_json, result_json, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			table_id = EXCLUDED.table_id,
			table_name = EXCLUDED.table_name,
			plan_kind = EXCLUDED.plan_kind,
			default_path = EXCLUDED.default_path,
			total_cost = EXCLUDED.total_cost,
			request_json = EXCLUDED.request_json,
			result_json = EXCLUDED.result_json,
			created_at = EXCLUDED.created_at
	`
	_, err = s.pool.Exec(ctx, query,
		r.ID,
		string(r.TableID),
		r.TableName,
		string(r.Result.PlanKind),
		string(r.Result.DefaultPath),
		r.Result.TotalCost.String(),
		string(requestJSON),
		string(resultJSON),
		r.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert simulation: %w", err)
	}
	return nil
}

// GetSimulation retrieves a simulation record by ID.
func (s *Store) GetSimulation(ctx context.Context, id string) (simulation.Record, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations WHERE id = $1`
	r, err := scanSimulation(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNotFoundError(err) {
			return simulation.Record{}, fmt.Errorf("%w: %s", simulation.ErrSimulationNotFound, id)
		}
		return simulation.Record{}, fmt.Errorf("get simulation: %w", err)
	}
	return r, nil
}

// ListSimulations returns records newest first. limit <= 0 returns all.
func (s *Store) ListSimulations(ctx context.Context, limit int) ([]simulation.Record, error) {
	query := `SELECT ` + simulationColumns + ` FROM simulations ORDER BY created_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	var out []simulation.Record
	for rows.Next() {
		r, err := scanSimulation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan simulation: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteSimulationsBefore removes records older than cutoff.
func (s *Store) DeleteSimulationsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM simulations WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete simulations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// =============================================================================
// HELPERS
// =============================================================================

const simulationColumns = `id, table_id, table_name, request_json, result_json, created_at`

func scanSimulation(row pgx.Row) (simulation.Record, error) {
	var (
		r                       simulation.Record
		tableID                 string
		requestJSON, resultJSON []byte
	)
	if err := row.Scan(&r.ID, &tableID, &r.TableName, &requestJSON, &resultJSON, &r.CreatedAt); err != nil {
		return simulation.Record{}, err
	}
	r.TableID = quota.TableID(tableID)
	r.CreatedAt = r.CreatedAt.UTC()

	if err := json.Unmarshal(requestJSON, &r.Request); err != nil {
		return simulation.Record{}, fmt.Errorf("decode request of %s: %w", r.ID, err)
	}
	r.Result = &quota.SimulationResult{}
	if err := json.Unmarshal(resultJSON, r.Result); err != nil {
		return simulation.Record{}, fmt.Errorf("decode result of %s: %w", r.ID, err)
	}
	return r, nil
}
