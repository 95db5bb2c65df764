// Package memory provides an in-memory simulation.Store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	tables      map[quota.TableID]catalog.Table
	simulations map[string]simulation.Record
	order       []string // ids sorted by CreatedAt
}

var _ simulation.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		tables:      make(map[quota.TableID]catalog.Table),
		simulations: make(map[string]simulation.Record),
	}
}

func (m *Memory) SaveTable(_ context.Context, t catalog.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[t.Meta.ID] = t.Clone()
	return nil
}

func (m *Memory) GetTable(_ context.Context, id quota.TableID) (catalog.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	if !ok {
		return catalog.Table{}, fmt.Errorf("%w: %s", catalog.ErrTableNotFound, id)
	}
	return t.Clone(), nil
}

func (m *Memory) ListTables(_ context.Context) ([]catalog.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]catalog.Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Meta.ID < out[j].Meta.ID })
	return out, nil
}

// SaveSimulation stores a record. Saving an existing id replaces it.
func (m *Memory) SaveSimulation(_ context.Context, r simulation.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.simulations[r.ID]; exists {
		m.removeLocked(r.ID)
	}
	r.Cached = false
	m.simulations[r.ID] = r

	// Binary search for insertion point keeps order sorted by CreatedAt
	i := sort.Search(len(m.order), func(i int) bool {
		return m.simulations[m.order[i]].CreatedAt.After(r.CreatedAt)
	})
	m.order = append(m.order, "")
	copy(m.order[i+1:], m.order[i:])
	m.order[i] = r.ID
	return nil
}

func (m *Memory) GetSimulation(_ context.Context, id string) (simulation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.simulations[id]
	if !ok {
		return simulation.Record{}, fmt.Errorf("%w: %s", simulation.ErrSimulationNotFound, id)
	}
	return r, nil
}

func (m *Memory) ListSimulations(_ context.Context, limit int) ([]simulation.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]simulation.Record, 0, n)
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.simulations[m.order[i]])
	}
	return out, nil
}

func (m *Memory) DeleteSimulationsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// order is sorted, so everything before the first kept record goes
	i := sort.Search(len(m.order), func(i int) bool {
		return !m.simulations[m.order[i]].CreatedAt.Before(cutoff)
	})
	for _, id := range m.order[:i] {
		delete(m.simulations, id)
	}
	m.order = append([]string(nil), m.order[i:]...)
	return int64(i), nil
}

func (m *Memory) removeLocked(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	delete(m.simulations, id)
}

func (m *Memory) Close() error { return nil }
