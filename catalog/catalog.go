package catalog

import (
	"fmt"
	"sort"

	"github.com/warp/quota-simulator/quota"
)

// TableCatalog is an immutable set of tables keyed by id.
// It is safe for concurrent use since nothing mutates it after NewCatalog.
type TableCatalog struct {
	tables map[quota.TableID]Table
	ids    []quota.TableID
}

// NewCatalog validates and indexes the given tables.
func NewCatalog(tables ...Table) (*TableCatalog, error) {
	c := &TableCatalog{tables: make(map[quota.TableID]Table, len(tables))}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, exists := c.tables[t.Meta.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateTable, t.Meta.ID)
		}
		c.tables[t.Meta.ID] = t.Clone()
		c.ids = append(c.ids, t.Meta.ID)
	}
	sort.Slice(c.ids, func(i, j int) bool { return c.ids[i] < c.ids[j] })
	return c, nil
}

// Get returns a copy of the table with the given id.
func (c *TableCatalog) Get(id quota.TableID) (Table, error) {
	t, ok := c.tables[id]
	if !ok {
		return Table{}, fmt.Errorf("%w: %s", ErrTableNotFound, id)
	}
	return t.Clone(), nil
}

// List returns copies of every table sorted by id.
func (c *TableCatalog) List() []Table {
	out := make([]Table, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.tables[id].Clone())
	}
	return out
}

func (c *TableCatalog) Len() int { return len(c.ids) }
