package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/simulation"
	"github.com/warp/quota-simulator/store/storetest"
)

func TestMemoryStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) simulation.Store { return NewMemory() })
}

func TestMemory_ResaveKeepsSingleEntry(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, m.SaveSimulation(ctx, storetest.Record("x", base)))
	require.NoError(t, m.SaveSimulation(ctx, storetest.Record("x", base.Add(time.Hour))))

	list, err := m.ListSimulations(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].CreatedAt.Equal(base.Add(time.Hour)))
}
