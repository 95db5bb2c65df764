package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/internal/config"
	"github.com/warp/quota-simulator/tables"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	cfg.Cache.Enabled = true
	return cfg
}

func TestNew_MemoryWiring(t *testing.T) {
	// GIVEN: an in-memory configuration with caching
	cfg := memoryConfig()

	// WHEN: wiring the app
	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	// THEN: the router serves health, tables and metrics
	for _, path := range []string{"/healthz", "/api/tables", "/metrics"} {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
	assert.True(t, a.Scheduler.Enabled())
	assert.Equal(t, cfg.PruneInterval(), a.Scheduler.CheckInterval)
}

func TestNew_SQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "quota.db")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	_, err = os.Stat(cfg.Storage.SQLitePath)
	assert.NoError(t, err)
}

func TestNew_RetentionDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Storage.RetentionDays = 0

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	assert.False(t, a.Scheduler.Enabled())
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	cfg := memoryConfig()
	cfg.Cache.RedisAddr = "127.0.0.1:1"

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	rec := httptest.NewRecorder()
	a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.StorageConfig{Driver: "mongo"})
	assert.Error(t, err)
}

func TestLoadCatalog(t *testing.T) {
	t.Run("presets when no path", func(t *testing.T) {
		cat, err := LoadCatalog("")
		require.NoError(t, err)
		assert.Equal(t, len(tables.All()), cat.Len())
	})

	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		data := "[" + tables.MotoJSON() + "," + tables.ServicosJSON() + "]"
		require.NoError(t, os.WriteFile(path, []byte(data), 0644))

		cat, err := LoadCatalog(path)
		require.NoError(t, err)
		assert.Equal(t, 2, cat.Len())
		_, err = cat.Get(tables.MotoID)
		assert.NoError(t, err)
		_, err = cat.Get(tables.AutoStandardID)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadCatalog(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
	})

	t.Run("invalid table", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "catalog.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"id":"x","category":"boat"}]`), 0644))
		_, err := LoadCatalog(path)
		assert.Error(t, err)
	})
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	cfg := memoryConfig()
	cfg.Server.Port = 0

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, a.Serve(ctx))
}
