/*
app.go - Dependency wiring shared by cmd/server and cmd/cli

PURPOSE:
  Builds the running application from a config: store, result cache,
  table catalog, metrics, simulation service, HTTP router and the history
  retention scheduler. Both binaries go through New so a config file means
  the same thing everywhere.

STARTUP SEQUENCE:
  1. Open the store selected by storage.driver
  2. Open the result cache (Redis when redis_addr is set, else in-memory)
  3. Load the catalog (catalog.path, else the presets)
  4. Register metrics on a private registry
  5. Build the service, router and scheduler

SEE ALSO:
  - internal/config: Config sections
  - api/server.go: Router
*/
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/warp/quota-simulator/api"
	"github.com/warp/quota-simulator/cache"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/internal/config"
	"github.com/warp/quota-simulator/observability"
	"github.com/warp/quota-simulator/simulation"
	"github.com/warp/quota-simulator/store/memory"
	"github.com/warp/quota-simulator/store/postgres"
	"github.com/warp/quota-simulator/store/sqlite"
	"github.com/warp/quota-simulator/tables"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

// App is a fully wired simulator.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Service   *simulation.Service
	Registry  *prometheus.Registry
	Router    http.Handler
	Scheduler *api.RetentionScheduler

	closers []func() error
}

// New wires the application described by cfg.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	a := &App{Config: cfg, Log: log}

	store, err := OpenStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)

	cat, err := LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics("", a.Registry)

	opts := []simulation.Option{
		simulation.WithRecorder(metrics),
		simulation.WithLogger(log.Named("simulation")),
	}
	if rc := a.openCache(ctx, cfg.Cache); rc != nil {
		opts = append(opts, simulation.WithCache(rc))
	}
	a.Service = simulation.NewService(store, cat, opts...)

	a.Router = api.NewRouter(api.NewHandler(a.Service), api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        observability.HandlerFor(a.Registry),
	})

	a.Scheduler = api.NewRetentionScheduler(a.Service, cfg.Retention(), log)
	a.Scheduler.CheckInterval = cfg.PruneInterval()

	log.Info("application wired",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("cache", cfg.Cache.Enabled),
		zap.Int("catalog_tables", cat.Len()))
	return a, nil
}

// OpenStore opens the configured persistence backend.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (simulation.Store, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return memory.NewMemory(), nil
	case config.DriverSQLite, "":
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// LoadCatalog reads a JSON array of tables from path, or returns the
// presets when path is empty.
func LoadCatalog(path string) (*catalog.TableCatalog, error) {
	if path == "" {
		return tables.DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	cat, err := factory.NewTableFactory().ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return cat, nil
}

// openCache returns nil when caching is disabled. An unreachable Redis
// falls back to the in-memory cache.
func (a *App) openCache(ctx context.Context, cfg config.CacheConfig) simulation.ResultCache {
	if !cfg.Enabled {
		return nil
	}
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if cfg.RedisAddr == "" {
		return cache.NewMemoryCache(ttl, cache.DefaultMaxEntries)
	}

	rc := cache.NewRedisCache(cfg.RedisAddr, ttl)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		rc.Close()
		a.Log.Warn("redis unavailable, using in-memory cache",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return cache.NewMemoryCache(ttl, cache.DefaultMaxEntries)
	}
	a.closers = append(a.closers, rc.Close)
	return rc
}

// Serve runs the HTTP server and the retention scheduler until ctx is done,
// then shuts both down gracefully.
func (a *App) Serve(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	a.Scheduler.Start()
	defer a.Scheduler.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("api", fmt.Sprintf("http://localhost:%d/api", a.Config.Server.Port)))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Log.Info("server stopped")
	return nil
}

// Close releases the store and cache connections.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
