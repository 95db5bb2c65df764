/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the quota simulator HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load the config file
  2. Initialize logging
  3. Wire store, cache, catalog, service and router (internal/app)
  4. Start the retention scheduler and the HTTP server

COMMAND-LINE FLAGS:
  -config  JSON config file (missing file means defaults)
  -port    HTTP server port, overrides server.port
  -db      SQLite database path, overrides storage.sqlite_path
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the retention scheduler
  4. Close cache and database connections

EXAMPLES:
  # Run with file database
  ./server -db="./data/quota.db"

  # Run against PostgreSQL and Redis
  ./server -config=./deploy/quota.json

SEE ALSO:
  - internal/app: Wiring
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warp/quota-simulator/internal/app"
	"github.com/warp/quota-simulator/internal/config"
	"github.com/warp/quota-simulator/internal/logging"
	"go.uber.org/zap"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "JSON config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Storage.Driver = config.DriverSQLite
		cfg.Storage.SQLitePath = *dbPath
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logging.Logger)
	if err != nil {
		logging.Error("failed to initialize", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Serve(ctx); err != nil {
		logging.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
