/*
scheduler.go - Automated simulation history retention

PURPOSE:
  Periodically removes simulation records older than the retention window
  so the history store does not grow without bound.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on start, then on every tick
  - A failed prune is logged and retried on the next tick

CONFIGURATION:
  - Retention: How long records are kept (0 disables the scheduler)
  - CheckInterval: How often to prune (default: 1 hour)

USAGE:
  scheduler := NewRetentionScheduler(service, 90*24*time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - simulation/service.go: Prune
  - internal/config: storage.retention_days, storage.prune_interval_minutes
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/quota-simulator/simulation"
	"go.uber.org/zap"
)

// RetentionScheduler prunes old simulation history.
type RetentionScheduler struct {
	Service       *simulation.Service
	Retention     time.Duration
	CheckInterval time.Duration

	log    *zap.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRetentionScheduler creates a new scheduler. A nil logger discards logs.
func NewRetentionScheduler(svc *simulation.Service, retention time.Duration, logger *zap.Logger) *RetentionScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionScheduler{
		Service:       svc,
		Retention:     retention,
		CheckInterval: time.Hour,
		log:           logger.Named("retention"),
		now:           time.Now,
	}
}

// Enabled reports whether the scheduler would run.
func (rs *RetentionScheduler) Enabled() bool {
	return rs.Retention > 0 && rs.CheckInterval > 0
}

// Start begins the scheduler. Calling Start on a running scheduler is a no-op.
func (rs *RetentionScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled() {
		rs.log.Info("disabled, not starting", zap.Duration("retention", rs.Retention))
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.log.Info("started",
		zap.Duration("retention", rs.Retention),
		zap.Duration("check_interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight prune.
func (rs *RetentionScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker == nil {
		return
	}
	rs.ticker.Stop()
	close(rs.stop)
	rs.wg.Wait()
	rs.ticker = nil
	rs.log.Info("stopped")
}

func (rs *RetentionScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.prune(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.prune(context.Background())
		case <-stop:
			return
		}
	}
}

// prune removes records older than the retention window.
func (rs *RetentionScheduler) prune(ctx context.Context) int64 {
	cutoff := rs.now().Add(-rs.Retention)

	n, err := rs.Service.Prune(ctx, cutoff)
	if err != nil {
		rs.log.Error("prune failed", zap.Time("cutoff", cutoff), zap.Error(err))
		return 0
	}
	rs.log.Debug("prune complete", zap.Time("cutoff", cutoff), zap.Int64("removed", n))
	return n
}
