/*
scheduler.go - Periodic dry-run previews

PURPOSE:
  Runs a dry reconciliation on a fixed interval so operators receive the
  pending-corrections report (through the handler's notifier) without
  anyone triggering it. The scheduler never commits.

DESIGN:
  - Background goroutine driven by a ticker
  - Runs once immediately on Start
  - Shares the handler's run lock, so it never overlaps a manual run
  - Each pass is recorded in run history by the runner

USAGE:
  scheduler := NewReconciliationScheduler(handler, 24*time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunReconciliation endpoint (manual runs)
*/
package api

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/warp/attendance-engine/attendance"
)

// ReconciliationScheduler triggers dry runs on a fixed interval.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	// lastMu guards lastRun. It is separate from mu because Stop holds mu
	// while waiting for an in-flight pass.
	lastMu  sync.Mutex
	lastRun time.Time
}

// NewReconciliationScheduler creates a scheduler. A non-positive interval
// leaves it disabled.
func NewReconciliationScheduler(handler *Handler, interval time.Duration) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: interval,
		Enabled:       interval > 0,
		stop:          make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Info().Msg("scheduler disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Info().Dur("interval", rs.CheckInterval).Msg("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight pass.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Info().Msg("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	rs.preview(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.preview(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// preview runs one dry reconciliation and returns the pending count.
func (rs *ReconciliationScheduler) preview(ctx context.Context) (int, error) {
	since := rs.Handler.defaultSince()
	logger := log.With().Str("component", "scheduler").Time("since", since).Logger()
	ctx = logger.WithContext(ctx)

	_, err := rs.Handler.Reconcile(ctx, attendance.RunOptions{Since: since})

	rs.lastMu.Lock()
	rs.lastRun = time.Now()
	rs.lastMu.Unlock()

	var notice *attendance.DryRunNotice
	if errors.As(err, &notice) {
		logger.Info().Str("run_id", string(notice.RunID)).Int("pending", notice.Pending).Msg("dry-run preview complete")
		return notice.Pending, nil
	}
	if err != nil {
		logger.Error().Err(err).Msg("dry-run preview failed")
		return 0, err
	}
	return 0, nil
}

// RunNow triggers an immediate dry run and returns the pending count.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (int, error) {
	return rs.preview(ctx)
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (rs *ReconciliationScheduler) GetNextRunTime() time.Time {
	rs.lastMu.Lock()
	defer rs.lastMu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.CheckInterval)
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
