/*
scheduler.go - Periodic cloud sync

PURPOSE:
  Runs Syncer.Sync on a fixed interval so a long-running server picks up
  backups written by another device without a manual restore.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Syncs once immediately on start
  - Failures are logged; the next tick tries again

CONFIGURATION:
  - CheckInterval: How often to sync (default: 10 minutes)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewScheduler(syncer, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - syncer.go: Sync policy
  - api/handlers.go: Manual sync endpoint
*/
package cloud

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCheckInterval is the default sync period.
const DefaultCheckInterval = 10 * time.Minute

// Scheduler runs periodic syncs.
type Scheduler struct {
	Syncer        *Syncer
	CheckInterval time.Duration
	Enabled       bool

	log    *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastMu  sync.Mutex
	lastRun time.Time
}

// NewScheduler creates a scheduler.
func NewScheduler(syncer *Syncer, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Syncer:        syncer,
		CheckInterval: DefaultCheckInterval,
		Enabled:       true,
		log:           log,
	}
}

// Start begins the scheduler.
func (sc *Scheduler) Start() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Enabled || sc.CheckInterval <= 0 {
		sc.log.Info("sync scheduler disabled")
		return
	}
	if sc.ticker != nil {
		return
	}

	sc.ticker = time.NewTicker(sc.CheckInterval)
	sc.stop = make(chan struct{})
	sc.wg.Add(1)

	go sc.run(sc.ticker, sc.stop)

	sc.log.Info("sync scheduler started", zap.Duration("interval", sc.CheckInterval))
}

// Stop stops the scheduler and waits for a running sync to finish.
func (sc *Scheduler) Stop() {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.ticker == nil {
		return
	}
	sc.ticker.Stop()
	close(sc.stop)
	sc.wg.Wait()
	sc.ticker = nil
	sc.log.Info("sync scheduler stopped")
}

func (sc *Scheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer sc.wg.Done()

	sc.RunNow()

	for {
		select {
		case <-ticker.C:
			sc.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate sync.
func (sc *Scheduler) RunNow() {
	decision, err := sc.Syncer.Sync(context.Background())

	sc.lastMu.Lock()
	sc.lastRun = time.Now()
	sc.lastMu.Unlock()

	if err != nil {
		sc.log.Error("scheduled sync failed", zap.Error(err))
		return
	}
	sc.log.Debug("scheduled sync done", zap.String("decision", string(decision)))
}

// NextRunTime returns when the next scheduled sync will occur.
func (sc *Scheduler) NextRunTime() time.Time {
	sc.lastMu.Lock()
	defer sc.lastMu.Unlock()
	if sc.lastRun.IsZero() {
		return time.Now()
	}
	return sc.lastRun.Add(sc.CheckInterval)
}
