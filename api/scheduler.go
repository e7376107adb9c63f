/*
scheduler.go - Periodic cleanup of trigger state

PURPOSE:
  The tracker keeps one record per user-day it has observed. Days well in
  the past no longer receive entries, so their records and observation
  counters are pruned on a timer.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Removes records for days older than Retention
  - Records with an accrual computation in flight are kept for the next pass

CONFIGURATION:
  - CheckInterval: How often to prune (default: 1 hour)
  - Retention:     How many days back records are kept (default: 35)
  - Enabled:       Whether the scheduler is active (default: true)

USAGE:
  scheduler := NewPruneScheduler(handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - toil/tracker.go: PruneBefore
*/
package api

import (
	"sync"
	"time"

	"github.com/warp/toil-engine/generic"
)

// PruneScheduler drops stale tracker records.
type PruneScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Retention     int
	Enabled       bool

	// now is replaced in tests.
	now func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPruneScheduler creates a new scheduler.
func NewPruneScheduler(handler *Handler) *PruneScheduler {
	return &PruneScheduler{
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Retention:     35,
		Enabled:       true,
		now:           time.Now,
	}
}

// Start begins the scheduler.
func (ps *PruneScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Handler.Log.Info().Msg("prune scheduler disabled")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run()

	ps.Handler.Log.Info().Dur("interval", ps.CheckInterval).Int("retention_days", ps.Retention).
		Msg("prune scheduler started")
}

// Stop stops the scheduler and waits for the loop to exit.
func (ps *PruneScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.Handler.Log.Info().Msg("prune scheduler stopped")
	}
}

func (ps *PruneScheduler) run() {
	defer ps.wg.Done()

	for {
		select {
		case <-ps.ticker.C:
			ps.Prune()
		case <-ps.stop:
			return
		}
	}
}

// Prune removes records older than the retention window and returns how many
// tracker records were dropped.
func (ps *PruneScheduler) Prune() int {
	cutoff := generic.DayOf(ps.now()).AddDays(-ps.Retention)

	removed := ps.Handler.Tracker.PruneBefore(cutoff)
	ps.Handler.forgetVersions(cutoff)

	if removed > 0 {
		ps.Handler.Log.Info().Int("removed", removed).Str("before", cutoff.String()).Msg("pruned trigger state")
	}
	return removed
}
