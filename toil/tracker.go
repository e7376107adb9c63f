package toil

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/metrics"
	"github.com/warp/toil-engine/timesheet"
)

// =============================================================================
// STATES AND OBSERVATIONS
// =============================================================================

type State string

const (
	Idle       State = "idle"
	Pending    State = "pending"
	Eligible   State = "eligible"
	Suppressed State = "suppressed"
)

// Observation is one snapshot of a user-day, taken after its data changed.
type Observation struct {
	HasEntries  bool
	LeaveActive bool
	ToilActive  bool
	IsComplete  bool
	EntryCount  int

	// Version orders observations for a key. Zero means unversioned and is
	// always applied.
	Version uint64
}

// Fingerprint is the change-detection key: same fingerprint, no new trigger.
type Fingerprint struct {
	HasEntries  bool
	LeaveActive bool
	ToilActive  bool
	IsComplete  bool
	EntryCount  int
}

func (o Observation) Fingerprint() Fingerprint {
	return Fingerprint{
		HasEntries:  o.HasEntries,
		LeaveActive: o.LeaveActive,
		ToilActive:  o.ToilActive,
		IsComplete:  o.IsComplete,
		EntryCount:  o.EntryCount,
	}
}

// NextState applies the transition table. Suppression wins over completion.
func NextState(o Observation) State {
	switch {
	case o.LeaveActive || o.ToilActive:
		return Suppressed
	case !o.HasEntries:
		return Idle
	case !o.IsComplete:
		return Pending
	default:
		return Eligible
	}
}

// ObservationFor builds an Observation from a classified day and its flags.
// A day over its target counts as complete for accrual purposes.
func ObservationFor(out timesheet.DayOutcome, status timesheet.DayStatus, entryCount int, version uint64) Observation {
	return Observation{
		HasEntries:  out.HasEntries,
		LeaveActive: status.LeaveActive,
		ToilActive:  status.ToilActive,
		IsComplete:  out.IsComplete || out.IsOverScheduled,
		EntryCount:  entryCount,
		Version:     version,
	}
}

// =============================================================================
// KEYED STATE STORE
// =============================================================================

// DayKey identifies one user-day.
type DayKey struct {
	UserID generic.UserID
	Date   generic.TimePoint
}

// NewDayKey normalizes date so equal days compare equal as map keys.
func NewDayKey(userID generic.UserID, date generic.TimePoint) DayKey {
	return DayKey{UserID: userID, Date: generic.NewTimePoint(date.Year(), date.Month(), date.Day())}
}

func (k DayKey) String() string { return string(k.UserID) + "@" + k.Date.String() }

// Decision reports what one Observe call did.
type Decision struct {
	Previous State
	State    State

	// Triggered is true when an accrual computation was started.
	Triggered bool

	// Coalesced is true when a trigger was absorbed by an in-flight computation.
	Coalesced bool

	// Stale is true when the observation was older than one already applied.
	Stale bool
}

// Snapshot is a read-only view of a user-day record.
type Snapshot struct {
	State     State
	Version   uint64
	InFlight  bool
	Coalesced int
	Triggers  int
	Failures  int
	Settled   bool // last computation succeeded against the current fingerprint
	Current   Fingerprint
}

type dayRecord struct {
	mu sync.Mutex

	state   State
	version uint64
	current Fingerprint
	removed bool

	lastTriggered *Fingerprint
	settled       *Fingerprint

	inFlight  bool
	coalesced int
	triggers  int
	failures  int
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker runs the trigger state machine for every user-day it is told about.
// Observations for one key are serialized; different keys never contend
// beyond the brief map lookup.
type Tracker struct {
	computer AccrualComputer
	log      zerolog.Logger

	mu      sync.Mutex
	records map[DayKey]*dayRecord

	wg sync.WaitGroup
}

func NewTracker(computer AccrualComputer, log zerolog.Logger) *Tracker {
	return &Tracker{
		computer: computer,
		log:      log,
		records:  make(map[DayKey]*dayRecord),
	}
}

// lockRecord returns the locked record for key, creating it if needed.
func (t *Tracker) lockRecord(key DayKey) *dayRecord {
	for {
		t.mu.Lock()
		rec, ok := t.records[key]
		if !ok {
			rec = &dayRecord{state: Idle}
			t.records[key] = rec
		}
		t.mu.Unlock()

		rec.mu.Lock()
		if !rec.removed {
			return rec
		}
		rec.mu.Unlock()
	}
}

// Observe applies obs to key and starts the accrual computation when the day
// enters Eligible or its eligible fingerprint changes. The computation runs in
// the background, detached from ctx cancellation.
func (t *Tracker) Observe(ctx context.Context, key DayKey, obs Observation) Decision {
	key = NewDayKey(key.UserID, key.Date)
	rec := t.lockRecord(key)
	defer rec.mu.Unlock()

	if obs.Version != 0 && obs.Version < rec.version {
		metrics.IncStale("observation")
		t.log.Debug().Str("day", key.String()).
			Uint64("version", obs.Version).Uint64("applied", rec.version).
			Msg("discarding out-of-order observation")
		return Decision{Previous: rec.state, State: rec.state, Stale: true}
	}

	prev := rec.state
	next := NextState(obs)
	fp := obs.Fingerprint()

	rec.state = next
	rec.current = fp
	if obs.Version > rec.version {
		rec.version = obs.Version
	}
	if prev != next {
		metrics.IncTriggerTransition(string(prev), string(next))
	}

	d := Decision{Previous: prev, State: next}
	if next != Eligible {
		return d
	}
	if prev == Eligible && rec.lastTriggered != nil && *rec.lastTriggered == fp {
		return d
	}

	rec.lastTriggered = &fp
	if rec.inFlight {
		rec.coalesced++
		metrics.IncCoalescedTrigger()
		d.Coalesced = true
		return d
	}

	rec.inFlight = true
	rec.triggers++
	d.Triggered = true

	t.wg.Add(1)
	go t.run(context.WithoutCancel(ctx), key, rec, fp)
	return d
}

func (t *Tracker) run(ctx context.Context, key DayKey, rec *dayRecord, fp Fingerprint) {
	defer t.wg.Done()

	err := t.computer.ComputeToilForDay(ctx, key.UserID, key.Date)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.inFlight = false

	if err != nil {
		rec.failures++
		metrics.IncAccrualInvocation("failure")
		t.log.Warn().Err(err).Str("user_id", string(key.UserID)).Str("date", key.Date.String()).
			Msg("TOIL accrual failed; day stays eligible")
		return
	}
	metrics.IncAccrualInvocation("success")

	if rec.current != fp {
		metrics.IncStale("result")
		t.log.Info().Str("user_id", string(key.UserID)).Str("date", key.Date.String()).
			Msg("TOIL accrual finished against a superseded day state; result discarded")
		return
	}
	rec.settled = &fp
}

// Snapshot returns the record for key, if any.
func (t *Tracker) Snapshot(key DayKey) (Snapshot, bool) {
	key = NewDayKey(key.UserID, key.Date)
	t.mu.Lock()
	rec, ok := t.records[key]
	t.mu.Unlock()
	if !ok {
		return Snapshot{State: Idle}, false
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	return Snapshot{
		State:     rec.state,
		Version:   rec.version,
		InFlight:  rec.inFlight,
		Coalesced: rec.coalesced,
		Triggers:  rec.triggers,
		Failures:  rec.failures,
		Settled:   rec.settled != nil && *rec.settled == rec.current,
		Current:   rec.current,
	}, true
}

// Forget drops the record for key unless a computation is in flight.
func (t *Tracker) Forget(key DayKey) bool {
	key = NewDayKey(key.UserID, key.Date)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(key)
}

// PruneBefore drops idle records for days before date and returns how many went.
func (t *Tracker) PruneBefore(date generic.TimePoint) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for key := range t.records {
		if key.Date.Before(date) && t.removeLocked(key) {
			n++
		}
	}
	return n
}

func (t *Tracker) removeLocked(key DayKey) bool {
	rec, ok := t.records[key]
	if !ok {
		return false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.inFlight {
		return false
	}
	rec.removed = true
	delete(t.records, key)
	return true
}

// Len returns the number of tracked user-days.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Wait blocks until every in-flight computation has finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Reset waits for in-flight computations and drops every record.
func (t *Tracker) Reset() {
	t.wg.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()
	for key, rec := range t.records {
		rec.mu.Lock()
		rec.removed = true
		rec.mu.Unlock()
		delete(t.records, key)
	}
}
