/*
Package timesheet holds logged work and decides whether a day is done.

PURPOSE:
  TimeEntries are what an employee actually worked. The classifier compares
  their total against the day's scheduled target and produces a DayOutcome:
  complete, under, over, percentage. Nothing here is persisted; outcomes are
  recomputed from entries every time they are needed.

KEY CONCEPTS:
  Scheduled target: net hours from the schedule (resolver + hour calculator),
                    or DefaultDailyHours when the user has no schedule.
  Actual hours:     sum of entries, or the net hours of a proposed
                    start/end pair when nothing has been saved yet.
  Completion:       quarter-hour snapped actual within 0.01h of the snapped
                    target.

SEE ALSO:
  - classifier.go: the pure classification rules
  - evaluator.go:  schedule lookup + classification for one date
  - toil/tracker.go: consumes DayOutcome.IsComplete
*/
package timesheet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
)

type EntryID string

// TimeEntry is one block of logged work. Date is the calendar day it counts toward.
type TimeEntry struct {
	ID          EntryID
	UserID      generic.UserID
	Date        generic.TimePoint
	Hours       decimal.Decimal
	Description string
	Category    string

	IsOvertime     bool
	IsToilEligible bool

	CreatedAt time.Time
}

// Validate rejects negative hours.
func (e TimeEntry) Validate() error {
	if e.Hours.IsNegative() {
		return generic.ErrInvalidHours
	}
	return nil
}

// SumHours totals entry hours.
func SumHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Hours)
	}
	return total
}

// ToilEligibleHours totals entries flagged as eligible for TOIL.
func ToilEligibleHours(entries []TimeEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.IsToilEligible {
			total = total.Add(e.Hours)
		}
	}
	return total
}

// DayStatus carries the leave/TOIL flags the host records for a user-day.
type DayStatus struct {
	UserID      generic.UserID
	Date        generic.TimePoint
	LeaveActive bool
	ToilActive  bool
	UpdatedAt   time.Time
}

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository persists entries and day flags. Implemented by store/sqlite.
type Repository interface {
	SaveEntry(ctx context.Context, e TimeEntry) error

	// DeleteEntry returns generic.ErrEntryNotFound if the entry does not belong to userID.
	DeleteEntry(ctx context.Context, userID generic.UserID, id EntryID) (TimeEntry, error)

	EntriesForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) ([]TimeEntry, error)

	// DayStatus returns a zero-flag status when nothing has been recorded.
	DayStatus(ctx context.Context, userID generic.UserID, date generic.TimePoint) (DayStatus, error)
	SaveDayStatus(ctx context.Context, s DayStatus) error
}
