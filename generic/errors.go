/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Configuration errors - corrupt schedule data (bad week, end before start).
     Surfaced synchronously, never defaulted.
  2. Input errors - malformed dates, weekdays, FTE, thresholds.
  3. Store errors - persistence failures and lookups.

  Absence (no schedule, no day config, zero entries) is NOT an error; the
  computing packages resolve it to zero outcomes.

USAGE:
  if errors.Is(err, generic.ErrEndBeforeStart) {
      // schedule data is corrupt
  }

SEE ALSO:
  - schedule/hours.go: TimeRangeError producers
  - schedule/resolver.go: WeekNumberError producers
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidWeek is returned for a fortnight week number other than 1 or 2.
	ErrInvalidWeek = errors.New("invalid fortnight week number")

	// ErrEndBeforeStart is returned when a day's end time is not after its start.
	// Schedules spanning midnight are rejected, not wrapped.
	ErrEndBeforeStart = errors.New("invalid time range: end not after start")

	// ErrInvalidClockTime is returned for a wall-clock time that is not HH:MM.
	ErrInvalidClockTime = errors.New("invalid clock time")

	// ErrInvalidWeekday is returned for an unknown weekday name.
	ErrInvalidWeekday = errors.New("invalid weekday")

	// ErrInvalidDate is returned for a date that is not YYYY-MM-DD.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidFTE is returned when an FTE factor is outside (0, 1].
	ErrInvalidFTE = errors.New("invalid FTE factor: must be in (0, 1]")

	// ErrInvalidHours is returned for negative worked hours.
	ErrInvalidHours = errors.New("invalid hours: must be non-negative")

	// ErrInvalidThresholds is returned when a threshold is negative or not finite.
	ErrInvalidThresholds = errors.New("invalid TOIL thresholds")

	// ErrInvalidCategory is returned for an unknown employment category.
	ErrInvalidCategory = errors.New("invalid employment category")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrScheduleNotFound is returned when a referenced schedule doesn't exist.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrEntryNotFound is returned when a referenced time entry doesn't exist.
	ErrEntryNotFound = errors.New("time entry not found")

	// ErrProfileNotFound is returned when a user has no profile.
	ErrProfileNotFound = errors.New("profile not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// WeekNumberError reports an out-of-range fortnight week.
type WeekNumberError struct {
	Week int
}

func (e *WeekNumberError) Error() string {
	return fmt.Sprintf("invalid fortnight week number %d (want 1 or 2)", e.Week)
}

func (e *WeekNumberError) Unwrap() error { return ErrInvalidWeek }

// TimeRangeError reports a day whose end is not after its start.
type TimeRangeError struct {
	Weekday Weekday // empty when the range was not tied to a schedule day
	Week    int
	Start   string
	End     string
}

func (e *TimeRangeError) Error() string {
	if e.Weekday == "" {
		return fmt.Sprintf("invalid time range %s-%s: end not after start", e.Start, e.End)
	}
	return fmt.Sprintf("invalid time range %s-%s on week %d %s: end not after start",
		e.Start, e.End, e.Week, e.Weekday)
}

func (e *TimeRangeError) Unwrap() error { return ErrEndBeforeStart }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError returns true if the error indicates corrupt schedule data.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidWeek) ||
		errors.Is(err, ErrEndBeforeStart) ||
		errors.Is(err, ErrInvalidClockTime)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidWeekday) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidFTE) ||
		errors.Is(err, ErrInvalidHours) ||
		errors.Is(err, ErrInvalidThresholds) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrDuplicateIdempotencyKey)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrProfileNotFound)
}
