/*
Package toil decides when a worked day earns Time Off In Lieu and records it.

PURPOSE:
  A day that reaches its scheduled target may earn TOIL. The Tracker watches
  each user-day and fires the accrual computation exactly once when the day
  becomes eligible. The ThresholdService holds the minimum hours per
  employment category. The Calculator is the reference accrual collaborator:
  it writes the earned hours to the append-only TOIL ledger.

STATE MACHINE (per user-day):
  Idle       - no entries
  Pending    - entries, day not yet complete
  Eligible   - entries, day complete, no leave or TOIL taken
  Suppressed - leave or TOIL taken that day (beats completion)

SEE ALSO:
  - tracker.go:    keyed state store and accrual dispatch
  - thresholds.go: per-category minimums with KV persistence
  - calculator.go: ledger-backed accrual
  - timesheet/classifier.go: produces IsComplete
*/
package toil

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

// =============================================================================
// EMPLOYMENT CATEGORY
// =============================================================================

type EmploymentCategory string

const (
	FullTime EmploymentCategory = "full_time"
	PartTime EmploymentCategory = "part_time"
	Casual   EmploymentCategory = "casual"
)

func ParseCategory(s string) (EmploymentCategory, error) {
	switch c := EmploymentCategory(strings.ToLower(strings.TrimSpace(s))); c {
	case FullTime, PartTime, Casual:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", generic.ErrInvalidCategory, s)
}

// =============================================================================
// PROFILE - Host-supplied per-user configuration
// =============================================================================

type Profile struct {
	UserID   generic.UserID
	Category EmploymentCategory
	FTE      decimal.Decimal

	// ScheduleID is empty when the user follows the organization default.
	ScheduleID schedule.ScheduleID
}

func (p Profile) Validate() error {
	if _, err := ParseCategory(string(p.Category)); err != nil {
		return err
	}
	return schedule.ValidateFTE(p.FTE)
}

// ProfileSource supplies profiles. Returns generic.ErrProfileNotFound for unknown users.
type ProfileSource interface {
	Profile(ctx context.Context, userID generic.UserID) (Profile, error)
}

// ProfileRepository is a ProfileSource that can also store profiles.
type ProfileRepository interface {
	ProfileSource
	SaveProfile(ctx context.Context, p Profile) error
}
