/*
Package schedule models recurring two-week work schedules and turns them
into hours.

PURPOSE:
  A WorkSchedule describes, for each weekday of fortnight weeks 1 and 2, when
  work starts and ends and which standard breaks apply. Rostered days off
  (RDOs) knock individual weekdays out of a given week.

COMPONENTS:
  resolver.go:  date -> (weekday, week, DayConfig or no work)
  hours.go:     DayConfig -> net hours after lunch/smoko deductions
  fortnight.go: WorkSchedule + FTE -> fortnight total (half-hour granularity)

INVARIANTS:
  - Only weeks 1 and 2 exist. Any other key is corrupt data and is reported.
  - A weekday in a week's RDO set is non-working, whatever its DayConfig says.
  - A DayConfig missing either time contributes zero hours.

Everything here is a pure function of its inputs and safe for concurrent use.
*/
package schedule

import (
	"context"
	"time"

	"github.com/warp/toil-engine/generic"
)

type ScheduleID string

// OwnerKind says whether a schedule belongs to one user or is an organization default.
type OwnerKind string

const (
	OwnerUser         OwnerKind = "user"
	OwnerOrganization OwnerKind = "organization"
)

type Owner struct {
	Kind OwnerKind
	ID   string
}

// BreakConfig flags which fixed-length breaks are deducted.
type BreakConfig struct {
	Lunch bool
	Smoko bool
}

// DayConfig is one working day. Times are "HH:MM"; empty means absent.
type DayConfig struct {
	Start  string
	End    string
	Breaks BreakConfig
}

// HasTimes reports whether both start and end are present.
func (d DayConfig) HasTimes() bool {
	return d.Start != "" && d.End != ""
}

// Week maps weekday -> config. A missing or nil entry is a non-working day.
type Week map[generic.Weekday]*DayConfig

// WorkSchedule is a recurring fortnight schedule.
type WorkSchedule struct {
	ID    ScheduleID
	Name  string
	Owner Owner

	Weeks map[int]Week
	RDOs  map[int][]generic.Weekday

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsRDO reports whether day is a rostered day off in week.
func (ws *WorkSchedule) IsRDO(week int, day generic.Weekday) bool {
	for _, d := range ws.RDOs[week] {
		if d == day {
			return true
		}
	}
	return false
}

// ValidateWeeks rejects week keys other than 1 and 2.
func (ws *WorkSchedule) ValidateWeeks() error {
	for week := range ws.Weeks {
		if !validWeek(week) {
			return &generic.WeekNumberError{Week: week}
		}
	}
	for week := range ws.RDOs {
		if !validWeek(week) {
			return &generic.WeekNumberError{Week: week}
		}
	}
	return nil
}

// Validate checks week numbers and every configured day's time range.
func (ws *WorkSchedule) Validate() error {
	if err := ws.ValidateWeeks(); err != nil {
		return err
	}
	for _, week := range []int{1, 2} {
		for _, day := range generic.Weekdays {
			cfg := ws.Weeks[week][day]
			if cfg == nil {
				continue
			}
			if _, err := Calculate(*cfg); err != nil {
				return annotate(err, week, day)
			}
		}
	}
	return nil
}

func validWeek(week int) bool { return week == 1 || week == 2 }

// =============================================================================
// REPOSITORY
// =============================================================================

// Repository loads and stores schedules. Implemented by store/sqlite.
type Repository interface {
	SaveSchedule(ctx context.Context, ws *WorkSchedule) error

	// GetSchedule returns generic.ErrScheduleNotFound when id is unknown.
	GetSchedule(ctx context.Context, id ScheduleID) (*WorkSchedule, error)

	ListSchedules(ctx context.Context) ([]*WorkSchedule, error)

	// OrganizationDefault returns the org-level default schedule, or nil when none exists.
	OrganizationDefault(ctx context.Context) (*WorkSchedule, error)
}
