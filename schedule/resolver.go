package schedule

import (
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
)

// =============================================================================
// RESOLVER - Calendar date -> configured day
// =============================================================================

// Resolution is what a schedule says about one calendar date.
type Resolution struct {
	Date    generic.TimePoint
	Weekday generic.Weekday
	Week    int

	// Day is nil when nothing is configured or the day is an RDO.
	Day   *DayConfig
	IsRDO bool
}

// Working reports whether the date has a configured, non-RDO day.
func (r Resolution) Working() bool {
	return r.Day != nil && !r.IsRDO
}

// Hours computes the resolved day's breakdown. Non-working days are zero.
func (r Resolution) Hours() (Breakdown, error) {
	if !r.Working() {
		return Calculate(DayConfig{})
	}
	b, err := Calculate(*r.Day)
	if err != nil {
		return Breakdown{}, annotate(err, r.Week, r.Weekday)
	}
	return b, nil
}

// Resolver maps dates onto a WorkSchedule. The zero value uses the default
// fortnight anchor.
type Resolver struct {
	Fortnight generic.FortnightConfig
}

func NewResolver(fc generic.FortnightConfig) *Resolver {
	return &Resolver{Fortnight: fc}
}

// Resolve finds the DayConfig governing date.
// A nil schedule resolves to a non-working day with no error.
func (r Resolver) Resolve(date generic.TimePoint, ws *WorkSchedule) (Resolution, error) {
	res := Resolution{
		Date:    date,
		Weekday: date.Weekday(),
		Week:    r.Fortnight.WeekNumber(date),
	}
	if ws == nil {
		return res, nil
	}
	if err := ws.ValidateWeeks(); err != nil {
		return Resolution{}, err
	}

	if ws.IsRDO(res.Week, res.Weekday) {
		res.IsRDO = true
		return res, nil
	}

	day, err := DayFor(ws, res.Week, res.Weekday)
	if err != nil {
		return Resolution{}, err
	}
	res.Day = day
	return res, nil
}

// DayFor looks up the configured day without applying RDOs.
func DayFor(ws *WorkSchedule, week int, day generic.Weekday) (*DayConfig, error) {
	if !validWeek(week) {
		return nil, &generic.WeekNumberError{Week: week}
	}
	if ws == nil {
		return nil, nil
	}
	return ws.Weeks[week][day], nil
}

// ScheduledHours returns the net scheduled hours for date.
// hasSchedule is false when ws is nil so callers can apply their own fallback.
func (r Resolver) ScheduledHours(date generic.TimePoint, ws *WorkSchedule) (hours decimal.Decimal, hasSchedule bool, err error) {
	if ws == nil {
		return decimal.Zero, false, nil
	}
	res, err := r.Resolve(date, ws)
	if err != nil {
		return decimal.Zero, true, err
	}
	b, err := res.Hours()
	if err != nil {
		return decimal.Zero, true, err
	}
	return b.Net, true, nil
}
