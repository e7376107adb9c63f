package generic

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// TIME POINT - A calendar day (the engine evaluates whole days)
// =============================================================================

type TimePoint struct {
	Time time.Time
}

const DateLayout = "2006-01-02"

func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DayOf truncates t to its calendar day, keeping the wall-clock date of t's location.
func DayOf(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint {
	return DayOf(time.Now())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DayOf(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// Properties
func (tp TimePoint) Year() int             { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month     { return tp.Time.Month() }
func (tp TimePoint) Day() int              { return tp.Time.Day() }
func (tp TimePoint) Weekday() Weekday      { return WeekdayOf(tp.Time.Weekday()) }
func (tp TimePoint) IsZero() bool          { return tp.Time.IsZero() }
func (tp TimePoint) String() string        { return tp.Time.Format(DateLayout) }

// DaysBetween counts whole days from -> to (negative when to is earlier).
func DaysBetween(from, to TimePoint) int {
	return int(to.normalize().Sub(from.normalize()).Hours() / 24)
}

// =============================================================================
// WEEKDAY - Lower-case names as stored in schedules
// =============================================================================

type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// Weekdays lists every weekday, Monday first.
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

func WeekdayOf(wd time.Weekday) Weekday {
	switch wd {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// ParseWeekday accepts any casing of a full weekday name.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range Weekdays {
		if d == w {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}
