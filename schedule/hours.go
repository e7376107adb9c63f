package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
)

// Standard break lengths in hours. Fixed by convention, not configurable per call.
var (
	LunchBreakHours = decimal.NewFromFloat(0.5)
	SmokoBreakHours = decimal.NewFromFloat(0.25)
)

var sixty = decimal.NewFromInt(60)

// Breakdown carries the raw span, the deduction and the net result separately
// so callers can snap whichever value they compare.
type Breakdown struct {
	Raw    decimal.Decimal
	Breaks decimal.Decimal
	Net    decimal.Decimal
}

// ParseClock parses "HH:MM" (00:00-23:59) into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", generic.ErrInvalidClockTime, s)
	}
	h, errH := strconv.Atoi(parts[0])
	m, errM := strconv.Atoi(parts[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %q", generic.ErrInvalidClockTime, s)
	}
	return h*60 + m, nil
}

// RawHours returns end - start in decimal hours. end must be strictly after start.
func RawHours(start, end string) (decimal.Decimal, error) {
	s, err := ParseClock(start)
	if err != nil {
		return decimal.Zero, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return decimal.Zero, err
	}
	if e <= s {
		return decimal.Zero, &generic.TimeRangeError{Start: start, End: end}
	}
	return decimal.NewFromInt(int64(e - s)).Div(sixty), nil
}

// BreakDeduction is the total deducted for b.
func BreakDeduction(b BreakConfig) decimal.Decimal {
	total := decimal.Zero
	if b.Lunch {
		total = total.Add(LunchBreakHours)
	}
	if b.Smoko {
		total = total.Add(SmokoBreakHours)
	}
	return total
}

// Calculate converts a day into raw, break and net hours.
// A day missing either time yields a zero Breakdown with no deductions.
// Net is floored at zero; no rounding is applied.
func Calculate(day DayConfig) (Breakdown, error) {
	if !day.HasTimes() {
		return Breakdown{Raw: decimal.Zero, Breaks: decimal.Zero, Net: decimal.Zero}, nil
	}
	raw, err := RawHours(day.Start, day.End)
	if err != nil {
		return Breakdown{}, err
	}
	breaks := BreakDeduction(day.Breaks)
	return Breakdown{
		Raw:    raw,
		Breaks: breaks,
		Net:    generic.MaxZero(raw.Sub(breaks)),
	}, nil
}

// NetHours is Calculate(day).Net.
func NetHours(day DayConfig) (decimal.Decimal, error) {
	b, err := Calculate(day)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Net, nil
}

// RoundToQuarterHour snaps to 0.25 h, the unit for daily comparisons.
func RoundToQuarterHour(d decimal.Decimal) decimal.Decimal { return generic.RoundToQuarter(d) }

// RoundToHalfHour snaps to 0.5 h, the unit for fortnight totals.
func RoundToHalfHour(d decimal.Decimal) decimal.Decimal { return generic.RoundToHalf(d) }

// annotate attaches the schedule position to a bare TimeRangeError.
func annotate(err error, week int, day generic.Weekday) error {
	var tre *generic.TimeRangeError
	if errors.As(err, &tre) {
		return &generic.TimeRangeError{Weekday: day, Week: week, Start: tre.Start, End: tre.End}
	}
	return fmt.Errorf("week %d %s: %w", week, day, err)
}
