package schedule_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func nineToFive() *schedule.DayConfig {
	return &schedule.DayConfig{
		Start:  "09:00",
		End:    "17:00",
		Breaks: schedule.BreakConfig{Lunch: true, Smoko: true},
	}
}

func weekdaysWeek(day func() *schedule.DayConfig) schedule.Week {
	w := schedule.Week{}
	for _, d := range []generic.Weekday{generic.Monday, generic.Tuesday, generic.Wednesday, generic.Thursday, generic.Friday} {
		w[d] = day()
	}
	return w
}

func standardFortnight() *schedule.WorkSchedule {
	return &schedule.WorkSchedule{
		ID:    "std",
		Name:  "Standard",
		Weeks: map[int]schedule.Week{1: weekdaysWeek(nineToFive), 2: weekdaysWeek(nineToFive)},
	}
}

// =============================================================================
// HOUR CALCULATOR
// =============================================================================

func TestCalculate_LunchAndSmoko(t *testing.T) {
	// GIVEN: 09:00-17:00 with lunch and smoko
	// WHEN: Calculating net hours
	// THEN: 8 - 0.75 = 7.25

	b, err := schedule.Calculate(*nineToFive())
	require.NoError(t, err)
	assert.True(t, dec("8").Equal(b.Raw))
	assert.True(t, dec("0.75").Equal(b.Breaks))
	assert.True(t, dec("7.25").Equal(b.Net), "got %s", b.Net)
}

func TestCalculate_BothBreaksDeductExactlyThreeQuarters(t *testing.T) {
	spans := [][2]string{{"09:00", "17:00"}, {"06:30", "15:10"}, {"10:00", "10:30"}, {"00:00", "23:59"}}
	for _, span := range spans {
		withBreaks, err := schedule.Calculate(schedule.DayConfig{Start: span[0], End: span[1], Breaks: schedule.BreakConfig{Lunch: true, Smoko: true}})
		require.NoError(t, err)
		without, err := schedule.Calculate(schedule.DayConfig{Start: span[0], End: span[1]})
		require.NoError(t, err)

		expected := generic.MaxZero(without.Net.Sub(dec("0.75")))
		assert.True(t, expected.Equal(withBreaks.Net), "%s-%s: want %s got %s", span[0], span[1], expected, withBreaks.Net)
	}
}

func TestCalculate_ShortShiftFloorsAtZero(t *testing.T) {
	b, err := schedule.Calculate(schedule.DayConfig{Start: "09:00", End: "09:30", Breaks: schedule.BreakConfig{Lunch: true, Smoko: true}})
	require.NoError(t, err)
	assert.True(t, b.Net.IsZero())
}

func TestCalculate_AbsentTimeIsZero(t *testing.T) {
	b, err := schedule.Calculate(schedule.DayConfig{Start: "09:00", Breaks: schedule.BreakConfig{Lunch: true}})
	require.NoError(t, err)
	assert.True(t, b.Net.IsZero())
	assert.True(t, b.Breaks.IsZero(), "no deductions without both times")
}

func TestCalculate_EndNotAfterStart(t *testing.T) {
	// GIVEN: A shift spanning midnight
	// THEN: It is rejected as a configuration error, never wrapped

	for _, cfg := range []schedule.DayConfig{
		{Start: "22:00", End: "06:00"},
		{Start: "09:00", End: "09:00"},
	} {
		_, err := schedule.Calculate(cfg)
		require.Error(t, err)
		assert.True(t, errors.Is(err, generic.ErrEndBeforeStart))
		assert.True(t, generic.IsConfigurationError(err))

		var tre *generic.TimeRangeError
		require.True(t, errors.As(err, &tre))
		assert.Equal(t, cfg.Start, tre.Start)
	}
}

func TestParseClock(t *testing.T) {
	m, err := schedule.ParseClock("07:45")
	require.NoError(t, err)
	assert.Equal(t, 465, m)

	for _, bad := range []string{"7", "24:00", "12:60", "ab:cd", "12:00:00"} {
		_, err := schedule.ParseClock(bad)
		assert.ErrorIs(t, err, generic.ErrInvalidClockTime, bad)
	}
}

// =============================================================================
// RESOLVER
// =============================================================================

func TestResolve_WeekParity(t *testing.T) {
	r := schedule.Resolver{}

	// 2024-01-01 is the anchor Monday (week 1)
	res, err := r.Resolve(date(2024, time.January, 1), standardFortnight())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Week)
	assert.Equal(t, generic.Monday, res.Weekday)
	assert.True(t, res.Working())

	res, err = r.Resolve(date(2024, time.January, 10), standardFortnight())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Week)
	assert.Equal(t, generic.Wednesday, res.Weekday)
}

func TestResolve_RDOOverridesDayConfig(t *testing.T) {
	// GIVEN: Friday of week 2 is configured AND listed as an RDO
	// WHEN: Resolving that Friday
	// THEN: No working day, zero scheduled hours

	ws := standardFortnight()
	ws.RDOs = map[int][]generic.Weekday{2: {generic.Friday}}
	r := schedule.Resolver{}

	friday := date(2024, time.January, 12)
	res, err := r.Resolve(friday, ws)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Week)
	assert.True(t, res.IsRDO)
	assert.Nil(t, res.Day)
	assert.False(t, res.Working())

	hours, has, err := r.ScheduledHours(friday, ws)
	require.NoError(t, err)
	assert.True(t, has)
	assert.True(t, hours.IsZero())

	// Week 1 Friday still works
	hours, _, err = r.ScheduledHours(date(2024, time.January, 5), ws)
	require.NoError(t, err)
	assert.True(t, dec("7.25").Equal(hours))
}

func TestResolve_UnconfiguredWeekday(t *testing.T) {
	res, err := schedule.NewResolver(generic.DefaultFortnight()).Resolve(date(2024, time.January, 6), standardFortnight())
	require.NoError(t, err)
	assert.Equal(t, generic.Saturday, res.Weekday)
	assert.False(t, res.Working())
	assert.False(t, res.IsRDO)
}

func TestResolve_InvalidWeekKey(t *testing.T) {
	ws := standardFortnight()
	ws.Weeks[3] = weekdaysWeek(nineToFive)

	_, err := schedule.Resolver{}.Resolve(date(2024, time.January, 1), ws)
	var wne *generic.WeekNumberError
	require.True(t, errors.As(err, &wne))
	assert.Equal(t, 3, wne.Week)
	assert.True(t, generic.IsConfigurationError(err))

	_, err = schedule.DayFor(standardFortnight(), 0, generic.Monday)
	assert.ErrorIs(t, err, generic.ErrInvalidWeek)
}

func TestScheduledHours_NilSchedule(t *testing.T) {
	hours, has, err := schedule.Resolver{}.ScheduledHours(date(2024, time.March, 4), nil)
	require.NoError(t, err)
	assert.False(t, has)
	assert.True(t, hours.IsZero())
}

// =============================================================================
// FORTNIGHT AGGREGATOR
// =============================================================================

func TestFortnightHours_StandardFortnight(t *testing.T) {
	// GIVEN: Both weeks Mon-Fri 09:00-17:00 with lunch and smoko, FTE 1.0
	// THEN: 7.25 x 5 x 2 = 72.5

	total, err := schedule.FortnightHours(standardFortnight(), dec("1"))
	require.NoError(t, err)
	assert.True(t, dec("72.5").Equal(total), "got %s", total)
}

func TestFortnight_SkipsRDOsAndScalesOnce(t *testing.T) {
	ws := standardFortnight()
	ws.RDOs = map[int][]generic.Weekday{2: {generic.Friday}}

	s, err := schedule.Fortnight(ws, dec("0.8"))
	require.NoError(t, err)
	assert.Equal(t, 9, s.WorkingDays)
	assert.Equal(t, 1, s.RDODays)
	assert.True(t, dec("36.25").Equal(s.WeekHours[1]))
	assert.True(t, dec("29").Equal(s.WeekHours[2]))
	assert.True(t, dec("65.25").Equal(s.Unscaled))
	// 65.25 x 0.8 = 52.2 -> 52
	assert.True(t, dec("52").Equal(s.Total), "got %s", s.Total)
}

func TestFortnightHours_AlwaysHalfHourMultiple(t *testing.T) {
	half := dec("0.5")
	for _, fte := range []string{"0.1", "0.33", "0.5", "0.6", "0.75", "0.9", "1"} {
		for _, end := range []string{"12:07", "15:10", "16:53", "17:00"} {
			ws := &schedule.WorkSchedule{Weeks: map[int]schedule.Week{
				1: weekdaysWeek(func() *schedule.DayConfig {
					return &schedule.DayConfig{Start: "08:14", End: end, Breaks: schedule.BreakConfig{Smoko: true}}
				}),
			}}
			total, err := schedule.FortnightHours(ws, dec(fte))
			require.NoError(t, err)
			assert.False(t, total.IsNegative())
			assert.True(t, total.Mod(half).IsZero(), "fte %s end %s: %s", fte, end, total)
		}
	}
}

func TestFortnightHours_EmptySchedule(t *testing.T) {
	total, err := schedule.FortnightHours(&schedule.WorkSchedule{}, dec("1"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	total, err = schedule.FortnightHours(nil, dec("0.5"))
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestFortnightHours_InvalidFTE(t *testing.T) {
	for _, fte := range []string{"0", "-0.5", "1.01"} {
		_, err := schedule.FortnightHours(standardFortnight(), dec(fte))
		assert.ErrorIs(t, err, generic.ErrInvalidFTE, fte)
	}
}

func TestFortnightHours_CorruptDayIsReported(t *testing.T) {
	ws := standardFortnight()
	ws.Weeks[2][generic.Tuesday] = &schedule.DayConfig{Start: "17:00", End: "09:00"}

	_, err := schedule.FortnightHours(ws, dec("1"))
	var tre *generic.TimeRangeError
	require.True(t, errors.As(err, &tre))
	assert.Equal(t, 2, tre.Week)
	assert.Equal(t, generic.Tuesday, tre.Weekday)

	assert.Error(t, ws.Validate())
}
