package generic

// =============================================================================
// PERIOD - A closed range of days
// =============================================================================

// Period is the closed range [Start, End].
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within the period [Start, End]
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Days returns all days in the period as a slice of TimePoints.
func (p Period) Days() []TimePoint {
	var days []TimePoint
	current := p.Start
	for current.BeforeOrEqual(p.End) {
		days = append(days, current)
		current = current.AddDays(1)
	}
	return days
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// NextPeriod returns the period of equal length following this one.
func (p Period) NextPeriod() Period {
	newStart := p.End.AddDays(1)
	return Period{Start: newStart, End: newStart.AddDays(DaysBetween(p.Start, p.End))}
}

// =============================================================================
// FORTNIGHT - Two-week cycle anchored to a fixed reference date
// =============================================================================

// DefaultFortnightAnchor is the first day of week 1 (a Monday).
var DefaultFortnightAnchor = NewTimePoint(2024, 1, 1)

// FortnightConfig pins week parity to Anchor so that a date always lands in
// the same week regardless of when it is evaluated.
type FortnightConfig struct {
	Anchor TimePoint
}

func DefaultFortnight() FortnightConfig {
	return FortnightConfig{Anchor: DefaultFortnightAnchor}
}

func (fc FortnightConfig) anchor() TimePoint {
	if fc.Anchor.IsZero() {
		return DefaultFortnightAnchor
	}
	return fc.Anchor
}

// WeekNumber returns 1 or 2. Dates before the anchor follow the same parity.
func (fc FortnightConfig) WeekNumber(date TimePoint) int {
	weeks := floorDiv(DaysBetween(fc.anchor(), date), 7)
	return floorMod(weeks, 2) + 1
}

// PeriodFor returns the 14-day fortnight containing date.
func (fc FortnightConfig) PeriodFor(date TimePoint) Period {
	offset := floorMod(DaysBetween(fc.anchor(), date), 14)
	start := date.AddDays(-offset)
	return Period{Start: start, End: start.AddDays(13)}
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}
