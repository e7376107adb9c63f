package timesheet

import (
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

// =============================================================================
// CONSTANTS
// =============================================================================

var (
	// CompletionEpsilon absorbs floating drift (36 seconds) when comparing hours.
	CompletionEpsilon = decimal.NewFromFloat(0.01)

	// DefaultDailyHours is the target for a user without any schedule.
	DefaultDailyHours = decimal.NewFromFloat(7.6)

	hundred = decimal.NewFromInt(100)
)

// =============================================================================
// DAY OUTCOME
// =============================================================================

// DayOutcome is derived on demand and never stored.
type DayOutcome struct {
	ScheduledHours  decimal.Decimal
	ActualHours     decimal.Decimal
	BreakAdjustment decimal.Decimal
	RemainingHours  decimal.Decimal
	OverHours       decimal.Decimal
	Variance        decimal.Decimal
	PercentComplete decimal.Decimal

	IsComplete      bool
	IsOverScheduled bool
	IsUndertime     bool
	HasEntries      bool
}

// DayInput is everything Classify looks at.
type DayInput struct {
	ScheduledHours decimal.Decimal
	Entries        []TimeEntry

	// Proposed is an unsaved start/end pair, used only when Entries is empty.
	Proposed *schedule.DayConfig

	// BreakAdjustment is reported back unchanged.
	BreakAdjustment decimal.Decimal
}

// Classify compares actual against scheduled hours.
// Same input, same output: there is no hidden state.
func Classify(in DayInput) (DayOutcome, error) {
	for _, e := range in.Entries {
		if err := e.Validate(); err != nil {
			return DayOutcome{}, err
		}
	}
	if in.ScheduledHours.IsNegative() {
		return DayOutcome{}, generic.ErrInvalidHours
	}

	scheduled := in.ScheduledHours
	actual := decimal.Zero
	hasEntries := len(in.Entries) > 0
	switch {
	case hasEntries:
		actual = SumHours(in.Entries)
	case in.Proposed != nil:
		net, err := schedule.NetHours(*in.Proposed)
		if err != nil {
			return DayOutcome{}, err
		}
		actual = schedule.RoundToQuarterHour(net)
	}

	// Both sides snap to the quarter hour before comparing.
	variance := schedule.RoundToQuarterHour(actual).Sub(schedule.RoundToQuarterHour(scheduled))

	out := DayOutcome{
		ScheduledHours:  scheduled,
		ActualHours:     actual,
		BreakAdjustment: in.BreakAdjustment,
		RemainingHours:  generic.MaxZero(scheduled.Sub(actual)),
		OverHours:       generic.MaxZero(actual.Sub(scheduled)),
		Variance:        variance,
		PercentComplete: percent(actual, scheduled),
		IsComplete:      variance.Abs().LessThanOrEqual(CompletionEpsilon),
		IsUndertime:     variance.IsNegative(),
		IsOverScheduled: actual.GreaterThan(scheduled.Add(CompletionEpsilon)),
		HasEntries:      hasEntries,
	}
	return out, nil
}

// percent is actual/scheduled clamped to [0, 100]; zero target gives 0.
func percent(actual, scheduled decimal.Decimal) decimal.Decimal {
	if !scheduled.IsPositive() {
		return decimal.Zero
	}
	p := actual.Div(scheduled).Mul(hundred)
	if p.GreaterThan(hundred) {
		return hundred
	}
	return generic.MaxZero(p)
}
