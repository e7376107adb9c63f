package timesheet

import (
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
)

// =============================================================================
// EVALUATOR - Single-day path: resolve -> net hours -> classify
// =============================================================================

type Evaluator struct {
	Resolver schedule.Resolver

	// DailyFallback is the target when the user has no schedule.
	// Zero means DefaultDailyHours.
	DailyFallback decimal.Decimal
}

func NewEvaluator(fc generic.FortnightConfig) *Evaluator {
	return &Evaluator{Resolver: schedule.Resolver{Fortnight: fc}}
}

func (ev *Evaluator) fallback() decimal.Decimal {
	if ev.DailyFallback.IsPositive() {
		return ev.DailyFallback
	}
	return DefaultDailyHours
}

// EvaluateDay classifies one date. Configuration errors in ws propagate.
func (ev *Evaluator) EvaluateDay(ws *schedule.WorkSchedule, date generic.TimePoint, entries []TimeEntry, proposed *schedule.DayConfig) (DayOutcome, error) {
	in := DayInput{
		ScheduledHours:  ev.fallback(),
		Entries:         entries,
		Proposed:        proposed,
		BreakAdjustment: decimal.Zero,
	}

	if ws != nil {
		res, err := ev.Resolver.Resolve(date, ws)
		if err != nil {
			return DayOutcome{}, err
		}
		b, err := res.Hours()
		if err != nil {
			return DayOutcome{}, err
		}
		in.ScheduledHours = b.Net
		in.BreakAdjustment = b.Breaks
	}

	return Classify(in)
}
