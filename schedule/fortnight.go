package schedule

import (
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
)

// =============================================================================
// FORTNIGHT AGGREGATOR
// =============================================================================

// FortnightSummary breaks a fortnight total down for display.
type FortnightSummary struct {
	WeekHours   map[int]decimal.Decimal // unscaled net hours per week
	WorkingDays int
	RDODays     int
	Unscaled    decimal.Decimal
	FTE         decimal.Decimal
	Total       decimal.Decimal // Unscaled x FTE, rounded to 0.5
}

// ValidateFTE rejects factors outside (0, 1].
func ValidateFTE(fte decimal.Decimal) error {
	if !fte.IsPositive() || fte.GreaterThan(decimal.NewFromInt(1)) {
		return generic.ErrInvalidFTE
	}
	return nil
}

// FortnightHours sums both weeks, scales by FTE once and rounds to the
// nearest half hour.
func FortnightHours(ws *WorkSchedule, fte decimal.Decimal) (decimal.Decimal, error) {
	s, err := Fortnight(ws, fte)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Total, nil
}

// Fortnight computes the full summary. RDO days and days without both times
// are skipped. A nil or empty schedule totals zero.
func Fortnight(ws *WorkSchedule, fte decimal.Decimal) (FortnightSummary, error) {
	if err := ValidateFTE(fte); err != nil {
		return FortnightSummary{}, err
	}
	summary := FortnightSummary{
		WeekHours: map[int]decimal.Decimal{1: decimal.Zero, 2: decimal.Zero},
		Unscaled:  decimal.Zero,
		FTE:       fte,
		Total:     decimal.Zero,
	}
	if ws == nil {
		return summary, nil
	}
	if err := ws.ValidateWeeks(); err != nil {
		return FortnightSummary{}, err
	}

	for _, week := range []int{1, 2} {
		for _, day := range generic.Weekdays {
			if ws.IsRDO(week, day) {
				summary.RDODays++
				continue
			}
			cfg := ws.Weeks[week][day]
			if cfg == nil || !cfg.HasTimes() {
				continue
			}
			net, err := NetHours(*cfg)
			if err != nil {
				return FortnightSummary{}, annotate(err, week, day)
			}
			summary.WeekHours[week] = summary.WeekHours[week].Add(net)
			summary.WorkingDays++
		}
	}

	summary.Unscaled = summary.WeekHours[1].Add(summary.WeekHours[2])
	summary.Total = generic.MaxZero(RoundToHalfHour(summary.Unscaled.Mul(fte)))
	return summary, nil
}
