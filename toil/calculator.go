/*
calculator.go - Reference TOIL accrual collaborator

PURPOSE:
  Implements AccrualComputer by re-evaluating the day from source data and
  recording the earned TOIL in the append-only ledger.

ALGORITHM:
  1. Load profile, schedule (user's own, else organization default) and entries
  2. Classify the day
  3. If actual hours reach the category threshold, the day earns the
     quarter-rounded over-hours that came from TOIL-eligible entries
  4. Compare with what the ledger already holds for that day and append the
     difference: an accrual the first time, an adjustment afterwards

IDEMPOTENCY:
  Each write for a day carries key toil:<user>:<date>:<n> where n is the
  number of transactions already recorded for the day. Two concurrent runs
  for the same state race for the same key and the loser is a no-op.

SEE ALSO:
  - tracker.go: invokes ComputeToilForDay
  - generic/ledger.go: append-only storage
*/
package toil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/toil-engine/generic"
	"github.com/warp/toil-engine/schedule"
	"github.com/warp/toil-engine/timesheet"
)

// ScheduleSource is the read side of schedule.Repository.
type ScheduleSource interface {
	GetSchedule(ctx context.Context, id schedule.ScheduleID) (*schedule.WorkSchedule, error)
	OrganizationDefault(ctx context.Context) (*schedule.WorkSchedule, error)
}

// EntrySource is the read side of timesheet.Repository.
type EntrySource interface {
	EntriesForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) ([]timesheet.TimeEntry, error)
}

type Calculator struct {
	Profiles   ProfileSource
	Schedules  ScheduleSource
	Entries    EntrySource
	Ledger     generic.Ledger
	Thresholds *ThresholdService
	Evaluator  *timesheet.Evaluator
	Log        zerolog.Logger
}

var _ AccrualComputer = (*Calculator)(nil)

// Accrual is the result of evaluating one day.
type Accrual struct {
	Outcome   timesheet.DayOutcome
	Threshold decimal.Decimal
	Desired   decimal.Decimal // TOIL hours the day should hold
	Existing  decimal.Decimal // TOIL hours already in the ledger
	Delta     decimal.Decimal
}

// ScheduleFor returns the schedule governing p, or nil when none exists.
func ScheduleFor(ctx context.Context, schedules ScheduleSource, p Profile) (*schedule.WorkSchedule, error) {
	if p.ScheduleID != "" {
		ws, err := schedules.GetSchedule(ctx, p.ScheduleID)
		if err == nil {
			return ws, nil
		}
		if !errors.Is(err, generic.ErrScheduleNotFound) {
			return nil, err
		}
	}
	return schedules.OrganizationDefault(ctx)
}

// Evaluate computes what the ledger should hold for the day without writing.
func (c *Calculator) Evaluate(ctx context.Context, userID generic.UserID, date generic.TimePoint) (Accrual, []generic.Transaction, error) {
	profile, err := c.Profiles.Profile(ctx, userID)
	if err != nil {
		return Accrual{}, nil, fmt.Errorf("load profile: %w", err)
	}
	ws, err := ScheduleFor(ctx, c.Schedules, profile)
	if err != nil {
		return Accrual{}, nil, fmt.Errorf("load schedule: %w", err)
	}
	entries, err := c.Entries.EntriesForDay(ctx, userID, date)
	if err != nil {
		return Accrual{}, nil, fmt.Errorf("load entries: %w", err)
	}

	out, err := c.Evaluator.EvaluateDay(ws, date, entries, nil)
	if err != nil {
		return Accrual{}, nil, err
	}

	a := Accrual{
		Outcome:   out,
		Threshold: c.Thresholds.MinimumFor(ctx, profile.Category),
		Desired:   decimal.Zero,
	}
	if out.ActualHours.GreaterThanOrEqual(a.Threshold) {
		eligible := decimal.Min(out.OverHours, timesheet.ToilEligibleHours(entries))
		a.Desired = generic.MaxZero(schedule.RoundToQuarterHour(eligible))
	}

	txs, err := c.Ledger.TransactionsInRange(ctx, userID, date, date)
	if err != nil {
		return Accrual{}, nil, fmt.Errorf("load ledger: %w", err)
	}
	var existing []generic.Transaction
	for _, tx := range txs {
		if tx.Type == generic.TxAccrual || tx.Type == generic.TxAdjustment {
			existing = append(existing, tx)
		}
	}
	a.Existing = generic.SumAmounts(existing).Value
	a.Delta = a.Desired.Sub(a.Existing)
	return a, existing, nil
}

// ComputeToilForDay brings the ledger in line with the day's current data.
func (c *Calculator) ComputeToilForDay(ctx context.Context, userID generic.UserID, date generic.TimePoint) error {
	a, existing, err := c.Evaluate(ctx, userID, date)
	if err != nil {
		return err
	}
	if a.Delta.IsZero() {
		c.Log.Debug().Str("user_id", string(userID)).Str("date", date.String()).Msg("TOIL unchanged")
		return nil
	}

	txType := generic.TxAccrual
	if len(existing) > 0 {
		txType = generic.TxAdjustment
	}
	tx := generic.Transaction{
		ID:             generic.TransactionID(uuid.NewString()),
		UserID:         userID,
		EffectiveAt:    date,
		Delta:          generic.Hours(a.Delta),
		Type:           txType,
		Reason:         fmt.Sprintf("worked %s h against %s h scheduled", a.Outcome.ActualHours, a.Outcome.ScheduledHours),
		IdempotencyKey: fmt.Sprintf("toil:%s:%s:%d", userID, date, len(existing)),
		Metadata: map[string]string{
			"desired":   a.Desired.String(),
			"threshold": a.Threshold.String(),
		},
		CreatedBy: "toil-calculator",
		CreatedAt: generic.DayOf(time.Now()),
	}

	if err := c.Ledger.Append(ctx, tx); err != nil {
		if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
			return nil
		}
		return fmt.Errorf("append TOIL transaction: %w", err)
	}

	c.Log.Info().Str("user_id", string(userID)).Str("date", date.String()).
		Str("type", string(txType)).Str("delta", a.Delta.String()).Msg("TOIL recorded")
	return nil
}

// Balance returns the user's TOIL hours as of asOf.
func (c *Calculator) Balance(ctx context.Context, userID generic.UserID, asOf generic.TimePoint) (decimal.Decimal, error) {
	bal, err := c.Ledger.BalanceAt(ctx, userID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	return bal.Value, nil
}
