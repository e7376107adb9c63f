/*
Package generic provides the domain-agnostic primitives of the TOIL engine.

PURPOSE:
  This package holds the types every other package leans on: hour amounts,
  calendar days, fortnight periods, the error taxonomy, and the persistence
  interfaces for the append-only TOIL ledger and the key-value settings store.
  It knows nothing about schedules, entries, or trigger states.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A quantity with a unit (e.g., 7.25 hours)
  - Transaction: An immutable TOIL ledger entry recording accrual changes
  - UserID / TransactionID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Ledger transactions are never modified, only adjusted
  2. Precision: Uses decimal.Decimal so 7.6 stays 7.6
  3. Type Safety: Strong typing for IDs prevents mixing user/transaction IDs
  4. Auditability: Every transaction has reason, reference, and idempotency key

USAGE:
  amount := generic.NewAmount(1.5, generic.UnitHours)
  tx := generic.Transaction{
      UserID: "emp-123",
      Delta:  amount,
      Type:   generic.TxAccrual,
  }

SEE ALSO:
  - time.go: TimePoint and Weekday
  - period.go: Period and fortnight week parity
  - ledger.go: Ledger built on Store
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit (hours for this system)
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitHours   Unit = "hours"
	UnitMinutes Unit = "minutes"
)

func NewAmount(value float64, unit Unit) Amount {
	return Amount{Value: decimal.NewFromFloat(value), Unit: unit}
}

func Hours(value decimal.Decimal) Amount {
	return Amount{Value: value, Unit: UnitHours}
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }

// =============================================================================
// ROUNDING
// =============================================================================

var (
	quarter = decimal.NewFromFloat(0.25)
	half    = decimal.NewFromFloat(0.5)
)

// RoundToStep rounds d to the nearest multiple of step (half away from zero).
func RoundToStep(d, step decimal.Decimal) decimal.Decimal {
	if step.IsZero() {
		return d
	}
	return d.Div(step).Round(0).Mul(step)
}

// RoundToQuarter snaps to the nearest 0.25 h: round(x*4)/4.
func RoundToQuarter(d decimal.Decimal) decimal.Decimal { return RoundToStep(d, quarter) }

// RoundToHalf snaps to the nearest 0.5 h: round(x*2)/2.
func RoundToHalf(d decimal.Decimal) decimal.Decimal { return RoundToStep(d, half) }

// MaxZero floors d at zero.
func MaxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type TransactionID string

// =============================================================================
// TRANSACTION - Atomic change to a user's TOIL balance
// =============================================================================

type TransactionType string

const (
	TxAccrual     TransactionType = "accrual"     // First TOIL credit for a day
	TxAdjustment  TransactionType = "adjustment"  // Re-computation delta for a day already credited
	TxConsumption TransactionType = "consumption" // TOIL taken as time off
	TxReversal    TransactionType = "reversal"    // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	UserID         UserID
	EffectiveAt    TimePoint // the worked day the credit belongs to
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt TimePoint
}
