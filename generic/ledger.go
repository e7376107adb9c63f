/*
ledger.go - Append-only TOIL transaction log

PURPOSE:
  The Ledger is the immutable source of truth for TOIL credits. Every
  accrual, adjustment, consumption, and reversal is recorded here. A user's
  TOIL balance is always computed by replaying transactions.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  When a day's TOIL is re-computed (entries edited), the accrual collaborator
  appends the difference as an adjustment. The day's credit is the sum of
  its transactions.

SEE ALSO:
  - store.go: Low-level persistence interface
  - toil/calculator.go: The writer of accrual/adjustment transactions
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for TOIL balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for a user, chronologically.
	Transactions(ctx context.Context, userID UserID) ([]Transaction, error)

	// TransactionsInRange returns transactions in [from, to].
	TransactionsInRange(ctx context.Context, userID UserID, from, to TimePoint) ([]Transaction, error)

	// BalanceAt computes balance at a specific day.
	BalanceAt(ctx context.Context, userID UserID, at TimePoint) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, userID UserID) ([]Transaction, error) {
	return l.Store.Load(ctx, userID)
}

func (l *DefaultLedger) TransactionsInRange(ctx context.Context, userID UserID, from, to TimePoint) ([]Transaction, error) {
	return l.Store.LoadRange(ctx, userID, from, to)
}

func (l *DefaultLedger) BalanceAt(ctx context.Context, userID UserID, at TimePoint) (Amount, error) {
	txs, err := l.Store.Load(ctx, userID)
	if err != nil {
		return Amount{}, err
	}

	balance := NewAmount(0, UnitHours)
	for _, tx := range txs {
		if tx.EffectiveAt.After(at) {
			break
		}
		balance = balance.Add(tx.Delta)
	}
	return balance, nil
}

// SumAmounts totals the deltas of txs.
func SumAmounts(txs []Transaction) Amount {
	total := NewAmount(0, UnitHours)
	for _, tx := range txs {
		total = total.Add(tx.Delta)
	}
	return total
}
