/*
store.go - Persistence interfaces for the TOIL ledger and settings

PURPOSE:
  Defines the interface between engine logic and the database. The engine
  never persists computed DayOutcomes or trigger state; the only things
  written are TOIL ledger transactions (by the accrual collaborator) and
  settings such as TOIL thresholds.

KEY INTERFACES:
  Store:   Append-only TOIL ledger persistence (append, load, exists)
  KVStore: Key-value settings store (thresholds live under a fixed key)

APPEND-ONLY CONTRACT:
  - Append(): Single transaction write
  - AppendBatch(): Atomic multi-transaction write
  - NO Update() or Delete() methods exist
  A re-computed day is corrected by appending an adjustment, never by edits.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - store/redis/kv.go: Redis KVStore
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - ledger.go: Higher-level interface using Store
  - toil/thresholds.go: KVStore consumer
*/
package generic

import "context"

// =============================================================================
// STORE - Interface for TOIL transaction persistence (append-only)
// =============================================================================

// Store handles persistence of TOIL transactions.
// IMPORTANT: Store is APPEND-ONLY. No Update, No Delete.
type Store interface {
	// Append persists a transaction. Returns ErrDuplicateIdempotencyKey if the key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for a user, ordered by EffectiveAt.
	Load(ctx context.Context, userID UserID) ([]Transaction, error)

	// LoadRange returns transactions with EffectiveAt in [from, to].
	LoadRange(ctx context.Context, userID UserID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// =============================================================================
// KV STORE - Settings persistence
// =============================================================================

// KVStore is a minimal byte-valued key-value store.
type KVStore interface {
	// Get returns (value, true, nil) when present and (nil, false, nil) when absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set writes value atomically: it either fully applies or not at all.
	Set(ctx context.Context, key string, value []byte) error

	Delete(ctx context.Context, key string) error
}
