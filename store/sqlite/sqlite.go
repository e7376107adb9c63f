/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists everything the host application feeds the engine: work schedules,
  time entries, per-user profiles and leave/TOIL day flags. Also holds the
  append-only TOIL ledger and a small settings table used as a KV store.
  Computed DayOutcomes and trigger state are never written here.

INTERFACES IMPLEMENTED:
  generic.Store:           TOIL transaction persistence
  generic.KVStore:         Settings (TOIL thresholds)
  schedule.Repository:     Work schedules
  timesheet.Repository:    Time entries and day status
  toil.ProfileRepository:  User profiles

APPEND-ONLY ENFORCEMENT:
  - No UPDATE statements on toil_transactions
  - No DELETE statements on toil_transactions
  - A re-computed day is corrected by an adjustment row

KEY TABLES:
  toil_transactions: Immutable TOIL ledger
  schedules:         Schedule definitions as factory JSON
  time_entries:      Logged work
  day_status:        Leave/TOIL flags per user-day
  profiles:          Category, FTE and schedule per user
  settings:          Key/value pairs

DATES:
  Calendar days are stored as YYYY-MM-DD so range queries compare as text.
  Audit timestamps are RFC3339 UTC.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned to a
  single connection because every new connection would open an empty database.

USAGE:
  store, err := sqlite.New("./data/toil.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := generic.NewLedger(store)

SEE ALSO:
  - generic/store.go: Interface definitions
  - records.go: schedule, entry, status and profile tables
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/toil-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- TOIL ledger (append-only)
	CREATE TABLE IF NOT EXISTS toil_transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance and per-day lookups (hot path)
	CREATE INDEX IF NOT EXISTS idx_toil_transactions_user_date
		ON toil_transactions(user_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_toil_transactions_idempotency
		ON toil_transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Work schedules
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_kind TEXT NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_owner
		ON schedules(owner_kind, owner_id);

	-- Time entries
	CREATE TABLE IF NOT EXISTS time_entries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hours TEXT NOT NULL,
		description TEXT,
		category TEXT,
		is_overtime BOOLEAN DEFAULT FALSE,
		is_toil_eligible BOOLEAN DEFAULT FALSE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_time_entries_user_date
		ON time_entries(user_id, date);

	-- Leave / TOIL flags per user-day
	CREATE TABLE IF NOT EXISTS day_status (
		user_id TEXT NOT NULL,
		date TEXT NOT NULL,
		leave_active BOOLEAN DEFAULT FALSE,
		toil_active BOOLEAN DEFAULT FALSE,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, date)
	);

	-- Profiles
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		fte TEXT NOT NULL,
		schedule_id TEXT,
		updated_at TEXT NOT NULL
	);

	-- Settings
	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

// Append adds a single transaction. Append-only.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendTx(ctx, s.db, tx)
}

func (s *Store) appendTx(ctx context.Context, db interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}, tx generic.Transaction) error {
	metadataJSON, _ := json.Marshal(tx.Metadata)

	query := `
		INSERT INTO toil_transactions
		(id, user_id, effective_at, delta_value, delta_unit, tx_type,
		 reference_id, reason, idempotency_key, metadata_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.EffectiveAt.String(),
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		time.Now().UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := s.appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

// Load returns all transactions for a user.
func (s *Store) Load(ctx context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, effective_at, delta_value, delta_unit, tx_type,
		       reference_id, reason, idempotency_key, metadata_json, created_by, created_at
		FROM toil_transactions
		WHERE user_id = ?
		ORDER BY effective_at ASC, rowid ASC
	`

	return s.queryTransactions(ctx, query, userID)
}

// LoadRange returns transactions with effective day in [from, to].
func (s *Store) LoadRange(ctx context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, user_id, effective_at, delta_value, delta_unit, tx_type,
		       reference_id, reason, idempotency_key, metadata_json, created_by, created_at
		FROM toil_transactions
		WHERE user_id = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC
	`

	return s.queryTransactions(ctx, query, userID, from.String(), to.String())
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM toil_transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)

	return count > 0, err
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []generic.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		effectiveAt    string
		deltaValue     string
		deltaUnit      string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.UserID, &effectiveAt, &deltaValue, &deltaUnit, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.EffectiveAt, _ = generic.ParseDate(effectiveAt)
	tx.Delta = parseAmount(deltaValue, deltaUnit)
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		tx.CreatedAt = generic.DayOf(t)
	}

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata)
	}

	return tx, nil
}

// =============================================================================
// SETTINGS (generic.KVStore interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value []byte
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts key in a single statement, so it applies fully or not at all.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"toil_transactions", "time_entries", "day_status", "profiles", "schedules", "settings"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseAmount(value, unit string) generic.Amount {
	return generic.Amount{
		Value: generic.MustParseDecimal(value),
		Unit:  generic.Unit(unit),
	}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
