// Package store provides in-memory implementations of the generic persistence interfaces.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/toil-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory ledger (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[generic.UserID][]generic.Transaction
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[generic.UserID][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(tx)
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}

	for _, tx := range txs {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	txs := m.transactions[tx.UserID]

	// Binary search keeps the slice ordered by EffectiveAt, stable for equal days.
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})

	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[tx.UserID] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, userID generic.UserID) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]generic.Transaction, len(m.transactions[userID]))
	copy(result, m.transactions[userID])
	return result, nil
}

func (m *Memory) LoadRange(_ context.Context, userID generic.UserID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Transaction
	for _, tx := range m.transactions[userID] {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// MEMORY KV
// =============================================================================

type KV struct {
	mu     sync.RWMutex
	values map[string][]byte
}

func NewKV() *KV {
	return &KV{values: make(map[string][]byte)}
}

func (kv *KV) Get(_ context.Context, key string) ([]byte, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()
	v, ok := kv.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (kv *KV) Set(_ context.Context, key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.values[key] = append([]byte(nil), value...)
	return nil
}

func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.values, key)
	return nil
}

var (
	_ generic.Store   = (*Memory)(nil)
	_ generic.KVStore = (*KV)(nil)
)
