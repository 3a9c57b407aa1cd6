// Package store provides in-memory ledger.Store implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	entries     map[ledger.ClientID][]ledger.Entry
	byID        map[ledger.EntryID]ledger.Entry
	reversed    map[ledger.EntryID]bool
	idempotency map[string]bool
	plans       map[ledger.ClientID]ledger.Plan
}

func NewMemory() *Memory {
	return &Memory{
		entries:     make(map[ledger.ClientID][]ledger.Entry),
		byID:        make(map[ledger.EntryID]ledger.Entry),
		reversed:    make(map[ledger.EntryID]bool),
		idempotency: make(map[string]bool),
		plans:       make(map[ledger.ClientID]ledger.Plan),
	}
}

// Append adds a single entry. Append-only.
func (m *Memory) Append(_ context.Context, e ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(e)
}

// AppendBatch adds multiple entries atomically.
func (m *Memory) AppendBatch(_ context.Context, entries []ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Check all keys first, including duplicates within the batch
	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[e.IdempotencyKey] || seen[e.IdempotencyKey] {
			return ledger.ErrDuplicateIdempotencyKey
		}
		seen[e.IdempotencyKey] = true
	}

	for _, e := range entries {
		if err := m.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) appendLocked(e ledger.Entry) error {
	if e.IdempotencyKey != "" && m.idempotency[e.IdempotencyKey] {
		return ledger.ErrDuplicateIdempotencyKey
	}

	entries := m.entries[e.ClientID]

	// Binary search keeps the slice ordered by EffectiveAt, stable for ties
	i := sort.Search(len(entries), func(i int) bool {
		return entries[i].EffectiveAt.After(e.EffectiveAt)
	})
	entries = append(entries, ledger.Entry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = e
	m.entries[e.ClientID] = entries

	m.byID[e.ID] = e
	if e.Type == ledger.EntryReversal && e.ReferenceID != "" {
		m.reversed[ledger.EntryID(e.ReferenceID)] = true
	}
	if e.IdempotencyKey != "" {
		m.idempotency[e.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) Load(_ context.Context, clientID ledger.ClientID, category funding.FundingCategory) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(clientID, category), nil
}

func (m *Memory) loadLocked(clientID ledger.ClientID, category funding.FundingCategory) []ledger.Entry {
	var result []ledger.Entry
	for _, e := range m.entries[clientID] {
		if e.Category == category {
			result = append(result, e)
		}
	}
	return result
}

func (m *Memory) LoadClient(_ context.Context, clientID ledger.ClientID) ([]ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadClientLocked(clientID), nil
}

func (m *Memory) loadClientLocked(clientID ledger.ClientID) []ledger.Entry {
	result := make([]ledger.Entry, len(m.entries[clientID]))
	copy(result, m.entries[clientID])
	return result
}

func (m *Memory) Get(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id), nil
}

func (m *Memory) getLocked(id ledger.EntryID) *ledger.Entry {
	e, ok := m.byID[id]
	if !ok {
		return nil
	}
	return &e
}

func (m *Memory) IsReversed(_ context.Context, id ledger.EntryID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reversed[id], nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

// =============================================================================
// PLANS
// =============================================================================

func (m *Memory) SavePlan(_ context.Context, p ledger.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[p.ClientID] = p
	return nil
}

func (m *Memory) GetPlan(_ context.Context, clientID ledger.ClientID) (*ledger.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getPlanLocked(clientID), nil
}

func (m *Memory) getPlanLocked(clientID ledger.ClientID) *ledger.Plan {
	p, ok := m.plans[clientID]
	if !ok {
		return nil
	}
	return &p
}

func (m *Memory) ListPlans(_ context.Context) ([]ledger.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]ledger.Plan, 0, len(m.plans))
	for _, p := range m.plans {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientID < result[j].ClientID })
	return result, nil
}

// Reset drops all entries and plans.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[ledger.ClientID][]ledger.Entry)
	m.byID = make(map[ledger.EntryID]ledger.Entry)
	m.reversed = make(map[ledger.EntryID]bool)
	m.idempotency = make(map[string]bool)
	m.plans = make(map[ledger.ClientID]ledger.Plan)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support. It implements
// ledger.Backend.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn holding the write lock. Entries appended by fn are
// rolled back if it returns an error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	entriesCopy := make(map[ledger.ClientID][]ledger.Entry, len(tm.entries))
	for k, v := range tm.entries {
		entriesCopy[k] = append([]ledger.Entry{}, v...)
	}
	return memorySnapshot{
		entries:     entriesCopy,
		byID:        copyMap(tm.byID),
		reversed:    copyMap(tm.reversed),
		idempotency: copyMap(tm.idempotency),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.entries = s.entries
	tm.byID = s.byID
	tm.reversed = s.reversed
	tm.idempotency = s.idempotency
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memorySnapshot struct {
	entries     map[ledger.ClientID][]ledger.Entry
	byID        map[ledger.EntryID]ledger.Entry
	reversed    map[ledger.EntryID]bool
	idempotency map[string]bool
}

// txMemoryView runs under the parent's write lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, e ledger.Entry) error {
	return tv.parent.appendLocked(e)
}

func (tv *txMemoryView) AppendBatch(_ context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if err := tv.parent.appendLocked(e); err != nil {
			return err
		}
	}
	return nil
}

func (tv *txMemoryView) Load(_ context.Context, clientID ledger.ClientID, category funding.FundingCategory) ([]ledger.Entry, error) {
	return tv.parent.loadLocked(clientID, category), nil
}

func (tv *txMemoryView) LoadClient(_ context.Context, clientID ledger.ClientID) ([]ledger.Entry, error) {
	return tv.parent.loadClientLocked(clientID), nil
}

func (tv *txMemoryView) Get(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return tv.parent.getLocked(id), nil
}

func (tv *txMemoryView) IsReversed(_ context.Context, id ledger.EntryID) (bool, error) {
	return tv.parent.reversed[id], nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

func (tv *txMemoryView) GetPlan(_ context.Context, clientID ledger.ClientID) (*ledger.Plan, error) {
	return tv.parent.getPlanLocked(clientID), nil
}

var _ ledger.Backend = (*TxMemory)(nil)
