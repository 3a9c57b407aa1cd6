/*
store.go - Persistence interfaces for entries and plans

KEY INTERFACES:
  Store:     Entry persistence (append, load, lookups) and plan reads
  TxStore:   Store + WithTx for serialized read-validate-append
  PlanStore: Client funding plans
  Backend:   Everything the Ledger needs

APPEND-ONLY CONTRACT:
  Store has no Update or Delete. Corrections are reversal entries.
  Plans are configuration, not history, and may be replaced.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go: SQLite
*/
package ledger

import (
	"context"

	"github.com/carelink/funding-engine/funding"
)

// =============================================================================
// STORE - Entry persistence (append-only)
// =============================================================================

type Store interface {
	// Append persists an entry. Fails with ErrDuplicateIdempotencyKey if the
	// key exists.
	Append(ctx context.Context, e Entry) error

	// AppendBatch persists entries atomically.
	AppendBatch(ctx context.Context, entries []Entry) error

	// Load returns the client's entries for one category, ordered by
	// EffectiveAt.
	Load(ctx context.Context, clientID ClientID, category funding.FundingCategory) ([]Entry, error)

	// LoadClient returns all of the client's entries, ordered by EffectiveAt.
	LoadClient(ctx context.Context, clientID ClientID) ([]Entry, error)

	// Get returns an entry by ID, or nil if absent.
	Get(ctx context.Context, id EntryID) (*Entry, error)

	// IsReversed reports whether a reversal references the entry.
	IsReversed(ctx context.Context, id EntryID) (bool, error)

	// Exists checks whether an idempotency key is taken.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)

	// GetPlan returns the client's plan, or nil if the client has none.
	// Inside WithTx it sees the plan as of the transaction.
	GetPlan(ctx context.Context, clientID ClientID) (*Plan, error)
}

// TxStore runs fn with exclusive access to the store. If fn returns an
// error nothing it appended is kept.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}

// PlanStore persists funding plans.
type PlanStore interface {
	SavePlan(ctx context.Context, p Plan) error
	GetPlan(ctx context.Context, clientID ClientID) (*Plan, error)

	ListPlans(ctx context.Context) ([]Plan, error)
}

// Backend is implemented by every concrete store.
type Backend interface {
	TxStore
	PlanStore
}
