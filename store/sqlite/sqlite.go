/*
Package sqlite provides a SQLite-backed implementation of the ledger stores.

PURPOSE:
  Implements ledger.Backend (Store, TxStore, PlanStore) on SQLite. The same
  schema ports to PostgreSQL with minor dialect changes.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on the entries table
  - Corrections via reversal entries only
  - idempotency_key is UNIQUE, so retries cannot double-charge a shift

KEY TABLES:
  entries: Immutable ledger of deductions, reversals and adjustments
  plans:   Funding allocation per client (replaced on save)

MONEY:
  Decimals are stored as TEXT and parsed back with shopspring/decimal.
  REAL columns are never used for money.

TIMESTAMPS:
  Stored in UTC with a fixed-width layout so that ORDER BY on the text
  column is chronological.

CONCURRENCY:
  sync.RWMutex around the connection pool. WithTx holds the write lock for
  the whole read-validate-append sequence.

USAGE:
  store, err := sqlite.New("./data/funding.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  l := ledger.New(store, logger)

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for tests
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

	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

const (
	timeLayout = "2006-01-02T15:04:05.000000000Z"
	dateLayout = "2006-01-02"
)

// Store implements ledger.Backend using SQLite.
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
		// Each connection to :memory: is a separate database
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

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Ledger entries (append-only)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL,
		category TEXT NOT NULL,
		entry_type TEXT NOT NULL,
		delta TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		shift_type TEXT,
		ratio TEXT,
		hours TEXT,
		rate TEXT,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- Balance replay (hot path)
	CREATE INDEX IF NOT EXISTS idx_entries_client_date
		ON entries(client_id, effective_at);
	CREATE INDEX IF NOT EXISTS idx_entries_client_category
		ON entries(client_id, category);

	-- Reversal lookups
	CREATE INDEX IF NOT EXISTS idx_entries_reference
		ON entries(reference_id) WHERE reference_id IS NOT NULL;

	-- Funding plans
	CREATE TABLE IF NOT EXISTS plans (
		client_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		period_start TEXT,
		period_end TEXT,
		categories_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ENTRY STORE (ledger.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Append adds an entry to the ledger.
func (s *Store) Append(ctx context.Context, e ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendEntry(ctx, s.db, e)
}

func appendEntry(ctx context.Context, db execer, e ledger.Entry) error {
	query := `
		INSERT INTO entries
		(id, client_id, category, entry_type, delta, effective_at, shift_type, ratio,
		 hours, rate, reference_id, reason, idempotency_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		string(e.ID),
		string(e.ClientID),
		string(e.Category),
		string(e.Type),
		e.Delta.String(),
		formatTime(e.EffectiveAt),
		nullString(string(e.ShiftType)),
		nullString(string(e.Ratio)),
		e.Hours.String(),
		e.Rate.String(),
		nullString(e.ReferenceID),
		nullString(e.Reason),
		nullString(e.IdempotencyKey),
		nullString(e.CreatedBy),
		formatTime(createdAt),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ledger.ErrDuplicateIdempotencyKey, e.IdempotencyKey)
		}
		return fmt.Errorf("failed to append entry: %w", err)
	}

	return nil
}

// AppendBatch adds multiple entries atomically.
func (s *Store) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate idempotency keys within the batch first
	keys := make(map[string]bool)
	for _, e := range entries {
		if e.IdempotencyKey != "" {
			if keys[e.IdempotencyKey] {
				return ledger.ErrDuplicateIdempotencyKey
			}
			keys[e.IdempotencyKey] = true
		}
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, e := range entries {
		if err := appendEntry(ctx, sqlTx, e); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

const selectEntries = `
	SELECT id, client_id, category, entry_type, delta, effective_at, shift_type, ratio,
	       hours, rate, reference_id, reason, idempotency_key, created_by, created_at
	FROM entries
`

// Load returns a client's entries for one category.
func (s *Store) Load(ctx context.Context, clientID ledger.ClientID, category funding.FundingCategory) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadCategory(ctx, s.db, clientID, category)
}

func loadCategory(ctx context.Context, db querier, clientID ledger.ClientID, category funding.FundingCategory) ([]ledger.Entry, error) {
	return queryEntries(ctx, db,
		selectEntries+`WHERE client_id = ? AND category = ? ORDER BY effective_at ASC, created_at ASC`,
		string(clientID), string(category))
}

// LoadClient returns all of a client's entries.
func (s *Store) LoadClient(ctx context.Context, clientID ledger.ClientID) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadClient(ctx, s.db, clientID)
}

func loadClient(ctx context.Context, db querier, clientID ledger.ClientID) ([]ledger.Entry, error) {
	return queryEntries(ctx, db,
		selectEntries+`WHERE client_id = ? ORDER BY effective_at ASC, created_at ASC`,
		string(clientID))
}

// Get returns an entry by ID, or nil if absent.
func (s *Store) Get(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return getEntry(ctx, s.db, id)
}

func getEntry(ctx context.Context, db querier, id ledger.EntryID) (*ledger.Entry, error) {
	entries, err := queryEntries(ctx, db, selectEntries+`WHERE id = ?`, string(id))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

// IsReversed checks whether a reversal entry references id.
func (s *Store) IsReversed(ctx context.Context, id ledger.EntryID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return isReversed(ctx, s.db, id)
}

func isReversed(ctx context.Context, db querier, id ledger.EntryID) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE reference_id = ? AND entry_type = ?",
		string(id), string(ledger.EntryReversal),
	).Scan(&count)
	return count > 0, err
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return keyExists(ctx, s.db, idempotencyKey)
}

func keyExists(ctx context.Context, db querier, idempotencyKey string) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM entries WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func queryEntries(ctx context.Context, db querier, query string, args ...any) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (ledger.Entry, error) {
	var (
		e              ledger.Entry
		delta          string
		effectiveAt    string
		shiftType      sql.NullString
		ratio          sql.NullString
		hours          sql.NullString
		rate           sql.NullString
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&e.ID, &e.ClientID, &e.Category, &e.Type, &delta, &effectiveAt,
		&shiftType, &ratio, &hours, &rate, &referenceID, &reason,
		&idempotencyKey, &createdBy, &createdAt,
	)
	if err != nil {
		return e, fmt.Errorf("failed to scan entry: %w", err)
	}

	e.Delta = funding.ParseDecimal(delta)
	e.EffectiveAt = parseTime(effectiveAt)
	e.ShiftType = funding.ShiftCategory(shiftType.String)
	e.Ratio = funding.StaffRatio(ratio.String)
	e.Hours = funding.ParseDecimal(hours.String)
	e.Rate = funding.ParseDecimal(rate.String)
	e.ReferenceID = referenceID.String
	e.Reason = reason.String
	e.IdempotencyKey = idempotencyKey.String
	e.CreatedBy = createdBy.String
	e.CreatedAt = parseTime(createdAt)

	return e, nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction while holding the
// store's write lock.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore reads and writes through the open sql.Tx only; the parent's
// lock is already held.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, e ledger.Entry) error {
	return appendEntry(ctx, ts.tx, e)
}

func (ts *txStore) AppendBatch(ctx context.Context, entries []ledger.Entry) error {
	for _, e := range entries {
		if err := appendEntry(ctx, ts.tx, e); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, clientID ledger.ClientID, category funding.FundingCategory) ([]ledger.Entry, error) {
	return loadCategory(ctx, ts.tx, clientID, category)
}

func (ts *txStore) LoadClient(ctx context.Context, clientID ledger.ClientID) ([]ledger.Entry, error) {
	return loadClient(ctx, ts.tx, clientID)
}

func (ts *txStore) Get(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return getEntry(ctx, ts.tx, id)
}

func (ts *txStore) IsReversed(ctx context.Context, id ledger.EntryID) (bool, error) {
	return isReversed(ctx, ts.tx, id)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return keyExists(ctx, ts.tx, idempotencyKey)
}

func (ts *txStore) GetPlan(ctx context.Context, clientID ledger.ClientID) (*ledger.Plan, error) {
	return getPlan(ctx, ts.tx, clientID)
}

// =============================================================================
// PLAN STORE (ledger.PlanStore interface)
// =============================================================================

type allocationRecord struct {
	Total         decimal.Decimal      `json:"total"`
	AllowedRatios []funding.StaffRatio `json:"allowed_ratios"`
}

// SavePlan inserts or replaces a client's plan.
func (s *Store) SavePlan(ctx context.Context, p ledger.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	categories := make(map[funding.FundingCategory]allocationRecord, len(p.Categories))
	for cat, a := range p.Categories {
		categories[cat] = allocationRecord{Total: a.Total, AllowedRatios: a.AllowedRatios}
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("failed to encode plan categories: %w", err)
	}

	updatedAt := p.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO plans (client_id, name, period_start, period_end, categories_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			name = excluded.name,
			period_start = excluded.period_start,
			period_end = excluded.period_end,
			categories_json = excluded.categories_json,
			updated_at = excluded.updated_at
	`,
		string(p.ClientID), p.Name,
		nullDate(p.Start), nullDate(p.End),
		string(categoriesJSON), formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

// GetPlan returns a client's plan, or nil if none exists.
func (s *Store) GetPlan(ctx context.Context, clientID ledger.ClientID) (*ledger.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getPlan(ctx, s.db, clientID)
}

func getPlan(ctx context.Context, db querier, clientID ledger.ClientID) (*ledger.Plan, error) {
	plans, err := queryPlans(ctx, db, `WHERE client_id = ?`, string(clientID))
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &plans[0], nil
}

// ListPlans returns every plan ordered by client ID.
func (s *Store) ListPlans(ctx context.Context) ([]ledger.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queryPlans(ctx, s.db, `ORDER BY client_id`)
}

func queryPlans(ctx context.Context, db querier, where string, args ...any) ([]ledger.Plan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT client_id, name, period_start, period_end, categories_json, updated_at FROM plans `+where,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []ledger.Plan
	for rows.Next() {
		var (
			p              ledger.Plan
			start, end     sql.NullString
			categoriesJSON string
			updatedAt      string
		)
		if err := rows.Scan(&p.ClientID, &p.Name, &start, &end, &categoriesJSON, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}

		var categories map[funding.FundingCategory]allocationRecord
		if err := json.Unmarshal([]byte(categoriesJSON), &categories); err != nil {
			return nil, fmt.Errorf("failed to decode plan %s: %w", p.ClientID, err)
		}
		p.Categories = make(map[funding.FundingCategory]ledger.Allocation, len(categories))
		for cat, a := range categories {
			p.Categories[cat] = ledger.Allocation{Total: a.Total, AllowedRatios: a.AllowedRatios}
		}
		if start.Valid {
			p.Start = parseDate(start.String)
		}
		if end.Valid {
			p.End = parseDate(end.String)
		}
		p.UpdatedAt = parseTime(updatedAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset drops all entries and plans. Used by demo scenarios.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"entries", "plans"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

var _ ledger.Backend = (*Store)(nil)

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullDate stores the calendar date of t as read in t's own location.
func nullDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

// parseDate returns a stored plan date as midnight UTC.
func parseDate(s string) time.Time {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t
	}
	return parseTime(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
