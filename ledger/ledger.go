/*
ledger.go - Budget ledger operations

PURPOSE:
  Commits funding deductions so that the remaining balance of a category
  never goes below zero, even when shifts are completed concurrently.

COMMIT FLOW:
  1. Reject a negative amount (ErrNegativeAmount) or unknown category
  2. Inside WithTx:
     a. Load the client's plan (ErrPlanNotFound, ErrInvalidCategory)
     b. Reject a taken idempotency key
     c. Replay the client's entries into a funding.Budget snapshot
     d. funding.IsRatioAllowed -> ErrRatioNotAllowed
     e. funding.Validate       -> *InsufficientFundsError
     f. Append the deduction entry
  Steps a-f run with exclusive store access, so two commits cannot both
  validate against the same stale balance, and a plan saved concurrently
  is seen either wholly before or wholly after the commit.

CORRECTIONS:
  Reverse appends an entry with the opposite delta. Both stay in the
  ledger; an entry can be reversed once.

SEE ALSO:
  - funding/budget.go: Validate and IsRatioAllowed
  - store.go: Backend interface
*/
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Ledger is the only writer of budget balances.
type Ledger struct {
	Backend Backend
	Logger  *zap.Logger

	// Now and NewID are replaceable for deterministic tests.
	Now   func() time.Time
	NewID func() EntryID
}

// New creates a ledger over backend. A nil logger disables logging.
func New(backend Backend, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		Backend: backend,
		Logger:  logger,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   func() EntryID { return EntryID(uuid.NewString()) },
	}
}

// CommitOptions describes where a deduction came from.
type CommitOptions struct {
	ReferenceID    string // usually the shift ID
	IdempotencyKey string // defaults to "shift-" + ReferenceID when empty
	EffectiveAt    time.Time
	Reason         string
	CreatedBy      string
}

// =============================================================================
// READS
// =============================================================================

// Plan returns the client's plan or ErrPlanNotFound.
func (l *Ledger) Plan(ctx context.Context, clientID ClientID) (*Plan, error) {
	plan, err := l.Backend.GetPlan(ctx, clientID)
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", clientID, err)
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotFound, clientID)
	}
	return plan, nil
}

// Snapshot computes the client's current budget from plan and entries.
func (l *Ledger) Snapshot(ctx context.Context, clientID ClientID) (funding.Budget, error) {
	plan, err := l.Plan(ctx, clientID)
	if err != nil {
		return funding.Budget{}, err
	}
	entries, err := l.Backend.LoadClient(ctx, clientID)
	if err != nil {
		return funding.Budget{}, fmt.Errorf("load entries %s: %w", clientID, err)
	}
	return plan.Budget(entries), nil
}

// Entries returns the client's ledger, oldest first.
func (l *Ledger) Entries(ctx context.Context, clientID ClientID) ([]Entry, error) {
	return l.Backend.LoadClient(ctx, clientID)
}

// =============================================================================
// WRITES
// =============================================================================

// Commit validates d against the client's live balance and appends it.
func (l *Ledger) Commit(ctx context.Context, clientID ClientID, d funding.Deduction, opts CommitOptions) (Entry, error) {
	if d.Amount.IsNegative() {
		return Entry{}, fmt.Errorf("%w: %s", ErrNegativeAmount, d.Amount.StringFixed(2))
	}
	if !d.Category.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
	}

	now := l.Now()
	key := opts.IdempotencyKey
	if key == "" && opts.ReferenceID != "" {
		key = "shift-" + opts.ReferenceID
	}
	effective := opts.EffectiveAt
	if effective.IsZero() {
		effective = now
	}

	entry := Entry{
		ID:             l.NewID(),
		ClientID:       clientID,
		Category:       d.Category,
		Type:           EntryDeduction,
		Delta:          d.Amount.Neg(),
		EffectiveAt:    effective,
		ShiftType:      d.ShiftType,
		Ratio:          d.Ratio,
		Hours:          d.Hours,
		Rate:           d.Rate,
		ReferenceID:    opts.ReferenceID,
		Reason:         opts.Reason,
		IdempotencyKey: key,
		CreatedBy:      opts.CreatedBy,
		CreatedAt:      now,
	}

	err := l.Backend.WithTx(ctx, func(s Store) error {
		plan, err := s.GetPlan(ctx, clientID)
		if err != nil {
			return fmt.Errorf("load plan %s: %w", clientID, err)
		}
		if plan == nil {
			return fmt.Errorf("%w: %s", ErrPlanNotFound, clientID)
		}
		if _, ok := plan.Categories[d.Category]; !ok {
			return fmt.Errorf("%w: %q", ErrInvalidCategory, d.Category)
		}

		if key != "" {
			exists, err := s.Exists(ctx, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, key)
			}
		}

		entries, err := s.LoadClient(ctx, clientID)
		if err != nil {
			return err
		}
		budget := plan.Budget(entries)

		if !funding.IsRatioAllowed(budget, d.Category, d.Ratio) {
			return fmt.Errorf("%w: %s for %s", ErrRatioNotAllowed, d.Ratio, d.Category)
		}

		res := funding.Validate(budget, d)
		if !res.IsValid {
			return &InsufficientFundsError{
				ClientID:  clientID,
				Category:  d.Category,
				Remaining: res.Remaining,
				Requested: d.Amount,
				Message:   res.Message,
			}
		}
		return s.Append(ctx, entry)
	})
	if err != nil {
		l.Logger.Info("deduction rejected",
			zap.String("client_id", string(clientID)),
			zap.String("category", string(d.Category)),
			zap.String("amount", d.Amount.StringFixed(2)),
			zap.Error(err))
		return Entry{}, err
	}

	if d.UsedDefaultRatio {
		l.Logger.Warn("deduction committed at full cost for unknown ratio",
			zap.String("client_id", string(clientID)),
			zap.String("entry_id", string(entry.ID)),
			zap.String("ratio", string(d.Ratio)))
	}
	l.Logger.Info("deduction committed",
		zap.String("client_id", string(clientID)),
		zap.String("entry_id", string(entry.ID)),
		zap.String("category", string(d.Category)),
		zap.String("amount", d.Amount.StringFixed(2)))
	return entry, nil
}

// Reverse appends a reversal of entry id.
func (l *Ledger) Reverse(ctx context.Context, id EntryID, reason, actor string) (Entry, error) {
	var reversal Entry
	err := l.Backend.WithTx(ctx, func(s Store) error {
		orig, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if orig == nil {
			return fmt.Errorf("%w: %s", ErrEntryNotFound, id)
		}
		if orig.Type == EntryReversal {
			return fmt.Errorf("%w: %s is a reversal", ErrNotReversible, id)
		}
		reversed, err := s.IsReversed(ctx, id)
		if err != nil {
			return err
		}
		if reversed {
			return fmt.Errorf("%w: %s", ErrAlreadyReversed, id)
		}

		now := l.Now()
		reversal = Entry{
			ID:             l.NewID(),
			ClientID:       orig.ClientID,
			Category:       orig.Category,
			Type:           EntryReversal,
			Delta:          orig.Delta.Neg(),
			EffectiveAt:    orig.EffectiveAt,
			ShiftType:      orig.ShiftType,
			Ratio:          orig.Ratio,
			Hours:          orig.Hours,
			Rate:           orig.Rate,
			ReferenceID:    string(orig.ID),
			Reason:         reason,
			IdempotencyKey: "reverse-" + string(orig.ID),
			CreatedBy:      actor,
			CreatedAt:      now,
		}
		return s.Append(ctx, reversal)
	})
	if err != nil {
		return Entry{}, err
	}

	l.Logger.Info("entry reversed",
		zap.String("entry_id", string(id)),
		zap.String("reversal_id", string(reversal.ID)))
	return reversal, nil
}

// Adjust appends a manual correction. Positive deltas add funding.
// Adjustments are not checked against the remaining balance.
func (l *Ledger) Adjust(ctx context.Context, clientID ClientID, category funding.FundingCategory, delta decimal.Decimal, reason, actor string) (Entry, error) {
	plan, err := l.Plan(ctx, clientID)
	if err != nil {
		return Entry{}, err
	}
	if _, ok := plan.Categories[category]; !ok || !category.Valid() {
		return Entry{}, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	now := l.Now()
	entry := Entry{
		ID:          l.NewID(),
		ClientID:    clientID,
		Category:    category,
		Type:        EntryAdjustment,
		Delta:       delta,
		EffectiveAt: now,
		Reason:      reason,
		CreatedBy:   actor,
		CreatedAt:   now,
	}
	if err := l.Backend.Append(ctx, entry); err != nil {
		return Entry{}, err
	}

	l.Logger.Info("budget adjusted",
		zap.String("client_id", string(clientID)),
		zap.String("category", string(category)),
		zap.String("delta", delta.StringFixed(2)))
	return entry, nil
}
