/*
Package ledger commits funding deductions against client budgets.

PURPOSE:
  The funding package only computes and validates deductions against a
  budget snapshot. Applying them is a read-modify-write on the remaining
  balance, and two shifts completed at the same time must not both spend
  the last dollar. This package owns that commit step.

KEY CONCEPTS IN THIS FILE (types.go):
  - Entry: An immutable ledger line (deduction, reversal, adjustment)
  - Plan: A client's funding allocation per category
  - Allocation: Total and allowed staffing ratios for one category

DESIGN PRINCIPLES:
  1. Append-only: Entries are never modified, only reversed
  2. Derived balance: Remaining = Total + sum of entry deltas
  3. Serialized commits: Validation and append happen in one WithTx
  4. Idempotency: One entry per idempotency key (usually the shift ID)

SEE ALSO:
  - ledger.go: Commit, Reverse, Adjust, Snapshot
  - store.go: Persistence interfaces
  - errors.go: Sentinel and structured errors
*/
package ledger

import (
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntryID string
type ClientID string

// =============================================================================
// ENTRY - Atomic change to a category balance
// =============================================================================

type EntryType string

const (
	EntryDeduction  EntryType = "deduction"  // Shift charged to a category (negative delta)
	EntryReversal   EntryType = "reversal"   // Undo a previous entry
	EntryAdjustment EntryType = "adjustment" // Manual correction, either sign
)

type Entry struct {
	ID          EntryID
	ClientID    ClientID
	Category    funding.FundingCategory
	Type        EntryType
	Delta       decimal.Decimal
	EffectiveAt time.Time

	// Pricing detail copied from the deduction, empty for adjustments
	ShiftType funding.ShiftCategory
	Ratio     funding.StaffRatio
	Hours     decimal.Decimal
	Rate      decimal.Decimal

	ReferenceID    string // shift ID, or the reversed entry ID
	Reason         string
	IdempotencyKey string

	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// PLAN - Funding allocation for one client
// =============================================================================

type Allocation struct {
	Total         decimal.Decimal
	AllowedRatios []funding.StaffRatio
}

type Plan struct {
	ClientID ClientID
	Name     string

	// Start and End are calendar days. Stores keep the date, not the instant.
	Start      time.Time
	End        time.Time
	Categories map[funding.FundingCategory]Allocation
	UpdatedAt  time.Time
}

// Budget builds a funding.Budget from the plan totals and ledger entries.
// Entries for categories absent from the plan are ignored.
func (p Plan) Budget(entries []Entry) funding.Budget {
	spent := make(map[funding.FundingCategory]decimal.Decimal)
	for _, e := range entries {
		spent[e.Category] = spent[e.Category].Add(e.Delta)
	}

	b := funding.Budget{ClientID: string(p.ClientID)}
	for _, cat := range funding.FundingCategories {
		alloc, ok := p.Categories[cat]
		if !ok {
			continue
		}
		b = b.With(cat, funding.CategoryBudget{
			Total:         alloc.Total,
			Remaining:     alloc.Total.Add(spent[cat]),
			AllowedRatios: alloc.AllowedRatios,
		})
	}
	return b
}
