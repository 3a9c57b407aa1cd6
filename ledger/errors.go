/*
errors.go - Error types for the budget ledger

ERROR CATEGORIES:
  1. Commit rejections - insufficient funds, ratio not allowed, bad category,
     negative amount
  2. Conflicts - duplicate idempotency key, already reversed
  3. Lookups - plan or entry not found

The HTTP layer maps these with IsClientError, IsConflict and IsNotFound.
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/carelink/funding-engine/funding"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when an entry with the same key
	// already exists. Expected on client retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrInsufficientFunds is returned when a deduction exceeds the remaining
	// balance of its category.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrRatioNotAllowed is returned when the plan does not permit the
	// deduction's staffing ratio for its category.
	ErrRatioNotAllowed = errors.New("staff ratio not allowed for funding category")

	// ErrInvalidCategory is returned for categories outside SIL,
	// CommunityAccess and CapacityBuilding, or absent from the plan.
	ErrInvalidCategory = errors.New("invalid funding category")

	// ErrNegativeAmount is returned when a deduction would add funds.
	// Funding is only ever added through Adjust.
	ErrNegativeAmount = errors.New("deduction amount must not be negative")

	// ErrPlanNotFound is returned when the client has no funding plan.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrEntryNotFound is returned when a referenced entry does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrAlreadyReversed is returned when reversing an entry twice.
	ErrAlreadyReversed = errors.New("entry already reversed")

	// ErrNotReversible is returned when reversing a reversal.
	ErrNotReversible = errors.New("entry cannot be reversed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// InsufficientFundsError carries the figures behind a rejected commit.
type InsufficientFundsError struct {
	ClientID  ClientID
	Category  funding.FundingCategory
	Remaining decimal.Decimal
	Requested decimal.Decimal
	Message   string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: %s remaining %s, requested %s",
		e.Category, e.Remaining.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// Shortfall is how much more funding the deduction needed.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Remaining)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether err was caused by the request itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrRatioNotAllowed) ||
		errors.Is(err, ErrInvalidCategory) ||
		errors.Is(err, ErrNegativeAmount) ||
		errors.Is(err, ErrNotReversible)
}

// IsConflict reports whether err conflicts with existing ledger state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrAlreadyReversed)
}

// IsNotFound reports whether err is a missing plan or entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}
