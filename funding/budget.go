package funding

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// =============================================================================
// BUDGET - Snapshot of a client's NDIS funding
// =============================================================================

// CategoryBudget is one funding bucket of a client's plan.
type CategoryBudget struct {
	Total         decimal.Decimal
	Remaining     decimal.Decimal
	AllowedRatios []StaffRatio
}

// Budget is a read-only snapshot. This package never mutates it; the
// ledger owns the remaining balances.
type Budget struct {
	ClientID         string
	SIL              CategoryBudget
	CommunityAccess  CategoryBudget
	CapacityBuilding CategoryBudget
}

// For returns the bucket for category, or false if the category is unknown.
func (b Budget) For(category FundingCategory) (CategoryBudget, bool) {
	switch category {
	case CategorySIL:
		return b.SIL, true
	case CategoryCommunityAccess:
		return b.CommunityAccess, true
	case CategoryCapacityBuilding:
		return b.CapacityBuilding, true
	}
	return CategoryBudget{}, false
}

// With returns a copy of b with the bucket for category replaced.
// Unknown categories leave b unchanged.
func (b Budget) With(category FundingCategory, cb CategoryBudget) Budget {
	switch category {
	case CategorySIL:
		b.SIL = cb
	case CategoryCommunityAccess:
		b.CommunityAccess = cb
	case CategoryCapacityBuilding:
		b.CapacityBuilding = cb
	}
	return b
}

// =============================================================================
// BUDGET VALIDATOR
// =============================================================================

// MsgInvalidCategory is the only hard validation failure.
const MsgInvalidCategory = "Invalid funding category"

// ValidationResult is returned as data, never as an error.
type ValidationResult struct {
	IsValid   bool
	Remaining decimal.Decimal
	Message   string
}

// Validate checks that the deduction fits in the remaining balance of its
// category. It does not apply the deduction.
func Validate(b Budget, d Deduction) ValidationResult {
	cb, ok := b.For(d.Category)
	if !ok {
		return ValidationResult{IsValid: false, Remaining: decimal.Zero, Message: MsgInvalidCategory}
	}
	if cb.Remaining.LessThan(d.Amount) {
		return ValidationResult{
			IsValid:   false,
			Remaining: cb.Remaining,
			Message: fmt.Sprintf("Insufficient %s funds. Remaining: %s, Required: %s",
				d.Category, FormatCurrency(cb.Remaining), FormatCurrency(d.Amount)),
		}
	}
	return ValidationResult{IsValid: true, Remaining: cb.Remaining}
}

// IsRatioAllowed reports whether ratio is in the category's allowed list.
// Unknown categories and empty lists allow nothing.
func IsRatioAllowed(b Budget, category FundingCategory, ratio StaffRatio) bool {
	cb, ok := b.For(category)
	if !ok {
		return false
	}
	return slices.Contains(cb.AllowedRatios, ratio)
}
