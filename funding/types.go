/*
Package funding provides NDIS shift pricing and service agreement arithmetic.

PURPOSE:
  Turns raw shift timestamps and agreement line items into money. Every
  function in this package is pure: no I/O, no shared mutable state, and
  no failure on bad input. Missing or unknown values degrade to
  conservative defaults instead of returning errors.

KEY CONCEPTS IN THIS FILE (types.go):
  - ShiftInterval: start/end pair of a worked shift
  - ShiftCategory: day, evening, active night or sleepover
  - StaffRatio: staff-to-client ratio ("1:2" = one worker, two clients)
  - FundingCategory: the NDIS budget bucket a deduction is charged to

PIPELINE:
  interval -> Classify -> Resolve rate -> Calculate -> Validate against budget

PRECISION:
  All money and hours are decimal.Decimal. float64 never appears in a
  monetary computation, including formatting.

SEE ALSO:
  - classifier.go: shift classification and duration
  - rates.go: pricing configuration and rate resolution
  - calculator.go: deduction amounts
  - budget.go: budget sufficiency and ratio checks
  - agreement.go: service agreement line totals
*/
package funding

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFT INTERVAL
// =============================================================================

// ShiftInterval is a worked shift. End is expected after Start; a reversed
// interval is priced as zero hours rather than rejected.
type ShiftInterval struct {
	Start time.Time
	End   time.Time
}

// Hours returns the non-negative duration in hours, rounded to two decimals.
func (s ShiftInterval) Hours() decimal.Decimal { return Duration(s.Start, s.End) }

// Category returns the shift category of the interval.
func (s ShiftInterval) Category() ShiftCategory { return Classify(s.Start, s.End) }

// =============================================================================
// SHIFT CATEGORY
// =============================================================================

type ShiftCategory string

const (
	ShiftDay         ShiftCategory = "day"
	ShiftEvening     ShiftCategory = "evening"
	ShiftActiveNight ShiftCategory = "active_night"
	ShiftSleepover   ShiftCategory = "sleepover"
)

// ShiftCategories lists every category in pricing order.
var ShiftCategories = []ShiftCategory{ShiftDay, ShiftEvening, ShiftActiveNight, ShiftSleepover}

// Valid reports whether c is one of the known categories.
func (c ShiftCategory) Valid() bool {
	switch c {
	case ShiftDay, ShiftEvening, ShiftActiveNight, ShiftSleepover:
		return true
	}
	return false
}

// =============================================================================
// STAFF RATIO
// =============================================================================

// StaffRatio is written "staff:clients". The set is open: any string is
// accepted and unknown ratios are flagged when a deduction is calculated.
type StaffRatio string

const (
	Ratio1to1 StaffRatio = "1:1"
	Ratio1to2 StaffRatio = "1:2"
	Ratio1to3 StaffRatio = "1:3"
	Ratio1to4 StaffRatio = "1:4"
	Ratio2to1 StaffRatio = "2:1"
)

// NormalizeRatio trims whitespace around both sides of the colon so
// " 1 : 2" and "1:2" price the same.
func NormalizeRatio(s string) StaffRatio {
	parts := strings.Split(s, ":")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return StaffRatio(strings.Join(parts, ":"))
}

// =============================================================================
// FUNDING CATEGORY
// =============================================================================

type FundingCategory string

const (
	CategorySIL              FundingCategory = "SIL"
	CategoryCommunityAccess  FundingCategory = "CommunityAccess"
	CategoryCapacityBuilding FundingCategory = "CapacityBuilding"
)

// FundingCategories lists the budget buckets in display order.
var FundingCategories = []FundingCategory{CategorySIL, CategoryCommunityAccess, CategoryCapacityBuilding}

// Valid reports whether c is one of the three NDIS budget buckets.
func (c FundingCategory) Valid() bool {
	switch c {
	case CategorySIL, CategoryCommunityAccess, CategoryCapacityBuilding:
		return true
	}
	return false
}

// =============================================================================
// DECIMAL HELPERS
// =============================================================================

// ParseDecimal parses a numeric string. Empty or malformed input yields
// zero, which is how missing agreement fields are priced.
func ParseDecimal(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MustDecimal parses s or panics. Intended for constants and tests.
func MustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
