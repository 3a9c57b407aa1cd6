package funding

import "github.com/shopspring/decimal"

// =============================================================================
// RATE TABLE
// =============================================================================

// RateTable maps a shift category and staff ratio to a unit rate.
type RateTable map[ShiftCategory]map[StaffRatio]decimal.Decimal

// Lookup returns the configured rate, if any.
func (t RateTable) Lookup(category ShiftCategory, ratio StaffRatio) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	byRatio, ok := t[category]
	if !ok {
		return decimal.Zero, false
	}
	rate, ok := byRatio[ratio]
	return rate, ok
}

// Set stores a rate, allocating the inner map on first use.
func (t RateTable) Set(category ShiftCategory, ratio StaffRatio, rate decimal.Decimal) {
	if t[category] == nil {
		t[category] = make(map[StaffRatio]decimal.Decimal)
	}
	t[category][ratio] = rate
}

// =============================================================================
// PRICING - single injected configuration for every calculator
// =============================================================================

// Pricing is the pricing policy shared by the resolver and calculator.
// Callers build it once (DefaultPricing or factory.LoadPricing) and pass it
// explicitly.
type Pricing struct {
	// Fallback is the last-resort rate per category, independent of ratio.
	Fallback map[ShiftCategory]decimal.Decimal

	// Multipliers discount the per-client cost at higher staffing ratios.
	Multipliers map[StaffRatio]decimal.Decimal

	// FlatRate marks categories billed per shift instead of per hour.
	FlatRate map[ShiftCategory]bool

	// Rates is the organisation's default table, consulted before Fallback.
	Rates RateTable
}

// DefaultPricing returns the baked-in NDIS defaults.
func DefaultPricing() Pricing {
	return Pricing{
		Fallback: map[ShiftCategory]decimal.Decimal{
			ShiftDay:         decimal.RequireFromString("65.00"),
			ShiftEvening:     decimal.RequireFromString("72.00"),
			ShiftActiveNight: decimal.RequireFromString("85.00"),
			ShiftSleepover:   decimal.RequireFromString("320.00"),
		},
		Multipliers: map[StaffRatio]decimal.Decimal{
			Ratio1to1: decimal.RequireFromString("1.0"),
			Ratio1to2: decimal.RequireFromString("0.6"),
			Ratio1to3: decimal.RequireFromString("0.4"),
			Ratio1to4: decimal.RequireFromString("0.3"),
		},
		FlatRate: map[ShiftCategory]bool{
			ShiftSleepover: true,
		},
		Rates: RateTable{},
	}
}

// Multiplier returns the cost multiplier for ratio. Unknown ratios return
// 1.0 (full cost) with ok=false so callers can flag the result.
func (p Pricing) Multiplier(ratio StaffRatio) (m decimal.Decimal, ok bool) {
	if m, ok := p.Multipliers[ratio]; ok {
		return m, true
	}
	return decimal.NewFromInt(1), false
}

// IsFlatRate reports whether category is billed per shift.
func (p Pricing) IsFlatRate(category ShiftCategory) bool {
	return p.FlatRate[category]
}

// =============================================================================
// RATE RESOLVER
// =============================================================================

// RateSource records which level of the fallback chain produced a rate.
type RateSource string

const (
	SourceCustom   RateSource = "custom"
	SourceTable    RateSource = "table"
	SourceFallback RateSource = "fallback"
)

// Resolve returns the unit rate for a category and ratio. It always
// succeeds:
//
//  1. customRate, when non-nil and non-zero
//  2. table[category][ratio], when present
//  3. the Fallback rate for category (zero for an unknown category)
//
// A nil table falls through to p.Rates.
func (p Pricing) Resolve(category ShiftCategory, ratio StaffRatio, customRate *decimal.Decimal, table RateTable) decimal.Decimal {
	rate, _ := p.ResolveWithSource(category, ratio, customRate, table)
	return rate
}

// ResolveWithSource is Resolve that also reports which level answered.
func (p Pricing) ResolveWithSource(category ShiftCategory, ratio StaffRatio, customRate *decimal.Decimal, table RateTable) (decimal.Decimal, RateSource) {
	if customRate != nil && !customRate.IsZero() {
		return *customRate, SourceCustom
	}
	if table == nil {
		table = p.Rates
	}
	if rate, ok := table.Lookup(category, ratio); ok {
		return rate, SourceTable
	}
	return p.Fallback[category], SourceFallback
}
