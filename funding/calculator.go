package funding

import "github.com/shopspring/decimal"

// =============================================================================
// DEDUCTION - Result of pricing one shift
// =============================================================================

// Deduction is the candidate charge for one shift against a funding
// category. It is computed, never applied: the ledger commits it.
type Deduction struct {
	ShiftType       ShiftCategory
	Hours           decimal.Decimal
	Ratio           StaffRatio
	Rate            decimal.Decimal
	RateSource      RateSource
	Amount          decimal.Decimal
	Category        FundingCategory
	RatioMultiplier decimal.Decimal

	// UsedDefaultRatio is set when Ratio had no configured multiplier and
	// the shift was priced at full cost. Callers should surface it rather
	// than trust the amount silently.
	UsedDefaultRatio bool

	// FlatRate is set when the category is billed per shift, so Amount
	// does not depend on Hours.
	FlatRate bool
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator prices shifts with an injected Pricing.
type Calculator struct {
	Pricing Pricing
}

// NewCalculator creates a calculator for the given pricing.
func NewCalculator(p Pricing) *Calculator {
	return &Calculator{Pricing: p}
}

// Calculate classifies the interval, resolves its rate and applies the
// ratio multiplier:
//
//	hourly:  amount = rate × hours × multiplier
//	flat:    amount = rate × multiplier
//
// The amount is rounded half away from zero to cents. Calculate never
// fails; customRate and table follow Pricing.Resolve.
func (c *Calculator) Calculate(interval ShiftInterval, ratio StaffRatio, category FundingCategory, customRate *decimal.Decimal, table RateTable) Deduction {
	shiftType := interval.Category()
	hours := interval.Hours()
	rate, source := c.Pricing.ResolveWithSource(shiftType, ratio, customRate, table)
	multiplier, known := c.Pricing.Multiplier(ratio)
	flat := c.Pricing.IsFlatRate(shiftType)

	amount := rate.Mul(multiplier)
	if !flat {
		amount = amount.Mul(hours)
	}

	return Deduction{
		ShiftType:        shiftType,
		Hours:            hours,
		Ratio:            ratio,
		Rate:             rate,
		RateSource:       source,
		Amount:           amount.Round(2),
		Category:         category,
		RatioMultiplier:  multiplier,
		UsedDefaultRatio: !known,
		FlatRate:         flat,
	}
}

// SeriesQuote prices a list of shifts.
type SeriesQuote struct {
	Deductions []Deduction
	Total      decimal.Decimal
	Hours      decimal.Decimal

	// Degraded counts shifts priced with the full-cost ratio fallback.
	Degraded int
}

// CalculateSeries prices every interval with the same ratio, category and
// rate overrides. The total is the exact sum of the rounded amounts.
func (c *Calculator) CalculateSeries(intervals []ShiftInterval, ratio StaffRatio, category FundingCategory, customRate *decimal.Decimal, table RateTable) SeriesQuote {
	q := SeriesQuote{
		Deductions: make([]Deduction, 0, len(intervals)),
		Total:      decimal.Zero,
		Hours:      decimal.Zero,
	}
	for _, iv := range intervals {
		d := c.Calculate(iv, ratio, category, customRate, table)
		q.Deductions = append(q.Deductions, d)
		q.Total = q.Total.Add(d.Amount)
		q.Hours = q.Hours.Add(d.Hours)
		if d.UsedDefaultRatio {
			q.Degraded++
		}
	}
	return q
}
