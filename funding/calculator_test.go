package funding_test

import (
	"testing"

	"github.com/carelink/funding-engine/funding"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return funding.MustDecimal(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, context ...string) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s got %s %v", want, got.String(), context)
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

func TestResolve_CustomRateWins(t *testing.T) {
	p := funding.DefaultPricing()
	table := funding.RateTable{}
	table.Set(funding.ShiftDay, funding.Ratio1to1, dec("70"))

	for _, c := range funding.ShiftCategories {
		for _, r := range []funding.StaffRatio{funding.Ratio1to1, funding.Ratio1to3, "3:7"} {
			assertDecimal(t, "42.50", p.Resolve(c, r, decPtr("42.50"), table))
			assertDecimal(t, "42.50", p.Resolve(c, r, decPtr("42.50"), nil))
		}
	}
}

func TestResolve_ZeroCustomRateFallsThrough(t *testing.T) {
	p := funding.DefaultPricing()
	rate, source := p.ResolveWithSource(funding.ShiftEvening, funding.Ratio1to1, decPtr("0"), funding.RateTable{})
	assertDecimal(t, "72.00", rate)
	assert.Equal(t, funding.SourceFallback, source)
}

func TestResolve_TableBeforeFallback(t *testing.T) {
	p := funding.DefaultPricing()
	table := funding.RateTable{}
	table.Set(funding.ShiftDay, funding.Ratio1to2, dec("40.10"))

	rate, source := p.ResolveWithSource(funding.ShiftDay, funding.Ratio1to2, nil, table)
	assertDecimal(t, "40.10", rate)
	assert.Equal(t, funding.SourceTable, source)

	// Same category, ratio missing from the table
	rate, source = p.ResolveWithSource(funding.ShiftDay, funding.Ratio1to3, nil, table)
	assertDecimal(t, "65.00", rate)
	assert.Equal(t, funding.SourceFallback, source)
}

func TestResolve_EmptyTable_HardcodedFallback(t *testing.T) {
	p := funding.DefaultPricing()
	for _, r := range []funding.StaffRatio{funding.Ratio1to1, funding.Ratio1to4, funding.Ratio2to1, "bogus"} {
		assertDecimal(t, "85.00", p.Resolve(funding.ShiftActiveNight, r, nil, funding.RateTable{}))
	}
	assertDecimal(t, "65.00", p.Resolve(funding.ShiftDay, funding.Ratio1to1, nil, funding.RateTable{}))
	assertDecimal(t, "72.00", p.Resolve(funding.ShiftEvening, funding.Ratio1to1, nil, funding.RateTable{}))
	assertDecimal(t, "320.00", p.Resolve(funding.ShiftSleepover, funding.Ratio1to1, nil, funding.RateTable{}))
}

func TestResolve_NilTableUsesConfiguredRates(t *testing.T) {
	p := funding.DefaultPricing()
	p.Rates.Set(funding.ShiftEvening, funding.Ratio1to1, dec("75.25"))

	assertDecimal(t, "75.25", p.Resolve(funding.ShiftEvening, funding.Ratio1to1, nil, nil))
	// An explicit table replaces the configured one
	assertDecimal(t, "72.00", p.Resolve(funding.ShiftEvening, funding.Ratio1to1, nil, funding.RateTable{}))
}

func TestResolve_UnknownCategory_Zero(t *testing.T) {
	p := funding.DefaultPricing()
	assert.True(t, p.Resolve("weekend", funding.Ratio1to1, nil, nil).IsZero())
}

// =============================================================================
// CALCULATE
// =============================================================================

func TestCalculate_DayShift(t *testing.T) {
	// GIVEN: 10:00-18:00 at 1:1, no custom rate, no table
	// THEN: Day, 65.00 × 8 × 1.0 = 520.00
	calc := funding.NewCalculator(funding.DefaultPricing())
	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 10, 0), End: at(10, 18, 0)},
		funding.Ratio1to1, funding.CategorySIL, nil, funding.RateTable{})

	assert.Equal(t, funding.ShiftDay, d.ShiftType)
	assertDecimal(t, "8", d.Hours)
	assertDecimal(t, "65", d.Rate)
	assertDecimal(t, "1", d.RatioMultiplier)
	assertDecimal(t, "520.00", d.Amount)
	assert.Equal(t, funding.CategorySIL, d.Category)
	assert.False(t, d.UsedDefaultRatio)
	assert.False(t, d.FlatRate)
}

func TestCalculate_SleepoverIsFlat(t *testing.T) {
	// GIVEN: 22:00-07:00 (9h) starting in the overnight window
	// THEN: Sleepover priced at the flat 320.00, not 320 × 9
	calc := funding.NewCalculator(funding.DefaultPricing())
	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 22, 0), End: at(11, 7, 0)},
		funding.Ratio1to1, funding.CategorySIL, nil, nil)

	assert.Equal(t, funding.ShiftSleepover, d.ShiftType)
	assertDecimal(t, "9", d.Hours)
	assertDecimal(t, "320.00", d.Amount)
	assert.True(t, d.FlatRate)
}

func TestCalculate_HourlySleepoverWhenConfigured(t *testing.T) {
	p := funding.DefaultPricing()
	p.FlatRate = map[funding.ShiftCategory]bool{}
	p.Fallback[funding.ShiftSleepover] = dec("40")
	calc := funding.NewCalculator(p)

	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 22, 0), End: at(11, 7, 0)},
		funding.Ratio1to1, funding.CategorySIL, nil, nil)
	assertDecimal(t, "360.00", d.Amount)
}

func TestCalculate_RatioMultipliers(t *testing.T) {
	calc := funding.NewCalculator(funding.DefaultPricing())
	shift := funding.ShiftInterval{Start: at(10, 10, 0), End: at(10, 14, 0)} // 4h day

	tests := []struct {
		ratio funding.StaffRatio
		want  string
	}{
		{funding.Ratio1to1, "260.00"},
		{funding.Ratio1to2, "156.00"},
		{funding.Ratio1to3, "104.00"},
		{funding.Ratio1to4, "78.00"},
	}
	for _, tt := range tests {
		d := calc.Calculate(shift, tt.ratio, funding.CategoryCommunityAccess, nil, nil)
		assertDecimal(t, tt.want, d.Amount, string(tt.ratio))
		assert.False(t, d.UsedDefaultRatio)
	}
}

func TestCalculate_UnknownRatio_FullCostFlagged(t *testing.T) {
	calc := funding.NewCalculator(funding.DefaultPricing())
	shift := funding.ShiftInterval{Start: at(10, 10, 0), End: at(10, 14, 0)}

	for _, ratio := range []funding.StaffRatio{funding.Ratio2to1, "", "1:9", "garbage"} {
		var d funding.Deduction
		require.NotPanics(t, func() {
			d = calc.Calculate(shift, ratio, funding.CategorySIL, nil, nil)
		})
		assertDecimal(t, "1", d.RatioMultiplier)
		assertDecimal(t, "260.00", d.Amount)
		assert.True(t, d.UsedDefaultRatio, "ratio %q", ratio)
	}
}

func TestCalculate_RoundsToCents(t *testing.T) {
	// 20 minutes = 0.33h; 72.00 × 0.33 × 0.6 = 14.256 -> 14.26
	calc := funding.NewCalculator(funding.DefaultPricing())
	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 21, 0), End: at(10, 21, 20)},
		funding.Ratio1to2, funding.CategorySIL, nil, nil)
	assert.Equal(t, funding.ShiftEvening, d.ShiftType)
	assertDecimal(t, "14.26", d.Amount)
}

func TestCalculate_NegativeInterval_ZeroAmount(t *testing.T) {
	calc := funding.NewCalculator(funding.DefaultPricing())
	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 17, 0), End: at(10, 9, 0)},
		funding.Ratio1to1, funding.CategorySIL, nil, nil)
	assert.True(t, d.Hours.IsZero())
	assert.True(t, d.Amount.IsZero())
}

func TestCalculate_CustomRate(t *testing.T) {
	calc := funding.NewCalculator(funding.DefaultPricing())
	d := calc.Calculate(funding.ShiftInterval{Start: at(10, 10, 0), End: at(10, 12, 30)},
		funding.Ratio1to3, funding.CategoryCapacityBuilding, decPtr("42.50"), nil)
	// 42.50 × 2.5 × 0.4 = 42.50
	assertDecimal(t, "42.50", d.Amount)
	assert.Equal(t, funding.SourceCustom, d.RateSource)
}

func TestCalculateSeries_SumsRoundedAmounts(t *testing.T) {
	calc := funding.NewCalculator(funding.DefaultPricing())
	shifts := []funding.ShiftInterval{
		{Start: at(10, 10, 0), End: at(10, 18, 0)}, // 520.00
		{Start: at(11, 21, 0), End: at(11, 21, 20)}, // 72 × 0.33 = 23.76
		{Start: at(12, 22, 0), End: at(13, 7, 0)},   // 320.00
	}
	q := calc.CalculateSeries(shifts, funding.Ratio1to1, funding.CategorySIL, nil, nil)

	require.Len(t, q.Deductions, 3)
	assertDecimal(t, "863.76", q.Total)
	assertDecimal(t, "17.33", q.Hours)
	assert.Equal(t, 0, q.Degraded)

	q = calc.CalculateSeries(shifts[:1], funding.Ratio2to1, funding.CategorySIL, nil, nil)
	assert.Equal(t, 1, q.Degraded)
}

func TestShiftInterval_Helpers(t *testing.T) {
	iv := funding.ShiftInterval{Start: at(10, 20, 30), End: at(10, 23, 0)}
	assert.Equal(t, funding.ShiftEvening, iv.Category())
	assertDecimal(t, "2.5", iv.Hours())
}
