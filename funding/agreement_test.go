package funding_test

import (
	"testing"

	"github.com/carelink/funding-engine/funding"
	"github.com/stretchr/testify/assert"
)

func TestLineTotals_DayOnly(t *testing.T) {
	// GIVEN: 10 day hours/week at $65.00 for 4 weeks, everything else blank
	item := funding.AgreementLineItem{
		Day:   funding.PeriodRate{HoursPerWeek: "10", UnitRate: "65.00"},
		Weeks: "4",
	}

	totals := funding.LineTotalsFor(item)
	assertDecimal(t, "2600.00", totals.Day)
	for _, p := range funding.ServicePeriods[1:] {
		assert.True(t, totals.Get(p).IsZero(), "period %s", p)
	}
	assertDecimal(t, "2600.00", funding.LineItemTotal(item))
}

func TestLineTotals_AllPeriods(t *testing.T) {
	item := funding.AgreementLineItem{
		Day:           funding.PeriodRate{HoursPerWeek: "20", UnitRate: "67.56"},
		Evening:       funding.PeriodRate{HoursPerWeek: "5.5", UnitRate: "74.44"},
		ActiveNight:   funding.PeriodRate{HoursPerWeek: "8", UnitRate: "75.51"},
		Sleepover:     funding.PeriodRate{HoursPerWeek: "2", UnitRate: "297.60"},
		Saturday:      funding.PeriodRate{HoursPerWeek: "6", UnitRate: "95.07"},
		Sunday:        funding.PeriodRate{HoursPerWeek: "6", UnitRate: "122.59"},
		PublicHoliday: funding.PeriodRate{HoursPerWeek: "0.25", UnitRate: "150.10"},
		Weeks:         "52",
	}

	totals := funding.LineTotalsFor(item)
	assertDecimal(t, "70262.40", totals.Day)
	assertDecimal(t, "21289.84", totals.Evening)
	assertDecimal(t, "31412.16", totals.ActiveNight)
	assertDecimal(t, "30950.40", totals.Sleepover)
	assertDecimal(t, "29661.84", totals.Saturday)
	assertDecimal(t, "38248.08", totals.Sunday)
	assertDecimal(t, "1951.30", totals.PublicHoliday)
	assertDecimal(t, "223776.02", funding.LineItemTotal(item))
}

func TestLineTotals_MissingOrInvalidFieldsAreZero(t *testing.T) {
	item := funding.AgreementLineItem{
		Day:     funding.PeriodRate{HoursPerWeek: "abc", UnitRate: "65"},
		Evening: funding.PeriodRate{HoursPerWeek: " 2 ", UnitRate: ""},
		Weeks:   "4",
	}
	assert.True(t, funding.LineItemTotal(item).IsZero())

	noWeeks := funding.AgreementLineItem{Day: funding.PeriodRate{HoursPerWeek: "10", UnitRate: "65"}}
	assert.True(t, funding.LineItemTotal(noWeeks).IsZero())
}

func TestGrandTotal_ExactSumOfLines(t *testing.T) {
	// Values chosen so binary floating point would drift
	a := funding.AgreementLineItem{
		Day:   funding.PeriodRate{HoursPerWeek: "0.1", UnitRate: "0.2"},
		Weeks: "3",
	}
	b := funding.AgreementLineItem{
		Evening: funding.PeriodRate{HoursPerWeek: "0.7", UnitRate: "0.1"},
		Weeks:   "1",
	}

	grand := funding.GrandTotal([]funding.AgreementLineItem{a, b})
	assert.True(t, grand.Equal(funding.LineItemTotal(a).Add(funding.LineItemTotal(b))))
	assertDecimal(t, "0.13", grand)
	assert.True(t, funding.GrandTotal([]funding.AgreementLineItem{b, a}).Equal(grand))
}

func TestGrandTotal_Empty(t *testing.T) {
	assert.True(t, funding.GrandTotal(nil).IsZero())
}

func TestLineTotals_SumMatchesPeriods(t *testing.T) {
	item := funding.AgreementLineItem{
		Saturday: funding.PeriodRate{HoursPerWeek: "3", UnitRate: "10"},
		Sunday:   funding.PeriodRate{HoursPerWeek: "1", UnitRate: "20"},
		Weeks:    "2",
	}
	totals := funding.LineTotalsFor(item)
	assertDecimal(t, "100", totals.Sum())
	assert.Equal(t, item.Saturday, item.Period(funding.PeriodSaturday))
	assert.Equal(t, funding.PeriodRate{}, item.Period("unknown"))
}

func TestFormatCurrency(t *testing.T) {
	tests := map[string]string{
		"0":           "$0.00",
		"5":           "$5.00",
		"2600":        "$2,600.00",
		"1234567.891": "$1,234,567.89",
		"999.995":     "$1,000.00",
		"-12.5":       "-$12.50",
		"-0.001":      "$0.00",
		"100000":      "$100,000.00",
	}
	for in, want := range tests {
		assert.Equal(t, want, funding.FormatCurrency(dec(in)), "input %s", in)
	}
}
