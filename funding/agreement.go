package funding

import "github.com/shopspring/decimal"

// =============================================================================
// SERVICE AGREEMENT LINE ITEMS
// =============================================================================

// ServicePeriod is a pricing period of a service agreement line.
type ServicePeriod string

const (
	PeriodDay           ServicePeriod = "day"
	PeriodEvening       ServicePeriod = "evening"
	PeriodActiveNight   ServicePeriod = "active_night"
	PeriodSleepover     ServicePeriod = "sleepover"
	PeriodSaturday      ServicePeriod = "saturday"
	PeriodSunday        ServicePeriod = "sunday"
	PeriodPublicHoliday ServicePeriod = "public_holiday"
)

// ServicePeriods lists the periods in the order they print on agreements.
var ServicePeriods = []ServicePeriod{
	PeriodDay, PeriodEvening, PeriodActiveNight, PeriodSleepover,
	PeriodSaturday, PeriodSunday, PeriodPublicHoliday,
}

// PeriodRate holds the raw figures for one period. Values are kept as the
// strings the caller sent; blank or malformed values price as zero.
type PeriodRate struct {
	HoursPerWeek string
	UnitRate     string
}

// AgreementLineItem is one support item of a multi-week service agreement.
type AgreementLineItem struct {
	ID                string
	SupportItemNumber string
	Description       string

	Day           PeriodRate
	Evening       PeriodRate
	ActiveNight   PeriodRate
	Sleepover     PeriodRate
	Saturday      PeriodRate
	Sunday        PeriodRate
	PublicHoliday PeriodRate

	Weeks string
}

// Period returns the figures for p.
func (item AgreementLineItem) Period(p ServicePeriod) PeriodRate {
	switch p {
	case PeriodDay:
		return item.Day
	case PeriodEvening:
		return item.Evening
	case PeriodActiveNight:
		return item.ActiveNight
	case PeriodSleepover:
		return item.Sleepover
	case PeriodSaturday:
		return item.Saturday
	case PeriodSunday:
		return item.Sunday
	case PeriodPublicHoliday:
		return item.PublicHoliday
	}
	return PeriodRate{}
}

// LineTotals holds the amount of each period of one line item.
type LineTotals struct {
	Day           decimal.Decimal
	Evening       decimal.Decimal
	ActiveNight   decimal.Decimal
	Sleepover     decimal.Decimal
	Saturday      decimal.Decimal
	Sunday        decimal.Decimal
	PublicHoliday decimal.Decimal
}

// Get returns the amount for p.
func (t LineTotals) Get(p ServicePeriod) decimal.Decimal {
	switch p {
	case PeriodDay:
		return t.Day
	case PeriodEvening:
		return t.Evening
	case PeriodActiveNight:
		return t.ActiveNight
	case PeriodSleepover:
		return t.Sleepover
	case PeriodSaturday:
		return t.Saturday
	case PeriodSunday:
		return t.Sunday
	case PeriodPublicHoliday:
		return t.PublicHoliday
	}
	return decimal.Zero
}

// Sum adds the seven period amounts.
func (t LineTotals) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, p := range ServicePeriods {
		total = total.Add(t.Get(p))
	}
	return total
}

// PeriodAmount returns hours × rate × weeks for one period.
func PeriodAmount(pr PeriodRate, weeks decimal.Decimal) decimal.Decimal {
	return ParseDecimal(pr.HoursPerWeek).Mul(ParseDecimal(pr.UnitRate)).Mul(weeks)
}

// LineTotalsFor computes every period amount of item. No rounding is
// applied; the results are exact.
func LineTotalsFor(item AgreementLineItem) LineTotals {
	weeks := ParseDecimal(item.Weeks)
	return LineTotals{
		Day:           PeriodAmount(item.Day, weeks),
		Evening:       PeriodAmount(item.Evening, weeks),
		ActiveNight:   PeriodAmount(item.ActiveNight, weeks),
		Sleepover:     PeriodAmount(item.Sleepover, weeks),
		Saturday:      PeriodAmount(item.Saturday, weeks),
		Sunday:        PeriodAmount(item.Sunday, weeks),
		PublicHoliday: PeriodAmount(item.PublicHoliday, weeks),
	}
}

// LineItemTotal is the sum of the period amounts of item.
func LineItemTotal(item AgreementLineItem) decimal.Decimal {
	return LineTotalsFor(item).Sum()
}

// GrandTotal sums LineItemTotal across items.
func GrandTotal(items []AgreementLineItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(LineItemTotal(item))
	}
	return total
}
