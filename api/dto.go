/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the funding and ledger models from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Request amounts decode into decimal.Decimal, which accepts both 65.5 and
  "65.50". Response amounts are strings with two decimals, next to a
  *_formatted currency string where a document would print them.

TIMESTAMPS:
  RFC 3339 ("2025-03-03T22:00:00+11:00"), or a local wall-clock time
  ("2025-03-03T22:00") interpreted in the server's configured time zone.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/pricing.go: PricingFile and Amount
*/
package api

import (
	"github.com/carelink/funding-engine/factory"
	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFT PRICING
// =============================================================================

// ClassifyRequest is the body of POST /api/shifts/classify.
type ClassifyRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// ClassifyResponse reports the shift category and its length.
type ClassifyResponse struct {
	ShiftType string `json:"shift_type"`
	Hours     string `json:"hours"`
}

// QuoteRequest prices one shift. With ClientID set the quote is also
// checked against that client's current budget.
type QuoteRequest struct {
	Start      string                               `json:"start"`
	End        string                               `json:"end"`
	Ratio      string                               `json:"ratio"`
	Category   string                               `json:"category"`
	CustomRate *decimal.Decimal                     `json:"custom_rate,omitempty"`
	Rates      map[string]map[string]factory.Amount `json:"rates,omitempty"`
	ClientID   string                               `json:"client_id,omitempty"`
}

// DeductionDTO is a priced shift.
type DeductionDTO struct {
	ShiftType        string `json:"shift_type"`
	Hours            string `json:"hours"`
	Ratio            string `json:"ratio"`
	Rate             string `json:"rate"`
	RateSource       string `json:"rate_source"`
	RatioMultiplier  string `json:"ratio_multiplier"`
	Amount           string `json:"amount"`
	AmountFormatted  string `json:"amount_formatted"`
	Category         string `json:"category"`
	FlatRate         bool   `json:"flat_rate"`
	UsedDefaultRatio bool   `json:"used_default_ratio"`
}

// ValidationDTO is the budget check of a quote.
type ValidationDTO struct {
	IsValid            bool   `json:"is_valid"`
	RatioAllowed       bool   `json:"ratio_allowed"`
	Remaining          string `json:"remaining"`
	RemainingFormatted string `json:"remaining_formatted"`
	Message            string `json:"message,omitempty"`
}

// QuoteResponse is the answer to POST /api/shifts/quote.
type QuoteResponse struct {
	Deduction  DeductionDTO   `json:"deduction"`
	Validation *ValidationDTO `json:"validation,omitempty"`
}

// SeriesRequest prices a recurring shift. Start and End describe the
// first occurrence.
type SeriesRequest struct {
	Start      string           `json:"start"`
	End        string           `json:"end"`
	Weekdays   []string         `json:"weekdays,omitempty"` // "monday".."sunday"
	EveryWeeks int              `json:"every_weeks,omitempty"`
	Until      string           `json:"until,omitempty"` // 2006-01-02, inclusive
	Count      int              `json:"count,omitempty"`
	Ratio      string           `json:"ratio"`
	Category   string           `json:"category"`
	CustomRate *decimal.Decimal `json:"custom_rate,omitempty"`
}

// OccurrenceDTO is one generated shift of a series.
type OccurrenceDTO struct {
	Start     string       `json:"start"`
	End       string       `json:"end"`
	Deduction DeductionDTO `json:"deduction"`
}

// SeriesResponse totals a recurring shift.
type SeriesResponse struct {
	Occurrences    []OccurrenceDTO `json:"occurrences"`
	Count          int             `json:"count"`
	Hours          string          `json:"hours"`
	Total          string          `json:"total"`
	TotalFormatted string          `json:"total_formatted"`
	Degraded       int             `json:"degraded"`
}

// =============================================================================
// SERVICE AGREEMENTS
// =============================================================================

// PeriodRateDTO holds the raw figures of one agreement period.
type PeriodRateDTO struct {
	HoursPerWeek string `json:"hours_per_week"`
	UnitRate     string `json:"unit_rate"`
}

// AgreementLineItemDTO is one support item. Periods is keyed by
// day, evening, active_night, sleepover, saturday, sunday, public_holiday.
type AgreementLineItemDTO struct {
	ID                string                   `json:"id"`
	SupportItemNumber string                   `json:"support_item_number"`
	Description       string                   `json:"description"`
	Weeks             string                   `json:"weeks"`
	Periods           map[string]PeriodRateDTO `json:"periods"`
}

// AgreementTotalsRequest is the body of POST /api/agreements/totals.
type AgreementTotalsRequest struct {
	Items []AgreementLineItemDTO `json:"items"`
}

// LineTotalsDTO carries raw and formatted totals side by side.
type LineTotalsDTO struct {
	ID                string            `json:"id"`
	SupportItemNumber string            `json:"support_item_number"`
	Description       string            `json:"description"`
	Periods           map[string]string `json:"periods"`
	PeriodsFormatted  map[string]string `json:"periods_formatted"`
	Total             string            `json:"total"`
	TotalFormatted    string            `json:"total_formatted"`
}

// AgreementTotalsResponse totals an agreement.
type AgreementTotalsResponse struct {
	Lines               []LineTotalsDTO `json:"lines"`
	GrandTotal          string          `json:"grand_total"`
	GrandTotalFormatted string          `json:"grand_total_formatted"`
}

// =============================================================================
// PLANS AND BUDGETS
// =============================================================================

// AllocationDTO is one funded category of a plan.
type AllocationDTO struct {
	Total         decimal.Decimal `json:"total"`
	AllowedRatios []string        `json:"allowed_ratios"`
}

// PlanDTO is a client's funding plan, used for both PUT and GET.
type PlanDTO struct {
	ClientID   string                   `json:"client_id"`
	Name       string                   `json:"name"`
	Start      string                   `json:"start,omitempty"` // 2006-01-02
	End        string                   `json:"end,omitempty"`
	Categories map[string]AllocationDTO `json:"categories"`
	UpdatedAt  string                   `json:"updated_at,omitempty"`
}

// CategoryBudgetDTO is one bucket of a budget snapshot.
type CategoryBudgetDTO struct {
	Category           string   `json:"category"`
	Total              string   `json:"total"`
	Remaining          string   `json:"remaining"`
	Spent              string   `json:"spent"`
	RemainingFormatted string   `json:"remaining_formatted"`
	AllowedRatios      []string `json:"allowed_ratios"`
}

// BudgetDTO is GET /api/clients/{id}/budget.
type BudgetDTO struct {
	ClientID   string              `json:"client_id"`
	Categories []CategoryBudgetDTO `json:"categories"`
}

// =============================================================================
// LEDGER
// =============================================================================

// DeductionRequest commits a shift against a client's budget.
type DeductionRequest struct {
	ShiftID        string           `json:"shift_id"`
	Start          string           `json:"start"`
	End            string           `json:"end"`
	Ratio          string           `json:"ratio"`
	Category       string           `json:"category"`
	CustomRate     *decimal.Decimal `json:"custom_rate,omitempty"`
	IdempotencyKey string           `json:"idempotency_key,omitempty"`
	Reason         string           `json:"reason,omitempty"`
	CreatedBy      string           `json:"created_by,omitempty"`
}

// AdjustmentRequest is a manual correction. Positive deltas add funding.
type AdjustmentRequest struct {
	Category  string          `json:"category"`
	Delta     decimal.Decimal `json:"delta"`
	Reason    string          `json:"reason"`
	CreatedBy string          `json:"created_by,omitempty"`
}

// ReverseRequest is the optional body of DELETE /api/entries/{id}.
type ReverseRequest struct {
	Reason    string `json:"reason"`
	CreatedBy string `json:"created_by,omitempty"`
}

// EntryDTO represents a ledger entry in API responses.
type EntryDTO struct {
	ID             string `json:"id"`
	ClientID       string `json:"client_id"`
	Category       string `json:"category"`
	Type           string `json:"type"`
	Delta          string `json:"delta"`
	EffectiveAt    string `json:"effective_at"`
	ShiftType      string `json:"shift_type,omitempty"`
	Ratio          string `json:"ratio,omitempty"`
	Hours          string `json:"hours,omitempty"`
	Rate           string `json:"rate,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`
	CreatedAt      string `json:"created_at"`
	Reversed       bool   `json:"reversed,omitempty"`
}

// CommitResponse is returned by POST /api/clients/{id}/deductions.
type CommitResponse struct {
	Entry     EntryDTO     `json:"entry"`
	Deduction DeductionDTO `json:"deduction"`
	Budget    BudgetDTO    `json:"budget"`
}

// =============================================================================
// SCENARIOS, ALERTS, ERRORS
// =============================================================================

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the body of POST /api/scenarios/load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// AlertDTO is a low-balance warning raised by the budget monitor.
type AlertDTO struct {
	ClientID  string `json:"client_id"`
	Category  string `json:"category"`
	Total     string `json:"total"`
	Remaining string `json:"remaining"`
	Percent   string `json:"percent_remaining"`
	Level     string `json:"level"`
	RaisedAt  string `json:"raised_at"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toDeductionDTO(d funding.Deduction) DeductionDTO {
	return DeductionDTO{
		ShiftType:        string(d.ShiftType),
		Hours:            d.Hours.StringFixed(2),
		Ratio:            string(d.Ratio),
		Rate:             d.Rate.StringFixed(2),
		RateSource:       string(d.RateSource),
		RatioMultiplier:  d.RatioMultiplier.String(),
		Amount:           d.Amount.StringFixed(2),
		AmountFormatted:  funding.FormatCurrency(d.Amount),
		Category:         string(d.Category),
		FlatRate:         d.FlatRate,
		UsedDefaultRatio: d.UsedDefaultRatio,
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:             string(e.ID),
		ClientID:       string(e.ClientID),
		Category:       string(e.Category),
		Type:           string(e.Type),
		Delta:          e.Delta.StringFixed(2),
		EffectiveAt:    e.EffectiveAt.Format(timeFormat),
		ShiftType:      string(e.ShiftType),
		Ratio:          string(e.Ratio),
		ReferenceID:    e.ReferenceID,
		Reason:         e.Reason,
		IdempotencyKey: e.IdempotencyKey,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt.Format(timeFormat),
	}
	if e.Type != ledger.EntryAdjustment {
		dto.Hours = e.Hours.StringFixed(2)
		dto.Rate = e.Rate.StringFixed(2)
	}
	return dto
}

func toBudgetDTO(b funding.Budget) BudgetDTO {
	dto := BudgetDTO{ClientID: b.ClientID, Categories: []CategoryBudgetDTO{}}
	for _, cat := range funding.FundingCategories {
		cb, _ := b.For(cat)
		dto.Categories = append(dto.Categories, CategoryBudgetDTO{
			Category:           string(cat),
			Total:              cb.Total.StringFixed(2),
			Remaining:          cb.Remaining.StringFixed(2),
			Spent:              cb.Total.Sub(cb.Remaining).StringFixed(2),
			RemainingFormatted: funding.FormatCurrency(cb.Remaining),
			AllowedRatios:      ratioStrings(cb.AllowedRatios),
		})
	}
	return dto
}

func toPlanDTO(p ledger.Plan) PlanDTO {
	dto := PlanDTO{
		ClientID:   string(p.ClientID),
		Name:       p.Name,
		Categories: make(map[string]AllocationDTO, len(p.Categories)),
	}
	if !p.Start.IsZero() {
		dto.Start = p.Start.Format(dateFormat)
	}
	if !p.End.IsZero() {
		dto.End = p.End.Format(dateFormat)
	}
	if !p.UpdatedAt.IsZero() {
		dto.UpdatedAt = p.UpdatedAt.Format(timeFormat)
	}
	for cat, a := range p.Categories {
		dto.Categories[string(cat)] = AllocationDTO{
			Total:         a.Total,
			AllowedRatios: ratioStrings(a.AllowedRatios),
		}
	}
	return dto
}

func ratioStrings(ratios []funding.StaffRatio) []string {
	out := make([]string, len(ratios))
	for i, r := range ratios {
		out[i] = string(r)
	}
	return out
}
