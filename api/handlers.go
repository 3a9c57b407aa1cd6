/*
handlers.go - HTTP API handlers for the funding engine

PURPOSE:
  Exposes shift pricing, agreement totals and the budget ledger via REST.
  Handles HTTP request/response, JSON serialization, and delegates to the
  funding and ledger packages.

ENDPOINTS:
  Pricing:
    GET    /api/pricing                     Current pricing configuration
    POST   /api/shifts/classify             Shift category and hours
    POST   /api/shifts/quote                Price one shift (optional budget check)
    POST   /api/shifts/series               Price a recurring shift
    POST   /api/agreements/totals           Service agreement line totals

  Clients:
    GET    /api/clients/{id}/plan           Funding plan
    PUT    /api/clients/{id}/plan           Create or replace plan
    GET    /api/clients/{id}/budget         Remaining funding per category
    GET    /api/clients/{id}/deductions     Ledger entries
    POST   /api/clients/{id}/deductions     Commit a shift
    POST   /api/clients/{id}/adjustments    Manual correction
    DELETE /api/entries/{id}                Reverse an entry

  Scenarios / Alerts:
    GET    /api/scenarios                   List demo scenarios
    GET    /api/scenarios/current           Currently loaded scenario
    POST   /api/scenarios/load              Load a demo scenario
    GET    /api/alerts                      Low-balance alerts
    GET    /healthz                         Liveness

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (timestamps, categories, ratios)
  3. Call funding (pure pricing) or ledger (commit)
  4. Serialize response
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, unknown category
  - 404: Plan or entry not found
  - 409: Duplicate shift, entry already reversed
  - 422: Insufficient funds, ratio not allowed by the plan
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Put the service behind a gateway
  that handles both.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/carelink/funding-engine/factory"
	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	timeFormat = time.RFC3339
	dateFormat = "2006-01-02"
)

// localLayouts are accepted for timestamps without an offset.
var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04"}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger     *ledger.Ledger
	Calculator *funding.Calculator
	Location   *time.Location
	Logger     *zap.Logger

	// Monitor is optional; without it /api/alerts returns an empty list.
	Monitor *BudgetMonitor

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. A nil location means UTC and a nil logger
// disables logging.
func NewHandler(l *ledger.Ledger, pricing funding.Pricing, loc *time.Location, logger *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Ledger:     l,
		Calculator: funding.NewCalculator(pricing),
		Location:   loc,
		Logger:     logger,
	}
}

// =============================================================================
// PRICING HANDLERS
// =============================================================================

// GetPricing returns the pricing configuration in file form.
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, factory.ToFile(h.Calculator.Pricing))
}

// ClassifyShift returns the category and length of a shift.
func (h *Handler) ClassifyShift(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	interval, err := h.parseInterval(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift times", err)
		return
	}

	writeJSON(w, http.StatusOK, ClassifyResponse{
		ShiftType: string(interval.Category()),
		Hours:     interval.Hours().StringFixed(2),
	})
}

// QuoteShift prices one shift. With client_id it also reports whether the
// client's budget covers it; nothing is committed.
func (h *Handler) QuoteShift(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	interval, err := h.parseInterval(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift times", err)
		return
	}
	if err := checkCustomRate(req.CustomRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid custom rate", err)
		return
	}

	var table funding.RateTable
	if req.Rates != nil {
		table, err = factory.ParseRateTable(req.Rates)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid rate table", err)
			return
		}
	}

	d := h.Calculator.Calculate(interval, funding.NormalizeRatio(req.Ratio),
		funding.FundingCategory(req.Category), req.CustomRate, table)
	h.logDegraded(d, req.ClientID)

	resp := QuoteResponse{Deduction: toDeductionDTO(d)}

	if req.ClientID != "" {
		budget, err := h.Ledger.Snapshot(r.Context(), ledger.ClientID(req.ClientID))
		if err != nil {
			writeLedgerError(w, "Failed to load budget", err)
			return
		}
		res := funding.Validate(budget, d)
		resp.Validation = &ValidationDTO{
			IsValid:            res.IsValid,
			RatioAllowed:       funding.IsRatioAllowed(budget, d.Category, d.Ratio),
			Remaining:          res.Remaining.StringFixed(2),
			RemainingFormatted: funding.FormatCurrency(res.Remaining),
			Message:            res.Message,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// PriceSeries expands a recurring shift and prices every occurrence.
func (h *Handler) PriceSeries(w http.ResponseWriter, r *http.Request) {
	var req SeriesRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	first, err := h.parseInterval(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift times", err)
		return
	}
	length := first.End.Sub(first.Start)
	if length <= 0 {
		writeError(w, http.StatusBadRequest, "Shift end must be after start", nil)
		return
	}

	if req.EveryWeeks < 0 || req.EveryWeeks > funding.MaxEveryWeeks {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("every_weeks must be at most %d", funding.MaxEveryWeeks), nil)
		return
	}
	if err := checkCustomRate(req.CustomRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid custom rate", err)
		return
	}

	weekdays, err := parseWeekdays(req.Weekdays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid weekdays", err)
		return
	}

	rec := funding.Recurrence{
		FirstStart: first.Start,
		Length:     length,
		Weekdays:   weekdays,
		EveryWeeks: req.EveryWeeks,
		Count:      req.Count,
	}
	if req.Until != "" {
		rec.Until, err = time.ParseInLocation(dateFormat, req.Until, first.Start.Location())
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid until date", err)
			return
		}
	}

	intervals := rec.Occurrences()
	q := h.Calculator.CalculateSeries(intervals, funding.NormalizeRatio(req.Ratio),
		funding.FundingCategory(req.Category), req.CustomRate, nil)
	if q.Degraded > 0 {
		h.Logger.Warn("series priced at full cost for unknown ratio",
			zap.String("ratio", req.Ratio),
			zap.Int("occurrences", q.Degraded))
	}

	resp := SeriesResponse{
		Occurrences:    make([]OccurrenceDTO, len(intervals)),
		Count:          len(intervals),
		Hours:          q.Hours.StringFixed(2),
		Total:          q.Total.StringFixed(2),
		TotalFormatted: funding.FormatCurrency(q.Total),
		Degraded:       q.Degraded,
	}
	for i, iv := range intervals {
		resp.Occurrences[i] = OccurrenceDTO{
			Start:     iv.Start.Format(timeFormat),
			End:       iv.End.Format(timeFormat),
			Deduction: toDeductionDTO(q.Deductions[i]),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// AgreementTotals computes exact line and grand totals of an agreement.
func (h *Handler) AgreementTotals(w http.ResponseWriter, r *http.Request) {
	var req AgreementTotalsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	items := make([]funding.AgreementLineItem, 0, len(req.Items))
	for _, dto := range req.Items {
		item, err := toLineItem(dto)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid line item %q", dto.ID), err)
			return
		}
		items = append(items, item)
	}

	resp := AgreementTotalsResponse{Lines: make([]LineTotalsDTO, 0, len(items))}
	for _, item := range items {
		totals := funding.LineTotalsFor(item)
		line := LineTotalsDTO{
			ID:                item.ID,
			SupportItemNumber: item.SupportItemNumber,
			Description:       item.Description,
			Periods:           make(map[string]string, len(funding.ServicePeriods)),
			PeriodsFormatted:  make(map[string]string, len(funding.ServicePeriods)),
			Total:             totals.Sum().StringFixed(2),
			TotalFormatted:    funding.FormatCurrency(totals.Sum()),
		}
		for _, p := range funding.ServicePeriods {
			line.Periods[string(p)] = totals.Get(p).StringFixed(2)
			line.PeriodsFormatted[string(p)] = funding.FormatCurrency(totals.Get(p))
		}
		resp.Lines = append(resp.Lines, line)
	}

	grand := funding.GrandTotal(items)
	resp.GrandTotal = grand.StringFixed(2)
	resp.GrandTotalFormatted = funding.FormatCurrency(grand)

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// PLAN AND BUDGET HANDLERS
// =============================================================================

// GetPlan returns a client's funding plan.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Ledger.Plan(r.Context(), clientParam(r))
	if err != nil {
		writeLedgerError(w, "Failed to load plan", err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanDTO(*plan))
}

// PutPlan creates or replaces a client's funding plan. Existing ledger
// entries are kept; remaining balances are recomputed from the new totals.
func (h *Handler) PutPlan(w http.ResponseWriter, r *http.Request) {
	var req PlanDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	req.ClientID = string(clientParam(r))
	plan, err := h.fromPlanDTO(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}
	plan.UpdatedAt = h.Ledger.Now()

	if err := h.Ledger.Backend.SavePlan(r.Context(), plan); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}

	h.Logger.Info("plan saved",
		zap.String("client_id", string(plan.ClientID)),
		zap.Int("categories", len(plan.Categories)))
	writeJSON(w, http.StatusOK, toPlanDTO(plan))
}

// GetBudget returns the client's remaining funding per category.
func (h *Handler) GetBudget(w http.ResponseWriter, r *http.Request) {
	budget, err := h.Ledger.Snapshot(r.Context(), clientParam(r))
	if err != nil {
		writeLedgerError(w, "Failed to load budget", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetDTO(budget))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListEntries returns the client's ledger, oldest first.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientID := clientParam(r)

	if _, err := h.Ledger.Plan(ctx, clientID); err != nil {
		writeLedgerError(w, "Failed to load plan", err)
		return
	}
	entries, err := h.Ledger.Entries(ctx, clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load entries", err)
		return
	}

	reversed := make(map[string]bool)
	for _, e := range entries {
		if e.Type == ledger.EntryReversal {
			reversed[e.ReferenceID] = true
		}
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
		dtos[i].Reversed = reversed[string(e.ID)]
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CommitDeduction prices a completed shift and commits it to the ledger.
func (h *Handler) CommitDeduction(w http.ResponseWriter, r *http.Request) {
	var req DeductionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	interval, err := h.parseInterval(req.Start, req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid shift times", err)
		return
	}

	if err := checkCustomRate(req.CustomRate); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid custom rate", err)
		return
	}

	ctx := r.Context()
	clientID := clientParam(r)
	d := h.Calculator.Calculate(interval, funding.NormalizeRatio(req.Ratio),
		funding.FundingCategory(req.Category), req.CustomRate, nil)

	entry, err := h.Ledger.Commit(ctx, clientID, d, ledger.CommitOptions{
		ReferenceID:    req.ShiftID,
		IdempotencyKey: req.IdempotencyKey,
		EffectiveAt:    interval.Start,
		Reason:         req.Reason,
		CreatedBy:      req.CreatedBy,
	})
	if err != nil {
		writeLedgerError(w, "Failed to commit deduction", err)
		return
	}

	budget, err := h.Ledger.Snapshot(ctx, clientID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load budget", err)
		return
	}

	writeJSON(w, http.StatusCreated, CommitResponse{
		Entry:     toEntryDTO(entry),
		Deduction: toDeductionDTO(d),
		Budget:    toBudgetDTO(budget),
	})
}

// CreateAdjustment appends a manual correction.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Delta.IsZero() {
		writeError(w, http.StatusBadRequest, "Delta must be non-zero", nil)
		return
	}
	if strings.TrimSpace(req.Reason) == "" {
		writeError(w, http.StatusBadRequest, "Reason is required", nil)
		return
	}

	entry, err := h.Ledger.Adjust(r.Context(), clientParam(r),
		funding.FundingCategory(req.Category), req.Delta, req.Reason, req.CreatedBy)
	if err != nil {
		writeLedgerError(w, "Failed to create adjustment", err)
		return
	}

	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// ReverseEntry cancels an entry by appending its reversal.
func (h *Handler) ReverseEntry(w http.ResponseWriter, r *http.Request) {
	var req ReverseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Reason == "" {
		req.Reason = "Cancelled"
	}

	reversal, err := h.Ledger.Reverse(r.Context(), ledger.EntryID(chi.URLParam(r, "id")), req.Reason, req.CreatedBy)
	if err != nil {
		writeLedgerError(w, "Failed to reverse entry", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "reversed",
		"entry_id":    reversal.ReferenceID,
		"reversal_id": string(reversal.ID),
		"amount":      reversal.Delta.StringFixed(2),
	})
}

// ListAlerts returns the budget monitor's latest low-balance alerts.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := []AlertDTO{}
	if h.Monitor != nil {
		for _, a := range h.Monitor.Alerts() {
			alerts = append(alerts, toAlertDTO(a))
		}
	}
	writeJSON(w, http.StatusOK, alerts)
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) logDegraded(d funding.Deduction, clientID string) {
	if !d.UsedDefaultRatio {
		return
	}
	h.Logger.Warn("shift priced at full cost for unknown ratio",
		zap.String("ratio", string(d.Ratio)),
		zap.String("client_id", clientID),
		zap.String("amount", d.Amount.StringFixed(2)))
}

// parseTimestamp accepts RFC 3339 or a local time in h.Location.
func (h *Handler) parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("timestamp is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, h.Location); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// checkCustomRate rejects negative overrides. Zero means "no override".
func checkCustomRate(rate *decimal.Decimal) error {
	if rate != nil && rate.IsNegative() {
		return fmt.Errorf("custom_rate must not be negative, got %s", rate.String())
	}
	return nil
}

func (h *Handler) parseInterval(start, end string) (funding.ShiftInterval, error) {
	s, err := h.parseTimestamp(start)
	if err != nil {
		return funding.ShiftInterval{}, fmt.Errorf("start: %w", err)
	}
	e, err := h.parseTimestamp(end)
	if err != nil {
		return funding.ShiftInterval{}, fmt.Errorf("end: %w", err)
	}
	return funding.ShiftInterval{Start: s, End: e}, nil
}

func (h *Handler) fromPlanDTO(dto PlanDTO) (ledger.Plan, error) {
	plan := ledger.Plan{
		ClientID:   ledger.ClientID(dto.ClientID),
		Name:       dto.Name,
		Categories: make(map[funding.FundingCategory]ledger.Allocation, len(dto.Categories)),
	}
	if len(dto.Categories) == 0 {
		return plan, errors.New("at least one funding category is required")
	}

	var err error
	if dto.Start != "" {
		if plan.Start, err = time.ParseInLocation(dateFormat, dto.Start, h.Location); err != nil {
			return plan, fmt.Errorf("start: %w", err)
		}
	}
	if dto.End != "" {
		if plan.End, err = time.ParseInLocation(dateFormat, dto.End, h.Location); err != nil {
			return plan, fmt.Errorf("end: %w", err)
		}
	}
	if !plan.Start.IsZero() && !plan.End.IsZero() && plan.End.Before(plan.Start) {
		return plan, errors.New("end is before start")
	}

	for key, a := range dto.Categories {
		cat := funding.FundingCategory(key)
		if !cat.Valid() {
			return plan, fmt.Errorf("%w: %q", ledger.ErrInvalidCategory, key)
		}
		if a.Total.IsNegative() {
			return plan, fmt.Errorf("%s: total must not be negative", key)
		}
		ratios := make([]funding.StaffRatio, 0, len(a.AllowedRatios))
		for _, r := range a.AllowedRatios {
			ratios = append(ratios, funding.NormalizeRatio(r))
		}
		plan.Categories[cat] = ledger.Allocation{Total: a.Total, AllowedRatios: ratios}
	}
	return plan, nil
}

func toLineItem(dto AgreementLineItemDTO) (funding.AgreementLineItem, error) {
	item := funding.AgreementLineItem{
		ID:                dto.ID,
		SupportItemNumber: dto.SupportItemNumber,
		Description:       dto.Description,
		Weeks:             dto.Weeks,
	}
	for key, pr := range dto.Periods {
		rate := funding.PeriodRate{HoursPerWeek: pr.HoursPerWeek, UnitRate: pr.UnitRate}
		switch funding.ServicePeriod(key) {
		case funding.PeriodDay:
			item.Day = rate
		case funding.PeriodEvening:
			item.Evening = rate
		case funding.PeriodActiveNight:
			item.ActiveNight = rate
		case funding.PeriodSleepover:
			item.Sleepover = rate
		case funding.PeriodSaturday:
			item.Saturday = rate
		case funding.PeriodSunday:
			item.Sunday = rate
		case funding.PeriodPublicHoliday:
			item.PublicHoliday = rate
		default:
			return item, fmt.Errorf("unknown period %q", key)
		}
	}
	return item, nil
}

func parseWeekdays(names []string) ([]time.Weekday, error) {
	days := make([]time.Weekday, 0, len(names))
	for _, name := range names {
		found := false
		for d := time.Sunday; d <= time.Saturday; d++ {
			full := strings.ToLower(d.String())
			if n := strings.ToLower(strings.TrimSpace(name)); n == full || n == full[:3] {
				days = append(days, d)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("unknown weekday %q", name)
		}
	}
	return days, nil
}

func clientParam(r *http.Request) ledger.ClientID {
	return ledger.ClientID(chi.URLParam(r, "id"))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps ledger errors to status codes. Insufficient funds
// carry the validator's message and figures.
func writeLedgerError(w http.ResponseWriter, message string, err error) {
	var fundsErr *ledger.InsufficientFundsError
	if errors.As(err, &fundsErr) {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: fundsErr.Message,
			Code:  "insufficient_funds",
			Details: map[string]string{
				"category":  string(fundsErr.Category),
				"remaining": fundsErr.Remaining.StringFixed(2),
				"requested": fundsErr.Requested.StringFixed(2),
				"shortfall": fundsErr.Shortfall().StringFixed(2),
			},
		})
		return
	}

	status := http.StatusInternalServerError
	code := ""
	switch {
	case ledger.IsNotFound(err):
		status, code = http.StatusNotFound, "not_found"
	case ledger.IsConflict(err):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, ledger.ErrRatioNotAllowed):
		status, code = http.StatusUnprocessableEntity, "ratio_not_allowed"
	case ledger.IsClientError(err):
		status, code = http.StatusBadRequest, "invalid_request"
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}
