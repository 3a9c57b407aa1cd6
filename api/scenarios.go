/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	plans and committed shifts for demos and frontend development.

AVAILABLE SCENARIOS:

	sil-resident:     One client in supported independent living, all three
	                  categories funded, a week of mixed shifts committed
	shared-house:     Three housemates on 1:3 support with shared sleepovers
	nearly-exhausted: Community access almost spent, raises a monitor alert

HOW SCENARIOS WORK:
 1. Reset the store (clear plans and entries)
 2. Save each client's plan
 3. Price shifts with the handler's calculator
 4. Commit them through the ledger, exactly like the API does

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "shared-house"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Pricing and ledger endpoints
  - monitor.go: Low-balance alerts
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/carelink/funding-engine/funding"
	"github.com/carelink/funding-engine/ledger"
	"github.com/shopspring/decimal"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "sil-resident",
		Name:        "SIL Resident",
		Description: "Single client with SIL, community access and capacity building funding",
	},
	{
		ID:          "shared-house",
		Name:        "Shared House",
		Description: "Three housemates on 1:3 support with shared sleepovers",
	},
	{
		ID:          "nearly-exhausted",
		Name:        "Nearly Exhausted",
		Description: "Community access funding almost spent",
	},
}

// resetter is implemented by stores that can be wiped for demos.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "sil-resident":
		load = h.loadSILResidentScenario
	case "shared-house":
		load = h.loadSharedHouseScenario
	case "nearly-exhausted":
		load = h.loadNearlyExhaustedScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	store, ok := h.Ledger.Backend.(resetter)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store does not support reset", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	if h.Monitor != nil {
		h.Monitor.RunNow(ctx)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// demoShift is a shift committed by a scenario loader.
type demoShift struct {
	id       string
	day      int // day of March 2025
	hour     int
	length   time.Duration
	ratio    funding.StaffRatio
	category funding.FundingCategory
}

func (h *Handler) loadSILResidentScenario(ctx context.Context) error {
	client := ledger.ClientID("client-ava")
	if err := h.savePlan(ctx, client, "Ava - 2025 plan", map[funding.FundingCategory]ledger.Allocation{
		funding.CategorySIL: {
			Total:         decimal.RequireFromString("120000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1, funding.Ratio1to2, funding.Ratio1to3},
		},
		funding.CategoryCommunityAccess: {
			Total:         decimal.RequireFromString("15000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1, funding.Ratio1to2},
		},
		funding.CategoryCapacityBuilding: {
			Total:         decimal.RequireFromString("5000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1},
		},
	}); err != nil {
		return err
	}

	return h.commitShifts(ctx, client, []demoShift{
		{"ava-mon-day", 3, 7, 6 * time.Hour, funding.Ratio1to1, funding.CategorySIL},
		{"ava-mon-eve", 3, 20, 3 * time.Hour, funding.Ratio1to1, funding.CategorySIL},
		{"ava-mon-sleep", 3, 23, 8 * time.Hour, funding.Ratio1to1, funding.CategorySIL},
		{"ava-tue-outing", 4, 10, 4 * time.Hour, funding.Ratio1to2, funding.CategoryCommunityAccess},
		{"ava-wed-night", 5, 1, 5 * time.Hour, funding.Ratio1to1, funding.CategorySIL},
		{"ava-thu-ot", 6, 13, 2 * time.Hour, funding.Ratio1to1, funding.CategoryCapacityBuilding},
	})
}

func (h *Handler) loadSharedHouseScenario(ctx context.Context) error {
	for _, name := range []string{"ben", "chloe", "dev"} {
		client := ledger.ClientID("client-" + name)
		if err := h.savePlan(ctx, client, fmt.Sprintf("%s - shared house", name), map[funding.FundingCategory]ledger.Allocation{
			funding.CategorySIL: {
				Total:         decimal.RequireFromString("85000.00"),
				AllowedRatios: []funding.StaffRatio{funding.Ratio1to3},
			},
			funding.CategoryCommunityAccess: {
				Total:         decimal.RequireFromString("8000.00"),
				AllowedRatios: []funding.StaffRatio{funding.Ratio1to3, funding.Ratio1to1},
			},
		}); err != nil {
			return err
		}

		var shifts []demoShift
		for day := 3; day <= 9; day++ {
			shifts = append(shifts,
				demoShift{fmt.Sprintf("%s-%d-day", name, day), day, 10, 8 * time.Hour, funding.Ratio1to3, funding.CategorySIL},
				demoShift{fmt.Sprintf("%s-%d-sleep", name, day), day, 22, 9 * time.Hour, funding.Ratio1to3, funding.CategorySIL},
			)
		}
		shifts = append(shifts, demoShift{name + "-sat-outing", 8, 10, 5 * time.Hour, funding.Ratio1to3, funding.CategoryCommunityAccess})

		if err := h.commitShifts(ctx, client, shifts); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadNearlyExhaustedScenario(ctx context.Context) error {
	client := ledger.ClientID("client-eli")
	if err := h.savePlan(ctx, client, "Eli - plan ending soon", map[funding.FundingCategory]ledger.Allocation{
		funding.CategorySIL: {
			Total:         decimal.RequireFromString("40000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1},
		},
		funding.CategoryCommunityAccess: {
			Total:         decimal.RequireFromString("2000.00"),
			AllowedRatios: []funding.StaffRatio{funding.Ratio1to1},
		},
	}); err != nil {
		return err
	}

	// 6 x 4h day shifts at $65.00 = $1,560.00, leaving $440.00 (22%)
	var shifts []demoShift
	for day := 3; day <= 8; day++ {
		shifts = append(shifts, demoShift{fmt.Sprintf("eli-%d-outing", day), day, 10, 4 * time.Hour, funding.Ratio1to1, funding.CategoryCommunityAccess})
	}
	if err := h.commitShifts(ctx, client, shifts); err != nil {
		return err
	}

	// A late invoice correction takes it under 10%
	_, err := h.Ledger.Adjust(ctx, client, funding.CategoryCommunityAccess,
		decimal.RequireFromString("-300.00"), "Late invoice from February", "scenario")
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) savePlan(ctx context.Context, client ledger.ClientID, name string, categories map[funding.FundingCategory]ledger.Allocation) error {
	return h.Ledger.Backend.SavePlan(ctx, ledger.Plan{
		ClientID:   client,
		Name:       name,
		Start:      time.Date(2025, time.January, 1, 0, 0, 0, 0, h.Location),
		End:        time.Date(2025, time.December, 31, 0, 0, 0, 0, h.Location),
		Categories: categories,
		UpdatedAt:  h.Ledger.Now(),
	})
}

func (h *Handler) commitShifts(ctx context.Context, client ledger.ClientID, shifts []demoShift) error {
	for _, s := range shifts {
		start := time.Date(2025, time.March, s.day, s.hour, 0, 0, 0, h.Location)
		d := h.Calculator.Calculate(funding.ShiftInterval{Start: start, End: start.Add(s.length)},
			s.ratio, s.category, nil, nil)
		_, err := h.Ledger.Commit(ctx, client, d, ledger.CommitOptions{
			ReferenceID: s.id,
			EffectiveAt: start,
			CreatedBy:   "scenario",
		})
		if err != nil && !errors.Is(err, ledger.ErrDuplicateIdempotencyKey) {
			return fmt.Errorf("commit %s: %w", s.id, err)
		}
	}
	return nil
}
