/*
scenarios.go - Demo scenarios for testing and demonstrations

PURPOSE:

	Provides pre-built simulations over the preset tables. Each scenario
	stores its preset table (so it shows up even when a catalog file
	replaced the presets) and runs one simulation that demonstrates a
	specific behavior of the engine.

AVAILABLE SCENARIOS:

	auto-standard:       Standard vehicle plan, bid split between installment and term
	superlight-reduced:  Reduced 50% plan where the reduced credit is viable
	superlight-full:     Reduced 50% plan where the bid forces the full credit
	imovel-light:        Real-estate 75% plan with embedded bid and compulsory insurance
	moto-term-only:      Whole bid used to shorten the term

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "superlight-reduced"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description, table
 2. Add the request to 'scenarioRequests'

SEE ALSO:
  - handlers.go: Simulation handlers
  - tables/presets.go: Preset table definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/simulation"
	"github.com/warp/quota-simulator/tables"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "auto-standard",
		Name:        "Auto Standard",
		Description: "R$ 100.000 over 60 months, pocket bid split 50/50 between installment and term",
		TableID:     string(tables.AutoStandardID),
	},
	{
		ID:          "superlight-reduced",
		Name:        "Super Light, reduced credit",
		Description: "Reduced 50% plan with a small bid: the reduced credit stays available",
		TableID:     string(tables.AutoSuperLightID),
	},
	{
		ID:          "superlight-full",
		Name:        "Super Light, full credit",
		Description: "Reduced 50% plan where the bid reaches the reduced credit, so only the full credit is offered",
		TableID:     string(tables.AutoSuperLightID),
	},
	{
		ID:          "imovel-light",
		Name:        "Imovel Light",
		Description: "Real-estate 75% plan with embedded bid and compulsory insurance",
		TableID:     string(tables.ImovelLightID),
	},
	{
		ID:          "moto-term-only",
		Name:        "Moto, term only",
		Description: "Whole bid used to shorten the term, installment unchanged",
		TableID:     string(tables.MotoID),
	},
}

var scenarioRequests = map[string]simulation.Request{
	"auto-standard": {
		TableID:                  tables.AutoStandardID,
		Credit:                   decimal.NewFromInt(100000),
		Term:                     60,
		PocketBid:                decimal.NewFromInt(15000),
		AdhesionRate:             decimal.RequireFromString("0.01"),
		InstallmentAllocationPct: decimal.NewFromInt(50),
		ContemplationMonth:       12,
	},
	"superlight-reduced": {
		TableID:                  tables.AutoSuperLightID,
		Credit:                   decimal.NewFromInt(100000),
		Term:                     80,
		Insurance:                true,
		PocketBid:                decimal.NewFromInt(10000),
		EmbeddedBidRatio:         decimal.RequireFromString("0.10"),
		InstallmentAllocationPct: decimal.NewFromInt(100),
		ContemplationMonth:       6,
	},
	"superlight-full": {
		TableID:                  tables.AutoSuperLightID,
		Credit:                   decimal.NewFromInt(100000),
		Term:                     80,
		PocketBid:                decimal.NewFromInt(30000),
		EmbeddedBidRatio:         decimal.RequireFromString("0.25"),
		InstallmentAllocationPct: decimal.NewFromInt(50),
		ContemplationMonth:       6,
	},
	"imovel-light": {
		TableID:                  tables.ImovelLightID,
		Credit:                   decimal.NewFromInt(300000),
		Term:                     200,
		PocketBid:                decimal.NewFromInt(60000),
		EmbeddedBidRatio:         decimal.RequireFromString("0.30"),
		AdhesionRate:             decimal.RequireFromString("0.02"),
		InstallmentAllocationPct: decimal.NewFromInt(30),
		ContemplationMonth:       24,
	},
	"moto-term-only": {
		TableID:                  tables.MotoID,
		Credit:                   decimal.NewFromInt(20000),
		Term:                     48,
		PocketBid:                decimal.NewFromInt(12000),
		InstallmentAllocationPct: decimal.Zero,
		ContemplationMonth:       3,
	},
}

var presetJSON = map[quota.TableID]func() string{
	tables.AutoStandardID:   tables.AutoStandardJSON,
	tables.AutoSuperLightID: tables.AutoSuperLightJSON,
	tables.ImovelLightID:    tables.ImovelLightJSON,
	tables.MotoID:           tables.MotoJSON,
	tables.ServicosID:       tables.ServicosJSON,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario, if any.
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

// LoadScenario stores the scenario's preset table and runs its simulation.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	simReq, ok := scenarioRequests[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	rec, err := h.runScenario(r.Context(), simReq)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.mu.Lock()
	h.currentScenario = req.ScenarioID
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, LoadScenarioResponse{
		Status:     "loaded",
		Scenario:   req.ScenarioID,
		Simulation: toSimulationDTO(*rec),
	})
}

// =============================================================================
// SCENARIO LOADER
// =============================================================================

func (h *Handler) runScenario(ctx context.Context, req simulation.Request) (*simulation.Record, error) {
	js, ok := presetJSON[req.TableID]
	if !ok {
		return nil, fmt.Errorf("no preset for table %s", req.TableID)
	}
	t, err := h.TableFactory.ParseTable(js())
	if err != nil {
		return nil, fmt.Errorf("parse preset %s: %w", req.TableID, err)
	}
	if err := h.Service.SaveTable(ctx, t); err != nil {
		return nil, err
	}
	return h.Service.Simulate(ctx, req)
}
