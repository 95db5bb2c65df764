/*
handlers.go - HTTP API handlers for the quota simulator

PURPOSE:
  Exposes the simulation service via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the service.

ENDPOINTS:
  Tables:
    GET    /api/tables                         List tables (built-in and uploaded)
    POST   /api/tables                         Upsert a table from its JSON definition
    GET    /api/tables/{id}                    Table metadata and price grid

  Options:
    GET    /api/options                        Adhesion rates and projection constants

  Simulations:
    POST   /api/simulations/validate           Check a request without running it
    POST   /api/simulations                    Run and persist a simulation
    GET    /api/simulations                    History, newest first (?limit=)
    GET    /api/simulations/{id}               Stored simulation
    GET    /api/simulations/{id}/report.csv    CSV export
    GET    /api/simulations/{id}/report.md     Markdown export

  Scenarios:
    GET    /api/scenarios                      List demo scenarios
    POST   /api/scenarios/load                 Run a demo scenario

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Service: table lookup, simulation, history
  - TableFactory: JSON to Table conversion

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, invalid table, credit/term not offered
  - 404: Table or simulation not found
  - 422: Simulation input rejected (code carries the reason)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenarios
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/quota-simulator/catalog"
	"github.com/warp/quota-simulator/factory"
	"github.com/warp/quota-simulator/quota"
	"github.com/warp/quota-simulator/report"
	"github.com/warp/quota-simulator/simulation"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service      *simulation.Service
	TableFactory *factory.TableFactory

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler backed by the given service.
func NewHandler(svc *simulation.Service) *Handler {
	return &Handler{
		Service:      svc,
		TableFactory: factory.NewTableFactory(),
	}
}

// =============================================================================
// TABLE HANDLERS
// =============================================================================

// ListTables returns every table.
func (h *Handler) ListTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.Service.Tables(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list tables", err)
		return
	}

	dtos := make([]TableSummaryDTO, len(tables))
	for i, t := range tables {
		dtos[i] = toTableSummaryDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetTable returns a table with its price grid.
func (h *Handler) GetTable(w http.ResponseWriter, r *http.Request) {
	id := quota.TableID(chi.URLParam(r, "id"))

	t, err := h.Service.Table(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTableDTO(t))
}

// SaveTable creates or replaces a table.
func (h *Handler) SaveTable(w http.ResponseWriter, r *http.Request) {
	var tj factory.TableJSON
	if err := json.NewDecoder(r.Body).Decode(&tj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	t, err := h.TableFactory.FromJSON(tj)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.Service.SaveTable(r.Context(), t); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTableDTO(t))
}

// =============================================================================
// OPTIONS
// =============================================================================

// GetOptions returns the fixed choices of the simulation form.
func (h *Handler) GetOptions(w http.ResponseWriter, r *http.Request) {
	dto := OptionsDTO{
		ProjectionRows:      quota.ProjectionRows,
		ReductionCapPct:     rate(quota.ReductionCap.Shift(2)),
		InstallmentEpsilon:  rate(quota.InstallmentEpsilon),
		PaidOffThreshold:    rate(quota.PaidOffThreshold),
		DefaultHistoryLimit: defaultHistoryLimit,
	}
	for _, a := range quota.AdhesionRates {
		dto.AdhesionRates = append(dto.AdhesionRates, rate(a))
	}
	for _, c := range quota.Categories {
		dto.Categories = append(dto.Categories, string(c))
	}
	for _, p := range []quota.PlanKind{quota.PlanStandard, quota.PlanReduced75, quota.PlanReduced50} {
		dto.PlanKinds = append(dto.PlanKinds, string(p))
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SIMULATION HANDLERS
// =============================================================================

// ValidateSimulation reports whether a request would be calculated.
// Lookup failures (unknown table, credit or term) are errors, not verdicts.
func (h *Handler) ValidateSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	verr, err := h.Service.Validate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if verr != nil {
		writeJSON(w, http.StatusOK, ValidationDTO{Valid: false, Code: verr.Code, Reason: verr.Message})
		return
	}
	writeJSON(w, http.StatusOK, ValidationDTO{Valid: true})
}

// CreateSimulation runs and stores a simulation.
func (h *Handler) CreateSimulation(w http.ResponseWriter, r *http.Request) {
	var req simulation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rec, err := h.Service.Simulate(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSimulationDTO(*rec))
}

// ListSimulations returns the simulation history.
func (h *Handler) ListSimulations(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit (use a positive integer)", err)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := h.Service.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list simulations", err)
		return
	}

	dtos := make([]SimulationDTO, len(records))
	for i, rec := range records {
		dtos[i] = toSimulationDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetSimulation returns a stored simulation.
func (h *Handler) GetSimulation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSimulationDTO(rec))
}

// GetSimulationCSV exports the projection rows of a simulation.
func (h *Handler) GetSimulationCSV(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}
	writeAttachment(w, "text/csv; charset=utf-8", rec.ID+".csv", report.CSV(rec.Result))
}

// GetSimulationMarkdown exports a simulation as a Markdown document.
func (h *Handler) GetSimulationMarkdown(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadSimulation(w, r)
	if !ok {
		return
	}
	writeAttachment(w, "text/markdown; charset=utf-8", rec.ID+".md", report.Markdown(rec))
}

func (h *Handler) loadSimulation(w http.ResponseWriter, r *http.Request) (simulation.Record, bool) {
	id := chi.URLParam(r, "id")

	rec, err := h.Service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return simulation.Record{}, false
	}
	return rec, true
}

// Health answers liveness probes.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

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

func writeAttachment(w http.ResponseWriter, contentType, filename, body string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// writeServiceError maps service and domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var verr *quota.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Simulation rejected",
			Code:    verr.Code,
			Details: verr.Message,
		})
	case errors.Is(err, catalog.ErrTableNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Table not found", Code: "table_not_found", Details: err.Error()})
	case errors.Is(err, simulation.ErrSimulationNotFound):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Simulation not found", Code: "simulation_not_found", Details: err.Error()})
	case errors.Is(err, catalog.ErrCreditNotOffered):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Credit not offered by table", Code: "credit_not_offered", Details: err.Error()})
	case errors.Is(err, catalog.ErrTermNotOffered):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Term not offered for credit", Code: "term_not_offered", Details: err.Error()})
	case errors.Is(err, quota.ErrInvalidTable):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid table", Code: "invalid_table", Details: err.Error()})
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
