/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Table listing, detail and upload
- Simulation validate/create/get/list and error mapping
- CSV and Markdown exports
- Health and metrics endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/quota-simulator/observability"
	"github.com/warp/quota-simulator/simulation"
	"github.com/warp/quota-simulator/store/memory"
	"github.com/warp/quota-simulator/tables"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cat, err := tables.DefaultCatalog()
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics("test", reg)
	svc := simulation.NewService(memory.NewMemory(), cat, simulation.WithRecorder(metrics))

	srv := httptest.NewServer(NewRouter(NewHandler(svc), RouterOptions{
		Metrics: observability.HandlerFor(reg),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(data, &v), string(data))
	return v
}

// autoStdRequest is R$ 100.000 over 60 months without insurance (raw 1966.67).
func autoStdRequest() map[string]any {
	return map[string]any{
		"table_id":                   "auto-std",
		"credit":                     100000,
		"term":                       60,
		"insurance":                  false,
		"pocket_bid":                 10000,
		"embedded_bid_ratio":         0,
		"appraisal_bid":              0,
		"adhesion_rate":              0,
		"installment_allocation_pct": 50,
		"contemplation_month":        10,
	}
}

// =============================================================================
// TABLES
// =============================================================================

func TestListTables(t *testing.T) {
	// GIVEN: a server with the preset catalog
	srv := newTestServer(t)

	// WHEN: listing tables
	resp, body := do(t, srv, http.MethodGet, "/api/tables", nil)

	// THEN: every preset is listed, sorted by id
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]TableSummaryDTO](t, body)
	ids := make([]string, len(list))
	for i, tb := range list {
		ids[i] = tb.ID
	}
	assert.Equal(t, []string{"auto-std", "auto-superlight", "imovel-light", "moto", "servicos"}, ids)
	assert.Equal(t, 0.5, list[1].PlanFactor)
	assert.Equal(t, []float64{50000, 75000, 100000, 125000, 150000}, list[0].Credits)
}

func TestGetTable(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/tables/auto-std", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	tb := decode[TableDTO](t, body)
	require.Len(t, tb.Rows, 5)
	row := tb.Rows[2]
	assert.Equal(t, 100000.0, row.Credit)
	require.Len(t, row.Terms, 3)
	assert.Equal(t, 60, row.Terms[0].Term)
	assert.Nil(t, row.Terms[0].Installment)
	require.NotNil(t, row.Terms[0].WithoutInsurance)
	assert.Equal(t, 1966.67, *row.Terms[0].WithoutInsurance)
	assert.Equal(t, 2004.67, *row.Terms[0].WithInsurance)
}

func TestGetTable_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/tables/nope", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "table_not_found", decode[ErrorResponse](t, body).Code)
}

func TestSaveTable(t *testing.T) {
	// GIVEN: a new table definition
	srv := newTestServer(t)
	def := `{
		"id": "frota", "name": "Frota", "category": "vehicle",
		"admin_fee_rate": "0.15", "reserve_fund_rate": "0.02",
		"insurance_rate": "0", "max_embedded_bid_ratio": "0.20",
		"rows": [{"credit": 200000, "terms": [{"term": 100, "installment": 2340}]}]
	}`

	// WHEN: uploading it
	resp, body := do(t, srv, http.MethodPost, "/api/tables", def)

	// THEN: it is stored as a standard plan and can be simulated
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	tb := decode[TableDTO](t, body)
	assert.Equal(t, "standard", tb.PlanKind)

	resp, _ = do(t, srv, http.MethodGet, "/api/tables/frota", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req := map[string]any{
		"table_id": "frota", "credit": 200000, "term": 100,
		"installment_allocation_pct": 100, "contemplation_month": 1,
	}
	resp, body = do(t, srv, http.MethodPost, "/api/simulations", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.Equal(t, 234000.0, decode[SimulationDTO](t, body).Result.TotalCost)
}

func TestSaveTable_Invalid(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"malformed json", `{"id":`, ""},
		{"unknown category", `{"id":"x","category":"boat","rows":[]}`, "invalid_table"},
		{"no rows", `{"id":"x","category":"vehicle","admin_fee_rate":"0.1","reserve_fund_rate":"0","insurance_rate":"0","max_embedded_bid_ratio":"0.1","rows":[]}`, "invalid_table"},
		{"both installment shapes", `{"id":"x","category":"vehicle","admin_fee_rate":"0.1","reserve_fund_rate":"0","insurance_rate":"0","max_embedded_bid_ratio":"0.1","rows":[{"credit":1000,"terms":[{"term":10,"installment":110,"with_insurance":111}]}]}`, "invalid_table"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, http.MethodPost, "/api/tables", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, body).Code)
		})
	}
}

// =============================================================================
// OPTIONS
// =============================================================================

func TestGetOptions(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/options", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	opts := decode[OptionsDTO](t, body)
	assert.Equal(t, []float64{0, 0.005, 0.01, 0.015, 0.02, 0.025, 0.03}, opts.AdhesionRates)
	assert.Equal(t, 5, opts.ProjectionRows)
	assert.Equal(t, 40.0, opts.ReductionCapPct)
	assert.Equal(t, 0.01, opts.InstallmentEpsilon)
	assert.Equal(t, []string{"standard", "reduced_75", "reduced_50"}, opts.PlanKinds)
	assert.Len(t, opts.Categories, 4)
}

// =============================================================================
// SIMULATIONS
// =============================================================================

func TestValidateSimulation(t *testing.T) {
	srv := newTestServer(t)

	t.Run("valid", func(t *testing.T) {
		resp, body := do(t, srv, http.MethodPost, "/api/simulations/validate", autoStdRequest())
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, ValidationDTO{Valid: true}, decode[ValidationDTO](t, body))
	})

	t.Run("bid not below credit", func(t *testing.T) {
		req := autoStdRequest()
		req["pocket_bid"] = 100000
		resp, body := do(t, srv, http.MethodPost, "/api/simulations/validate", req)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		v := decode[ValidationDTO](t, body)
		assert.False(t, v.Valid)
		assert.Equal(t, "bid_not_below_credit", v.Code)
		assert.NotEmpty(t, v.Reason)
	})

	t.Run("credit not offered", func(t *testing.T) {
		req := autoStdRequest()
		req["credit"] = 99999
		resp, body := do(t, srv, http.MethodPost, "/api/simulations/validate", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "credit_not_offered", decode[ErrorResponse](t, body).Code)
	})

	t.Run("term not offered", func(t *testing.T) {
		req := autoStdRequest()
		req["term"] = 61
		resp, body := do(t, srv, http.MethodPost, "/api/simulations/validate", req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "term_not_offered", decode[ErrorResponse](t, body).Code)
	})
}

func TestCreateSimulation(t *testing.T) {
	// GIVEN: a standard table request
	srv := newTestServer(t)

	// WHEN: running it
	resp, body := do(t, srv, http.MethodPost, "/api/simulations", autoStdRequest())

	// THEN: the rounded result is returned and persisted
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	sim := decode[SimulationDTO](t, body)
	assert.NotEmpty(t, sim.ID)
	assert.Equal(t, "auto-std", sim.TableID)
	assert.Equal(t, 1966.67, sim.Result.PreContemplationInstallment)
	assert.Equal(t, 118000.20, sim.Result.TotalCost)
	assert.Equal(t, 16000.0, sim.Result.AdminFee)
	assert.Equal(t, "standard", sim.Result.DefaultPath)
	assert.False(t, sim.Result.ReducedAvailable)
	require.Len(t, sim.Result.Paths, 1)
	assert.True(t, sim.Result.Paths[0].Default)
	require.Len(t, sim.Result.Scenarios, 5)
	assert.Equal(t, 10, sim.Result.Scenarios[0].Month)
	assert.Equal(t, "100000", sim.Request.Credit.String())

	resp, body = do(t, srv, http.MethodGet, "/api/simulations/"+sim.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sim.Result.TotalCost, decode[SimulationDTO](t, body).Result.TotalCost)
}

func TestCreateSimulation_Rejected(t *testing.T) {
	srv := newTestServer(t)
	req := autoStdRequest()
	req["contemplation_month"] = 61

	resp, body := do(t, srv, http.MethodPost, "/api/simulations", req)

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	e := decode[ErrorResponse](t, body)
	assert.Equal(t, "contemplation_out_of_range", e.Code)
	assert.NotEmpty(t, e.Details)
}

func TestCreateSimulation_BadBody(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := do(t, srv, http.MethodPost, "/api/simulations", `{"credit": "abc"}`)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSimulation_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/api/simulations/missing", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "simulation_not_found", decode[ErrorResponse](t, body).Code)
}

func TestListSimulations(t *testing.T) {
	// GIVEN: three stored simulations
	srv := newTestServer(t)
	for i := 0; i < 3; i++ {
		resp, _ := do(t, srv, http.MethodPost, "/api/simulations", autoStdRequest())
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	// WHEN / THEN: the limit is honored
	resp, body := do(t, srv, http.MethodGet, "/api/simulations", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]SimulationDTO](t, body), 3)

	resp, body = do(t, srv, http.MethodGet, "/api/simulations?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]SimulationDTO](t, body), 2)

	resp, _ = do(t, srv, http.MethodGet, "/api/simulations?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/api/simulations?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// EXPORTS
// =============================================================================

func TestSimulationReports(t *testing.T) {
	srv := newTestServer(t)
	resp, body := do(t, srv, http.MethodPost, "/api/simulations", autoStdRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := decode[SimulationDTO](t, body).ID

	t.Run("csv", func(t *testing.T) {
		resp, body := do(t, srv, http.MethodGet, "/api/simulations/"+id+"/report.csv", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
		assert.Contains(t, resp.Header.Get("Content-Disposition"), id+".csv")
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		assert.Len(t, lines, 6)
		assert.True(t, strings.HasPrefix(lines[1], "standard,true,10,0,1966.67,"))
	})

	t.Run("markdown", func(t *testing.T) {
		resp, body := do(t, srv, http.MethodGet, "/api/simulations/"+id+"/report.md", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")
		assert.True(t, strings.HasPrefix(string(body), "# Simulation "+id))
		assert.Contains(t, string(body), "| Installment | R$ 1.966,67 |")
	})

	t.Run("missing", func(t *testing.T) {
		resp, _ := do(t, srv, http.MethodGet, "/api/simulations/missing/report.csv", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

// =============================================================================
// HEALTH & METRICS
// =============================================================================

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	resp, body := do(t, srv, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, body)["status"])

	resp, _ = do(t, srv, http.MethodPost, "/api/simulations", autoStdRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body = do(t, srv, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `test_simulation_runs_total{default_path="standard",plan_kind="standard"} 1`)
}
