package dsa

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/pipeline"
	"debt_sustainability/pkg/core/projection"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/core/store"
	"debt_sustainability/pkg/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ukBaseline = models.Series{
	{Year: 2019, NominalGDP: 2233.9, NetDebt: 1776900, NetBorrowing: 44267, DebtInterest: 36845},
	{Year: 2020, NominalGDP: 2103.5, NetDebt: 1815000, NetBorrowing: 61453, DebtInterest: 25132},
	{Year: 2021, NominalGDP: 2285.4, NetDebt: 2152900, NetBorrowing: 312942, DebtInterest: 47552},
	{Year: 2022, NominalGDP: 2526.4, NetDebt: 2381900, NetBorrowing: 121091, DebtInterest: 114670},
	{Year: 2023, NominalGDP: 2717.3, NetDebt: 2530400, NetBorrowing: 139213, DebtInterest: 111300},
	{Year: 2024, NominalGDP: 2848.0, NetDebt: 2691400, NetBorrowing: 152100, DebtInterest: 105200},
	{Year: 2025, NominalGDP: 2967.6, NetDebt: 2835900, NetBorrowing: 137300, DebtInterest: 111500},
	{Year: 2026, NominalGDP: 3075.2, NetDebt: 2963800, NetBorrowing: 127700, DebtInterest: 117600},
	{Year: 2027, NominalGDP: 3183.4, NetDebt: 3085000, NetBorrowing: 121200, DebtInterest: 121100},
	{Year: 2028, NominalGDP: 3291.1, NetDebt: 3191700, NetBorrowing: 106700, DebtInterest: 122800},
	{Year: 2029, NominalGDP: 3401.7, NetDebt: 3290300, NetBorrowing: 98600, DebtInterest: 124200},
}

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	orch := pipeline.NewOrchestrator(log, nil)
	orch.SetRepository(store.NewRunStore(nil, t.TempDir(), log))

	h := NewHandler(orch, log, Defaults{
		Simulation:  simulation.Config{NumPaths: 100, Horizon: projection.Horizon(2025, 2029), Workers: 2},
		Percentiles: simulation.DefaultPercentiles,
		Seed:        42,
	})
	r := chi.NewRouter()
	h.Register(r)
	return r
}

func post(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHandleBaseline(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/baseline", Request{Rows: ukBaseline.Rows()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []models.Row
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rows))
	require.Len(t, rows, len(ukBaseline))
	// 2019: 1776900 / (2233.9 * 10) = 79.54...
	assert.InDelta(t, 1776900/(2233.9*10), rows[0].DebtToGDPPercent, 1e-9)
	// 2024 primary balance: 152100 - 105200
	assert.InDelta(t, 46900.0, rows[5].PrimaryBalance, 1e-9)
}

func TestHandleBaseline_SortsRows(t *testing.T) {
	router := newRouter(t)

	rows := ukBaseline.Rows()
	rows[0], rows[1] = rows[1], rows[0]
	rec := post(t, router, "/api/dsa/baseline", Request{Rows: rows})
	require.Equal(t, http.StatusOK, rec.Code)

	var out []models.Row
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, 2019, out[0].Year)
	assert.Equal(t, 2020, out[1].Year)
}

func TestHandleBaseline_BadInput(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"rows": [`, http.StatusBadRequest},
		{"no rows", `{"rows": []}`, http.StatusBadRequest},
		{"duplicate year", `{"rows": [{"Year": 2024, "Nominal GDP": 1}, {"Year": 2024, "Nominal GDP": 1}]}`, http.StatusBadRequest},
		{"zero gdp", `{"rows": [{"Year": 2024, "Nominal GDP": 0, "PSND": 10}]}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/dsa/baseline", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/dsa/montecarlo", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHandleCalibrate(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/calibrate", Request{Rows: ukBaseline.Rows(), HorizonStart: 2025})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cal simulation.Calibration
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&cal))
	// 2019..2024 gives five year-over-year observations.
	assert.Equal(t, 5, cal.Observations)
	assert.Equal(t, 2019, cal.FromYear)
	assert.Equal(t, 2024, cal.ToYear)
	assert.Greater(t, cal.GDPGrowthStd, 0.0)

	rec = post(t, router, "/api/dsa/calibrate", Request{Rows: ukBaseline[:2].Rows(), HorizonStart: 2021})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleMonteCarlo(t *testing.T) {
	router := newRouter(t)

	body := Request{Rows: ukBaseline.Rows(), Horizon: []int{2025, 2026}, NumPaths: 200, Seed: 7}
	rec := post(t, router, "/api/dsa/montecarlo", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp MonteCarloResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.Seed)
	require.Len(t, resp.Table.Rows, 2)
	require.Len(t, resp.Records, 2)
	assert.Equal(t, []string{"P5", "P25", "P50", "P75", "P95"}, resp.Table.Labels())

	first := resp.Table.Rows[0]
	assert.Equal(t, 2025, first.Year)
	for i := 1; i < len(first.Values); i++ {
		assert.LessOrEqual(t, first.Values[i-1], first.Values[i])
	}
	require.NotNil(t, first.Baseline)
	// 2835900 / (2967.6 * 10)
	assert.InDelta(t, 2835900/(2967.6*10), *first.Baseline, 1e-9)
	assert.InDelta(t, *first.Baseline, resp.Records[0]["Baseline"], 1e-12)

	again := post(t, router, "/api/dsa/montecarlo", body)
	assert.Equal(t, rec.Body.String(), again.Body.String(), "same seed must reproduce the table")
}

func TestHandleMonteCarlo_Rejects(t *testing.T) {
	router := newRouter(t)

	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"too many paths", Request{NumPaths: MaxNumPaths + 1}, http.StatusBadRequest},
		{"bad percentile", Request{Percentiles: []float64{50, 101}}, http.StatusBadRequest},
		{"gapped horizon", Request{Horizon: []int{2025, 2027}}, http.StatusBadRequest},
		{"horizon past the baseline", Request{Horizon: []int{2028, 2029, 2030, 2031}}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.Rows = ukBaseline.Rows()
			rec := post(t, router, "/api/dsa/montecarlo", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHandleStress_DefaultScenarios(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/stress", Request{Rows: ukBaseline.Rows()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tables []ScenarioTable
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tables))
	require.Len(t, tables, 3)
	assert.Equal(t, "Baseline", tables[0].Scenario.Name)
	assert.Equal(t, "Interest_Rate_Shock", tables[1].Scenario.Name)
	assert.Equal(t, "GDP_Growth_Shock", tables[2].Scenario.Name)

	// Pre-shock years are untouched, shocked years carry more debt.
	for _, tbl := range tables {
		require.Len(t, tbl.Rows, len(ukBaseline))
		assert.Equal(t, 2691400.0, tbl.Rows[5].PSND)
	}
	assert.Equal(t, 2835900.0, tables[0].Rows[6].PSND)
	assert.Greater(t, tables[1].Rows[10].DebtToGDPPercent, tables[0].Rows[10].DebtToGDPPercent)
	assert.Greater(t, tables[2].Rows[10].DebtToGDPPercent, tables[0].Rows[10].DebtToGDPPercent)
}

func TestHandleStress_UnknownTarget(t *testing.T) {
	router := newRouter(t)

	body := `{"rows": [{"Year": 2024, "Nominal GDP": 2848, "PSND": 2691400}],
		"scenarios": [{"name": "x", "target": "inflation", "magnitude": 0.01, "start_year": 2025}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/dsa/stress", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleDecomposition(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/decomposition", Request{Rows: ukBaseline.Rows()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var records []calc.DecompositionRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&records))
	require.Len(t, records, len(ukBaseline)-1)
	assert.Equal(t, 2020, records[0].Year)
	for _, r := range records {
		assert.InDelta(t, r.DebtRatioChange, r.Explained(), 1e-9, "year %d", r.Year)
	}

	rec = post(t, router, "/api/dsa/decomposition", Request{Rows: ukBaseline[:1].Rows()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleAffordability(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/affordability", Request{
		Rows:    ukBaseline.Rows(),
		Revenue: map[int]float64{2023: 1095000, 2024: 1141000},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res calc.AffordabilityResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Rows, 2)
	// 2023: 111300 / 1095000 * 100 = 10.16%, 2024: 105200 / 1141000 * 100 = 9.22%
	assert.Equal(t, 2023, res.PeakYear)
	assert.InDelta(t, 111300.0/1095000*100, res.PeakRate, 1e-9)

	rec = post(t, router, "/api/dsa/affordability", Request{Rows: ukBaseline.Rows()})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "no revenue anywhere")

	rec = post(t, router, "/api/dsa/affordability", Request{Rows: ukBaseline.Rows(), Revenue: map[int]float64{2024: 0}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRuns_CreateGetReportList(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/runs", Request{
		Name:     "UK Spring 2025",
		Rows:     ukBaseline.Rows(),
		NumPaths: 50,
		Revenue:  map[int]float64{2024: 1141000},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var run pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, "/api/dsa/runs/"+run.ID, rec.Header().Get("Location"))
	assert.Equal(t, uint64(42), run.Seed, "default seed")
	assert.Equal(t, 50, run.Simulation.NumPaths)
	assert.Len(t, run.Scenarios, 3)

	rec = get(router, "/api/dsa/runs/"+run.ID)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var loaded pipeline.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loaded))
	assert.Equal(t, run.ID, loaded.ID)
	assert.Equal(t, run.Percentiles, loaded.Percentiles)

	rec = get(router, "/api/dsa/runs/"+run.ID+"/report")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "UK Spring 2025", doc.Find("title").Text())
	assert.Positive(t, doc.Find("table").Length())

	rec = get(router, "/api/dsa/runs?limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var recs []store.Record
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&recs))
	require.Len(t, recs, 1)
	assert.Equal(t, run.ID, recs[0].ID)
}

func TestRuns_NotFoundAndBadLimit(t *testing.T) {
	router := newRouter(t)

	assert.Equal(t, http.StatusNotFound, get(router, "/api/dsa/runs/0b7f3c1e-8a52-4d2b-9a57-4c8f0f6b2d11").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/api/dsa/runs/not-a-uuid/report").Code)
	assert.Equal(t, http.StatusBadRequest, get(router, "/api/dsa/runs?limit=zero").Code)

	rec := get(router, "/api/dsa/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRuns_RejectsTooManyPaths(t *testing.T) {
	router := newRouter(t)

	rec := post(t, router, "/api/dsa/runs", Request{Rows: ukBaseline.Rows(), NumPaths: MaxNumPaths + 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	list := get(router, "/api/dsa/runs")
	require.Equal(t, http.StatusOK, list.Code)
	assert.JSONEq(t, "[]", list.Body.String(), "nothing persisted")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(store.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, statusFor(models.NewFiscalError(models.ErrInvalidConfiguration, 0, "x", "")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(models.NewFiscalError(models.ErrMissingPredecessor, 2024, "", "")))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}
