package dsa

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"debt_sustainability/pkg/core/calc"
	"debt_sustainability/pkg/core/pipeline"
	"debt_sustainability/pkg/core/report"
	"debt_sustainability/pkg/core/simulation"
	"debt_sustainability/pkg/core/store"
	"debt_sustainability/pkg/core/stress"
	"debt_sustainability/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	// MaxNumPaths bounds a single HTTP Monte Carlo request.
	MaxNumPaths = 100000

	maxBodyBytes     = 8 << 20
	defaultListLimit = 20
)

// Defaults fill the request fields a client leaves out.
type Defaults struct {
	Simulation         simulation.Config
	Percentiles        []float64
	Seed               uint64 // 0 = time-seeded per request
	Scenarios          []stress.Scenario
	Revenue            map[int]float64
	RevenueComposition []calc.RevenueShares
}

// Request is the body shared by every POST endpoint. Only Rows is required;
// the rest falls back to Defaults.
type Request struct {
	Name               string               `json:"name,omitempty"`
	Rows               []models.Row         `json:"rows"`
	HorizonStart       int                  `json:"horizonStart,omitempty"`
	Horizon            []int                `json:"horizon,omitempty"`
	NumPaths           int                  `json:"numPaths,omitempty"`
	Seed               uint64               `json:"seed,omitempty"`
	Percentiles        []float64            `json:"percentiles,omitempty"`
	Scenarios          []stress.Scenario    `json:"scenarios,omitempty"`
	Revenue            map[int]float64      `json:"revenue,omitempty"`
	RevenueComposition []calc.RevenueShares `json:"revenueComposition,omitempty"`
}

// MonteCarloResponse is the percentile table plus the seed that produced it.
type MonteCarloResponse struct {
	Seed        uint64                      `json:"seed"`
	Calibration simulation.Calibration      `json:"calibration"`
	Table       *simulation.PercentileTable `json:"table"`
	Records     []map[string]float64        `json:"records"`
}

// ScenarioTable is one stress scenario in table form.
type ScenarioTable struct {
	Scenario stress.Scenario `json:"scenario"`
	Rows     []models.Row    `json:"rows"`
}

// Handler exposes the analysis engines over HTTP.
type Handler struct {
	orch     *pipeline.Orchestrator
	log      logrus.FieldLogger
	defaults Defaults
}

// NewHandler creates a handler. Full runs go through orch.
func NewHandler(orch *pipeline.Orchestrator, log logrus.FieldLogger, defaults Defaults) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{orch: orch, log: log, defaults: defaults}
}

// Register mounts every endpoint under /api/dsa.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api/dsa", func(r chi.Router) {
		r.Use(cors)
		r.Post("/baseline", h.HandleBaseline)
		r.Post("/calibrate", h.HandleCalibrate)
		r.Post("/montecarlo", h.HandleMonteCarlo)
		r.Post("/stress", h.HandleStress)
		r.Post("/decomposition", h.HandleDecomposition)
		r.Post("/affordability", h.HandleAffordability)
		r.Post("/runs", h.HandleCreateRun)
		r.Get("/runs", h.HandleListRuns)
		r.Get("/runs/{id}", h.HandleGetRun)
		r.Get("/runs/{id}/report", h.HandleRunReport)
	})
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HandleBaseline returns the input table with the derived columns.
func (h *Handler) HandleBaseline(w http.ResponseWriter, r *http.Request) {
	_, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, series.Rows())
}

// HandleCalibrate estimates shock volatilities from the years before the
// horizon start.
func (h *Handler) HandleCalibrate(w http.ResponseWriter, r *http.Request) {
	req, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	start := req.HorizonStart
	if horizon := h.horizon(req); start == 0 && len(horizon) > 0 {
		start = horizon[0]
	}
	if start == 0 {
		h.fail(w, r, models.NewFiscalError(models.ErrInvalidConfiguration, 0, "horizonStart", "no horizon start"))
		return
	}
	cal, err := simulation.CalibrateBefore(series, start)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cal)
}

// HandleMonteCarlo simulates the debt ratio distribution over the horizon.
func (h *Handler) HandleMonteCarlo(w http.ResponseWriter, r *http.Request) {
	req, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	cfg := h.simulation(req)
	if err := validateSimulation(cfg); err != nil {
		h.fail(w, r, err)
		return
	}
	percentiles := h.percentiles(req)
	if err := simulation.ValidatePercentiles(percentiles); err != nil {
		h.fail(w, r, err)
		return
	}
	cal, err := simulation.CalibrateBefore(series, cfg.Horizon[0])
	if err != nil {
		h.fail(w, r, err)
		return
	}

	seed := h.seed(req)
	start := time.Now()
	ens, err := simulation.NewEngine(simulation.NewSeededSource(seed)).Run(r.Context(), series, cal, cfg)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	table, err := simulation.Aggregate(ens, percentiles)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	table.WithBaseline(series)
	h.log.WithFields(logrus.Fields{
		"paths":    cfg.NumPaths,
		"seed":     seed,
		"duration": time.Since(start).String(),
	}).Info("monte carlo request served")

	writeJSON(w, http.StatusOK, MonteCarloResponse{
		Seed:        seed,
		Calibration: cal,
		Table:       table,
		Records:     table.Records(),
	})
}

// HandleStress runs the requested scenarios, or the default set.
func (h *Handler) HandleStress(w http.ResponseWriter, r *http.Request) {
	req, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	results, err := stress.RunAll(series, h.scenarios(req))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]ScenarioTable, len(results))
	for i, res := range results {
		out[i] = ScenarioTable{Scenario: res.Scenario, Rows: res.Series.Rows()}
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleDecomposition attributes each year's debt ratio change.
func (h *Handler) HandleDecomposition(w http.ResponseWriter, r *http.Request) {
	_, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	records, err := calc.Decompose(series)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleAffordability computes interest as a share of revenue.
func (h *Handler) HandleAffordability(w http.ResponseWriter, r *http.Request) {
	req, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	revenue := req.Revenue
	if len(revenue) == 0 {
		revenue = h.defaults.Revenue
	}
	if len(revenue) == 0 {
		h.fail(w, r, models.NewFiscalError(models.ErrInvalidConfiguration, 0, "revenue", "no revenue series"))
		return
	}
	res, err := calc.DebtAffordability(series, revenue)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleCreateRun executes the full pipeline and persists the result.
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, series, ok := h.decode(w, r)
	if !ok {
		return
	}
	composition := req.RevenueComposition
	if len(composition) == 0 {
		composition = h.defaults.RevenueComposition
	}
	revenue := req.Revenue
	if len(revenue) == 0 {
		revenue = h.defaults.Revenue
	}
	cfg := h.simulation(req)
	if err := validateSimulation(cfg); err != nil {
		h.fail(w, r, err)
		return
	}
	run, err := h.orch.Execute(r.Context(), pipeline.Request{
		Name:               req.Name,
		Baseline:           series,
		Simulation:         cfg,
		Percentiles:        h.percentiles(req),
		Seed:               h.seed(req),
		Scenarios:          h.scenarios(req),
		Revenue:            revenue,
		RevenueComposition: composition,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/dsa/runs/"+run.ID)
	writeJSON(w, http.StatusCreated, run)
}

// validateSimulation bounds the work one request may ask for.
func validateSimulation(cfg simulation.Config) error {
	if cfg.NumPaths > MaxNumPaths {
		return models.NewFiscalError(models.ErrInvalidConfiguration, 0, "numPaths", fmt.Sprintf("at most %d paths per request", MaxNumPaths))
	}
	return cfg.Validate()
}

// HandleListRuns lists recent runs, newest first.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	recs, err := h.orch.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleGetRun returns one persisted run.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleRunReport renders a persisted run as an HTML page.
func (h *Handler) HandleRunReport(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := report.HTML(run)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(page))
}

// decode reads the request body and builds the validated baseline series.
// On failure the response has been written and ok is false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (req Request, series models.Series, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return req, nil, false
	}
	if len(req.Rows) == 0 {
		http.Error(w, "rows are required", http.StatusBadRequest)
		return req, nil, false
	}
	series = models.SeriesFromRows(req.Rows)
	if err := series.Validate(); err != nil {
		h.fail(w, r, err)
		return req, nil, false
	}
	return req, series, true
}

func (h *Handler) horizon(req Request) []int {
	if len(req.Horizon) > 0 {
		return req.Horizon
	}
	return h.defaults.Simulation.Horizon
}

func (h *Handler) simulation(req Request) simulation.Config {
	cfg := h.defaults.Simulation
	cfg.Horizon = h.horizon(req)
	if req.NumPaths != 0 {
		cfg.NumPaths = req.NumPaths
	}
	return cfg
}

func (h *Handler) percentiles(req Request) []float64 {
	if len(req.Percentiles) > 0 {
		return req.Percentiles
	}
	return h.defaults.Percentiles
}

func (h *Handler) scenarios(req Request) []stress.Scenario {
	if len(req.Scenarios) > 0 {
		return req.Scenarios
	}
	if len(h.defaults.Scenarios) > 0 {
		return h.defaults.Scenarios
	}
	if horizon := h.horizon(req); len(horizon) > 0 {
		return stress.StandardScenarios(horizon[0])
	}
	return nil
}

func (h *Handler) seed(req Request) uint64 {
	switch {
	case req.Seed != 0:
		return req.Seed
	case h.defaults.Seed != 0:
		return h.defaults.Seed
	}
	seed := uint64(time.Now().UnixNano())
	h.log.WithField("seed", seed).Info("no seed given, using time-based seed")
	return seed
}

// fail maps err to a status code. Configuration problems are the caller's
// request (400), data problems are unprocessable (422).
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	entry := h.log.WithFields(logrus.Fields{"path": r.URL.Path, "status": status})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Warn("request rejected")
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case models.IsInputError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Warn("failed to encode response")
	}
}
