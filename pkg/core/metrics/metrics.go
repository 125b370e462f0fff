package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments analysis runs.
type Metrics struct {
	// Stage latencies: calibrate, montecarlo, stress, decompose, persist
	StageLatency *prometheus.HistogramVec

	// Runs by outcome: ok, invalid, error
	RunOutcome *prometheus.CounterVec

	// Simulated paths, summed over runs
	PathsSimulated prometheus.Counter

	// Latest median debt ratio at the end of the horizon, by run name
	TerminalMedian *prometheus.GaugeVec
}

// New registers the run metrics on reg, or on the default registry when reg
// is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dsa_stage_duration_seconds",
			Help:    "Duration of analysis stages",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		RunOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dsa_runs_total",
			Help: "Analysis runs by outcome",
		}, []string{"outcome"}),

		PathsSimulated: f.NewCounter(prometheus.CounterOpts{
			Name: "dsa_paths_simulated_total",
			Help: "Monte Carlo paths simulated",
		}),

		TerminalMedian: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dsa_terminal_median_debt_ratio_percent",
			Help: "Median simulated debt-to-GDP ratio in the last forecast year",
		}, []string{"run"}),
	}
}

// ObserveStage records the duration of one stage.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// IncrementOutcome records a finished run.
func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.RunOutcome.WithLabelValues(outcome).Inc()
	}
}

// AddPaths counts simulated paths.
func (m *Metrics) AddPaths(n int) {
	if m != nil {
		m.PathsSimulated.Add(float64(n))
	}
}

// SetTerminalMedian publishes the end-of-horizon median for a run.
func (m *Metrics) SetTerminalMedian(run string, v float64) {
	if m != nil {
		m.TerminalMedian.WithLabelValues(run).Set(v)
	}
}
