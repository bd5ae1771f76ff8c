package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the branch directory and store.
type Metrics struct {
	RefreshDuration prometheus.Histogram
	RefreshFailures prometheus.Counter
	Branches        prometheus.Gauge
	RateWrites      *prometheus.CounterVec
}

// New registers branch metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "branchrate_directory_refresh_duration_seconds",
			Help:    "Duration of branch directory refreshes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		RefreshFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "branchrate_directory_refresh_failures_total",
			Help: "Total number of failed branch directory refreshes",
		}),
		Branches: f.NewGauge(prometheus.GaugeOpts{
			Name: "branchrate_directory_branches",
			Help: "Number of branches in the current directory snapshot",
		}),
		RateWrites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "branchrate_store_rate_writes_total",
			Help: "Rate writes received by the branch store, by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveRefresh records a refresh that started at start.
func (m *Metrics) ObserveRefresh(start time.Time, branches int, err error) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.RefreshFailures.Inc()
	}
	m.Branches.Set(float64(branches))
}

// IncrementRateWrite records a store rate write outcome ("ok", "not_found", "error").
func (m *Metrics) IncrementRateWrite(outcome string) {
	if m == nil {
		return
	}
	m.RateWrites.WithLabelValues(outcome).Inc()
}
