package propagation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Proposals     prometheus.Counter
	Applied       prometheus.Counter
	Failures      *prometheus.CounterVec
	Cancellations prometheus.Counter
	ApplyDuration prometheus.Histogram
	ChangeSetSize prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Proposals: f.NewCounter(prometheus.CounterOpts{
			Name: "branchrate_rate_proposals_total",
			Help: "Rate proposals that reached preview",
		}),
		Applied: f.NewCounter(prometheus.CounterOpts{
			Name: "branchrate_rate_updates_applied_total",
			Help: "Rate updates written and applied",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "branchrate_rate_update_failures_total",
			Help: "Rate update operations rejected or failed, by error code",
		}, []string{"code"}),
		Cancellations: f.NewCounter(prometheus.CounterOpts{
			Name: "branchrate_rate_updates_cancelled_total",
			Help: "Previews cancelled explicitly or superseded by a new proposal",
		}),
		ApplyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "branchrate_rate_apply_duration_seconds",
			Help:    "Time spent in the external write and directory refresh",
			Buckets: prometheus.DefBuckets,
		}),
		ChangeSetSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "branchrate_rate_changeset_size",
			Help:    "Number of branches in a previewed change-set",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) incProposals(size int) {
	if m == nil {
		return
	}
	m.Proposals.Inc()
	m.ChangeSetSize.Observe(float64(size))
}

func (m *Metrics) incApplied(start time.Time) {
	if m == nil {
		return
	}
	m.Applied.Inc()
	m.ApplyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) incFailure(code string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(code).Inc()
}

func (m *Metrics) incCancelled() {
	if m == nil {
		return
	}
	m.Cancellations.Inc()
}
