package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/confmesh-go/internal/core/domain"
)

const namespace = "confmesh"

// Metrics holds the manager's instruments.
type Metrics struct {
	OperationsTotal     *prometheus.CounterVec
	CallbacksDispatched prometheus.Counter
	CallbackPanics      prometheus.Counter
	CommitsTotal        *prometheus.CounterVec
	CommitDuration      prometheus.Histogram
}

// New creates the manager instruments and registers them on reg.
// It panics if registration fails, like prometheus.MustRegister.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "manager",
			Name:      "operations_total",
			Help:      "Manager operations by operation name and result status",
		}, []string{"op", "status"}),

		CallbacksDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callbacks_dispatched_total",
			Help:      "Change callbacks invoked",
		}),

		CallbackPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_panics_total",
			Help:      "Change callbacks that panicked and were recovered",
		}),

		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Commits to the persistence backend by result",
		}, []string{"result"}),

		CommitDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "commit_duration_seconds",
			Help:      "Commit latency including backend I/O",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
	}

	reg.MustRegister(
		m.OperationsTotal,
		m.CallbacksDispatched,
		m.CallbackPanics,
		m.CommitsTotal,
		m.CommitDuration,
	)
	return m
}

// ObserveOp counts one operation with the status derived from err.
func (m *Metrics) ObserveOp(op string, err error) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(op, domain.StatusOf(err).String()).Inc()
}

// CallbackDispatched counts one callback invocation.
func (m *Metrics) CallbackDispatched() {
	if m == nil {
		return
	}
	m.CallbacksDispatched.Inc()
}

// CallbackPanicked counts one recovered callback panic.
func (m *Metrics) CallbackPanicked() {
	if m == nil {
		return
	}
	m.CallbackPanics.Inc()
}

// ObserveCommit records a commit that started at start.
func (m *Metrics) ObserveCommit(start time.Time, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CommitsTotal.WithLabelValues(result).Inc()
	m.CommitDuration.Observe(time.Since(start).Seconds())
}
