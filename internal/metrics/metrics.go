// Package metrics exposes the Prometheus collectors the dispatcher,
// hotpath, and coldpath update as they process trades. The composition
// root owns mounting Registry.Registerer on an HTTP handler; this package
// never starts a server itself.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry bundles every collector the engine updates, all registered on
// one fresh *prometheus.Registry per Registry rather than the global
// DefaultRegisterer, so tests can construct one per case without
// collector-already-registered panics.
type Registry struct {
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	tradesProcessed      *prometheus.CounterVec
	hotpathLatency       prometheus.Histogram
	coldpathLatency      prometheus.Histogram
	dlqMessages          *prometheus.CounterVec
	versionConflicts     prometheus.Counter
	reconciliationBreaks prometheus.Counter
	activePositions      prometheus.Gauge
}

// NewRegistry builds and registers every collector on a fresh registry.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		Registerer: reg,
		Gatherer:   reg,
		tradesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posengine_trades_processed_total",
				Help: "Trades processed, partitioned by outcome.",
			},
			[]string{"outcome"}, // applied|rerouted|idempotent
		),
		hotpathLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "posengine_hotpath_apply_seconds",
			Help:    "Latency of one synchronous hotpath apply.",
			Buckets: prometheus.DefBuckets,
		}),
		coldpathLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "posengine_coldpath_recalculate_seconds",
			Help:    "Latency of one backdated-trade recalculation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		dlqMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "posengine_dlq_messages_total",
				Help: "Messages routed to the dead-letter topic, by reason.",
			},
			[]string{"errorType"},
		),
		versionConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posengine_version_conflicts_total",
			Help: "Optimistic-lock conflicts encountered during snapshot save.",
		}),
		reconciliationBreaks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "posengine_reconciliation_breaks_total",
			Help: "Reconciliation breaks recorded after a backdated correction.",
		}),
		activePositions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "posengine_active_positions",
			Help: "Current count of ACTIVE positions known to the engine.",
		}),
	}

	reg.MustRegister(
		r.tradesProcessed,
		r.hotpathLatency,
		r.coldpathLatency,
		r.dlqMessages,
		r.versionConflicts,
		r.reconciliationBreaks,
		r.activePositions,
	)
	return r
}

func (r *Registry) ObserveTradeProcessed(outcome string) {
	r.tradesProcessed.WithLabelValues(outcome).Inc()
}

func (r *Registry) ObserveHotpathLatency(d time.Duration) {
	r.hotpathLatency.Observe(d.Seconds())
}

func (r *Registry) ObserveColdpathLatency(d time.Duration) {
	r.coldpathLatency.Observe(d.Seconds())
}

func (r *Registry) ObserveDLQMessage(errorType string) {
	r.dlqMessages.WithLabelValues(errorType).Inc()
}

func (r *Registry) IncVersionConflict() {
	r.versionConflicts.Inc()
}

func (r *Registry) IncReconciliationBreak() {
	r.reconciliationBreaks.Inc()
}

func (r *Registry) SetActivePositions(n float64) {
	r.activePositions.Set(n)
}
