package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector records allocation metrics in a Prometheus registry.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	signups    *prometheus.CounterVec
	drops      *prometheus.CounterVec
	promotions *prometheus.CounterVec
	purged     prometheus.Counter
	retries    *prometheus.CounterVec
	violations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	inspected  prometheus.Counter
	repaired   prometheus.Counter
}

// NewPrometheus creates a collector registering on reg (the default
// registerer if nil) under namespace ("stratatopics" if empty).
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "stratatopics"
	}
	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.signups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "signups_total",
			Help:      "Signup decisions by outcome (confirmed, waitlisted, already_signed_up).",
		}, []string{"outcome"})

		p.drops = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "drops_total",
			Help:      "Dropped signups by status of the dropped entry and whether a team was promoted.",
		}, []string{"status", "promoted"})

		p.promotions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "promotions_total",
			Help:      "Waitlist promotions by trigger (drop, capacity, signup).",
		}, []string{"source"})

		p.purged = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "waitlist_purged_total",
			Help:      "Waitlist entries removed because their team was confirmed elsewhere.",
		})

		p.retries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "retries_total",
			Help:      "Transient transaction failures by operation.",
		}, []string{"op"})

		p.violations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "invariant_violations_total",
			Help:      "Ledger invariant violations by invariant.",
		}, []string{"invariant"})

		p.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "allocation",
			Name:      "operation_duration_seconds",
			Help:      "Latency of allocation operations in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms .. ~2.5s
		}, []string{"op"})

		p.inspected = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ledger_audit",
			Name:      "topics_inspected_total",
			Help:      "Topics inspected by the ledger audit worker.",
		})

		p.repaired = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "ledger_audit",
			Name:      "counters_repaired_total",
			Help:      "Confirmed counters rewritten to match the ledger.",
		})

		p.reg.MustRegister(p.signups)
		p.reg.MustRegister(p.drops)
		p.reg.MustRegister(p.promotions)
		p.reg.MustRegister(p.purged)
		p.reg.MustRegister(p.retries)
		p.reg.MustRegister(p.violations)
		p.reg.MustRegister(p.duration)
		p.reg.MustRegister(p.inspected)
		p.reg.MustRegister(p.repaired)
	})
}

func (p *PrometheusCollector) RecordSignup(outcome string) {
	p.ensureRegistered()
	p.signups.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordDrop(status string, promoted bool) {
	p.ensureRegistered()
	p.drops.WithLabelValues(status, strconv.FormatBool(promoted)).Inc()
}

func (p *PrometheusCollector) RecordPromotion(source string) {
	p.ensureRegistered()
	p.promotions.WithLabelValues(source).Inc()
}

func (p *PrometheusCollector) RecordPurge(deleted int64) {
	p.ensureRegistered()
	if deleted > 0 {
		p.purged.Add(float64(deleted))
	}
}

func (p *PrometheusCollector) RecordRetry(op string) {
	p.ensureRegistered()
	p.retries.WithLabelValues(op).Inc()
}

func (p *PrometheusCollector) RecordInvariantViolation(invariant string) {
	p.ensureRegistered()
	p.violations.WithLabelValues(invariant).Inc()
}

func (p *PrometheusCollector) ObserveDuration(op string, d time.Duration) {
	p.ensureRegistered()
	p.duration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordLedgerSweep counts one audit sweep.
func (p *PrometheusCollector) RecordLedgerSweep(inspected, repaired int) {
	p.ensureRegistered()
	p.inspected.Add(float64(inspected))
	p.repaired.Add(float64(repaired))
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
