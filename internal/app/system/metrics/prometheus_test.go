package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/stratatopics/internal/app/allocation"
	"github.com/dalemusser/stratatopics/internal/app/system/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

var (
	_ allocation.Metrics = (*metrics.PrometheusCollector)(nil)
	_ allocation.Metrics = (*metrics.NopMetrics)(nil)
)

func TestPrometheusCollector_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg, "test")

	m.RecordSignup("confirmed")
	m.RecordSignup("confirmed")
	m.RecordSignup("waitlisted")
	m.RecordDrop("confirmed", true)
	m.RecordPromotion("drop")
	m.RecordPurge(3)
	m.RecordPurge(0)
	m.RecordRetry("signup")
	m.RecordInvariantViolation("capacity")
	m.ObserveDuration("signup", 20*time.Millisecond)
	m.RecordLedgerSweep(5, 1)

	count, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	require.Positive(t, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	byName := map[string]float64{}
	for _, mf := range families {
		var total float64
		for _, metric := range mf.GetMetric() {
			if c := metric.GetCounter(); c != nil {
				total += c.GetValue()
			}
		}
		byName[mf.GetName()] = total
	}
	require.Equal(t, 3.0, byName["test_allocation_signups_total"])
	require.Equal(t, 1.0, byName["test_allocation_drops_total"])
	require.Equal(t, 1.0, byName["test_allocation_promotions_total"])
	require.Equal(t, 3.0, byName["test_allocation_waitlist_purged_total"])
	require.Equal(t, 1.0, byName["test_allocation_retries_total"])
	require.Equal(t, 1.0, byName["test_allocation_invariant_violations_total"])
	require.Equal(t, 5.0, byName["test_ledger_audit_topics_inspected_total"])
	require.Equal(t, 1.0, byName["test_ledger_audit_counters_repaired_total"])
}

func TestPrometheusCollector_DefaultNamespace(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPrometheus(reg, "")
	m.RecordRetry("drop")

	n, err := testutil.GatherAndCount(reg, "stratatopics_allocation_retries_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestHandler_ServesRegistry(t *testing.T) {
	reg := metrics.NewRegistry()
	m := metrics.NewPrometheus(reg, "")
	m.RecordSignup("waitlisted")

	rec := httptest.NewRecorder()
	metrics.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	require.Contains(t, string(body), `stratatopics_allocation_signups_total{outcome="waitlisted"} 1`)
	require.Contains(t, string(body), "go_goroutines")
}

func TestNopMetrics(t *testing.T) {
	m := metrics.NewNop()
	require.NotPanics(t, func() {
		m.RecordSignup("confirmed")
		m.RecordDrop("waitlisted", false)
		m.RecordPromotion("capacity")
		m.RecordPurge(-1)
		m.RecordRetry("")
		m.RecordInvariantViolation("capacity")
		m.ObserveDuration("drop", 0)
		m.RecordLedgerSweep(0, 0)
	})
}
