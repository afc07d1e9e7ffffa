package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_ObserveTradeProcessed(t *testing.T) {
	r := NewRegistry()
	r.ObserveTradeProcessed("applied")
	r.ObserveTradeProcessed("applied")
	r.ObserveTradeProcessed("rerouted")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.tradesProcessed.WithLabelValues("applied")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.tradesProcessed.WithLabelValues("rerouted")))
}

func TestRegistry_DLQAndBreakCounters(t *testing.T) {
	r := NewRegistry()
	r.ObserveDLQMessage("VALIDATION_FAILED")
	r.IncReconciliationBreak()
	r.IncVersionConflict()

	assert.Equal(t, float64(1), testutil.ToFloat64(r.dlqMessages.WithLabelValues("VALIDATION_FAILED")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.reconciliationBreaks))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.versionConflicts))
}

func TestRegistry_Latencies(t *testing.T) {
	r := NewRegistry()
	r.ObserveHotpathLatency(10 * time.Millisecond)
	r.ObserveColdpathLatency(50 * time.Millisecond)

	assert.Equal(t, uint64(1), testutil.CollectAndCount(r.hotpathLatency))
	assert.Equal(t, uint64(1), testutil.CollectAndCount(r.coldpathLatency))
}

func TestRegistry_ActivePositionsGauge(t *testing.T) {
	r := NewRegistry()
	r.SetActivePositions(42)
	assert.Equal(t, float64(42), testutil.ToFloat64(r.activePositions))
}
