package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegistry(reg)

	r.RecordDecision("BUY", 80)
	r.RecordDecision("BUY", 60)
	r.RecordDecision("HOLD", 40)
	r.RecordConflict("HIGH", "BOTTOM_FISHING")
	r.RecordReview("cooldown", false)
	r.RecordReview("", true)
	r.RecordPortfolioRisk(2.5, 1.2)
	r.RecordError("journal")
	r.RecordLatency("evaluate", 0.01)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.decisions.WithLabelValues("BUY")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.decisions.WithLabelValues("HOLD")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.conflicts.WithLabelValues("HIGH", "BOTTOM_FISHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reviews.WithLabelValues("cooldown", "false")))
	assert.Equal(t, 2.5, testutil.ToFloat64(r.portfolioRiskR))
	assert.Equal(t, 1.2, testutil.ToFloat64(r.portfolioVaR))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("journal")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.latency))
}

func TestRecordersDoNotCollideAcrossRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}
