package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agora"

// Recorder implements domain repository.Metrics using Prometheus.
type Recorder struct {
	decisions      *prometheus.CounterVec
	consensus      prometheus.Histogram
	conflicts      *prometheus.CounterVec
	reviews        *prometheus.CounterVec
	portfolioRiskR prometheus.Gauge
	portfolioVaR   prometheus.Gauge
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the recorder's collectors on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the recorder's collectors on reg.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "council_decisions_total",
				Help:      "Council decisions by verdict",
			},
			[]string{"verdict"},
		),
		consensus: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "council_consensus_pct",
				Help:      "Consensus percentage of council decisions",
				Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),
		conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conflicts_total",
				Help:      "Conflict analyses by severity and opportunity",
			},
			[]string{"severity", "opportunity"},
		),
		reviews: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "risk_reviews_total",
				Help:      "Risk gate reviews by outcome code",
			},
			[]string{"code", "approved"},
		),
		portfolioRiskR: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_risk_r",
				Help:      "Open risk of the last analyzed portfolio in R",
			},
		),
		portfolioVaR: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "portfolio_var95_pct",
				Help:      "One-day 95% value at risk of the last analyzed portfolio, percent of equity",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordDecision(verdict string, consensusPct int) {
	r.decisions.WithLabelValues(verdict).Inc()
	r.consensus.Observe(float64(consensusPct))
}

func (r *Recorder) RecordConflict(severity, opportunity string) {
	r.conflicts.WithLabelValues(severity, opportunity).Inc()
}

func (r *Recorder) RecordReview(code string, approved bool) {
	r.reviews.WithLabelValues(code, strconv.FormatBool(approved)).Inc()
}

func (r *Recorder) RecordPortfolioRisk(totalR, var95Pct float64) {
	r.portfolioRiskR.Set(totalR)
	r.portfolioVaR.Set(var95Pct)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
