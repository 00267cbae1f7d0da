package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the captcha gate.
type Metrics struct {
	// Verification outcomes by kind ("ok", "transport", "spam") and form action
	Verifications *prometheus.CounterVec

	// Round trip to the scoring service
	VerifyLatency prometheus.Histogram

	// Scores reported by the scoring service
	Scores prometheus.Histogram

	// Script loads, one per protected page render
	ScriptLoads prometheus.Counter

	// Submissions let through because the gate is not configured
	Inert *prometheus.CounterVec
}

// New registers the gate metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the gate metrics with reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spamgate_captcha_verifications_total",
			Help: "Total token verifications by outcome and form action",
		}, []string{"outcome", "action"}),

		VerifyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spamgate_captcha_verify_duration_seconds",
			Help:    "Duration of siteverify calls",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		Scores: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "spamgate_captcha_score",
			Help:    "Scores returned by the scoring service",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),

		ScriptLoads: f.NewCounter(prometheus.CounterOpts{
			Name: "spamgate_captcha_script_loads_total",
			Help: "Total page renders that loaded the challenge script",
		}),

		Inert: f.NewCounterVec(prometheus.CounterOpts{
			Name: "spamgate_captcha_inert_total",
			Help: "Submissions accepted without verification because the gate is not configured",
		}, []string{"action"}),
	}
}

// IncrementVerification records one verification outcome.
func (m *Metrics) IncrementVerification(outcome, action string) {
	if m != nil {
		m.Verifications.WithLabelValues(outcome, action).Inc()
	}
}

// ObserveVerifyLatency records the duration of one siteverify call.
func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveScore(score float64) {
	if m != nil {
		m.Scores.Observe(score)
	}
}

func (m *Metrics) IncrementScriptLoads() {
	if m != nil {
		m.ScriptLoads.Inc()
	}
}

func (m *Metrics) IncrementInert(action string) {
	if m != nil {
		m.Inert.WithLabelValues(action).Inc()
	}
}
