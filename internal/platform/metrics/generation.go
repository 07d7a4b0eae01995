// Package metrics exposes prometheus collectors for the generation workflow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for studio_generation_total.
const (
	OutcomeDone          = "done"
	OutcomeRejected      = "rejected"
	OutcomeVendorFailure = "generation_failed"
	OutcomeDeduction     = "deduction_failed"
	OutcomeError         = "error"
)

// GenerationMetrics records outcomes of image generations.
type GenerationMetrics struct {
	total    *prometheus.CounterVec
	duration prometheus.Histogram
	spent    prometheus.Counter
}

// NewGenerationMetrics registers the generation metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewGenerationMetrics(reg prometheus.Registerer) *GenerationMetrics {
	if reg == nil {
		return &GenerationMetrics{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_generation_total",
		Help: "Image generation attempts by terminal outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "studio_generation_duration_seconds",
		Help:    "Duration of calls to the image generation vendor.",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
	})
	spent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "studio_credits_spent_total",
		Help: "Credits consumed by successful generations.",
	})
	reg.MustRegister(total, duration, spent)
	return &GenerationMetrics{total: total, duration: duration, spent: spent}
}

// ObserveOutcome increments the counter for a terminal outcome.
func (m *GenerationMetrics) ObserveOutcome(outcome string) {
	if m == nil || m.total == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
}

// ObserveVendorCall records the duration of one vendor call.
func (m *GenerationMetrics) ObserveVendorCall(d time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// IncCreditsSpent counts one consumed credit.
func (m *GenerationMetrics) IncCreditsSpent() {
	if m == nil || m.spent == nil {
		return
	}
	m.spent.Inc()
}
