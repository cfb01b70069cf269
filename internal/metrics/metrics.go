// Package metrics exposes Prometheus instrumentation for the upgrade interstitial.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Interstitial tracks how upgrade interstitials are presented and how they end.
type Interstitial struct {
	presentations   prometheus.Counter
	outcomes        *prometheus.CounterVec
	paymentFailures *prometheus.CounterVec
	secondsShown    prometheus.Histogram
}

// NewInterstitial creates the collectors and registers them on reg.
// A nil reg leaves them unregistered, which is handy in tests.
func NewInterstitial(reg prometheus.Registerer) *Interstitial {
	m := &Interstitial{
		presentations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "arcade",
			Subsystem: "interstitial",
			Name:      "presentations_total",
			Help:      "Total upgrade interstitials started",
		}),
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "interstitial",
				Name:      "outcomes_total",
				Help:      "Total upgrade interstitials ended, by outcome",
			},
			[]string{"outcome"},
		),
		paymentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "arcade",
				Subsystem: "interstitial",
				Name:      "payment_failures_total",
				Help:      "Total purchase attempts that did not settle, by transaction state",
			},
			[]string{"state"},
		),
		secondsShown: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "arcade",
			Subsystem: "interstitial",
			Name:      "seconds_to_outcome",
			Help:      "Countdown seconds elapsed when the interstitial ended",
			Buckets:   []float64{1, 3, 5, 10, 15, 30, 60},
		}),
	}

	if reg != nil {
		reg.MustRegister(m.presentations, m.outcomes, m.paymentFailures, m.secondsShown)
	}
	return m
}

// Presented records a started interstitial.
func (m *Interstitial) Presented() {
	if m == nil {
		return
	}
	m.presentations.Inc()
}

// Ended records a terminal outcome and how long the countdown had run.
func (m *Interstitial) Ended(outcome string, seconds int) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
	m.secondsShown.Observe(float64(seconds))
}

// PaymentFailed records a purchase attempt that ended in state.
func (m *Interstitial) PaymentFailed(state string) {
	if m == nil {
		return
	}
	if state == "" {
		state = "unknown"
	}
	m.paymentFailures.WithLabelValues(state).Inc()
}
