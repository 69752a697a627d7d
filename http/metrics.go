// SPDX-License-Identifier: Apache-2.0

package http

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by Handler.  A nil *Metrics
// is a no-op.
type Metrics struct {
	// Authentications counts authentication attempts.
	// Labels: scheme=[negotiate, basic, none], outcome=[success, continue, failure, challenge]
	Authentications *prometheus.CounterVec

	// Duration tracks the time spent validating credentials.
	// Labels: scheme=[negotiate, basic]
	Duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with registerer.  If
// registerer is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Authentications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spnego_http_authentications_total",
				Help: "HTTP authentication attempts by scheme and outcome",
			},
			[]string{"scheme", "outcome"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spnego_http_authentication_duration_seconds",
				Help:    "Time spent validating HTTP credentials in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"scheme"},
		),
	}

	registerer.MustRegister(m.Authentications, m.Duration)

	return m
}

const (
	outcomeSuccess   = "success"
	outcomeContinue  = "continue"
	outcomeFailure   = "failure"
	outcomeChallenge = "challenge"
)

func (m *Metrics) record(scheme, outcome string, d time.Duration) {
	if m == nil {
		return
	}

	m.Authentications.WithLabelValues(scheme, outcome).Inc()
	if d > 0 {
		m.Duration.WithLabelValues(scheme).Observe(d.Seconds())
	}
}
