package transport

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Retry and failure reasons used as metric labels
const (
	reasonRateLimited  = "rate_limited"
	reasonServerError  = "server_error"
	reasonNetworkError = "network_error"
	reasonBadStatus    = "bad_status"
	reasonExhausted    = "retries_exhausted"
)

// Metrics contains transport-level request counters
type Metrics struct {
	AttemptsTotal *prometheus.CounterVec
	RetriesTotal  *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
}

// NewMetrics creates the transport counters. Call Register to expose them
// on a prometheus.Registerer.
func NewMetrics() *Metrics {
	return &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pypdb",
				Subsystem: "transport",
				Name:      "attempts_total",
				Help:      "Total number of HTTP request attempts, including retries",
			},
			[]string{"method"},
		),
		RetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pypdb",
				Subsystem: "transport",
				Name:      "retries_total",
				Help:      "Total number of retried attempts by reason",
			},
			[]string{"reason"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "pypdb",
				Subsystem: "transport",
				Name:      "failures_total",
				Help:      "Total number of requests that returned no response",
			},
			[]string{"reason"},
		),
	}
}

// Register registers all counters with the given registerer
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		m.AttemptsTotal, m.RetriesTotal, m.FailuresTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

// nil-safe increment helpers; a Client without metrics skips counting

func (m *Metrics) countAttempt(method string) {
	if m != nil {
		m.AttemptsTotal.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) countRetry(reason string) {
	if m != nil {
		m.RetriesTotal.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) countFailure(reason string) {
	if m != nil {
		m.FailuresTotal.WithLabelValues(reason).Inc()
	}
}
