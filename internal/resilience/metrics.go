package resilience

import "github.com/prometheus/client_golang/prometheus"

// Breaker telemetry, labelled by the guarded upstream (sales-api,
// customer-api, receipt-webhook).
var (
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "pos",
			Subsystem: "upstream",
			Name:      "breaker_state",
			Help:      "Breaker state per upstream: 0=closed,1=open,2=half-open",
		},
		[]string{"target"},
	)
	BreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "upstream",
			Name:      "breaker_transitions_total",
			Help:      "Breaker state transitions per upstream",
		},
		[]string{"target", "from", "to"},
	)
	BreakerOpenedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pos",
			Subsystem: "upstream",
			Name:      "breaker_opened_total",
			Help:      "Times a breaker tripped open for an upstream",
		},
		[]string{"target"},
	)
)

func init() {
	prometheus.MustRegister(BreakerState, BreakerTransitions, BreakerOpenedTotal)
}
