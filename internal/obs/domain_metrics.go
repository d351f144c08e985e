package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SalesSubmittedTotal counts sale submission outcomes per payment method.
	SalesSubmittedTotal *prometheus.CounterVec
	// SaleValue records the value distribution of successfully submitted sales
	// in minor units.
	SaleValue *prometheus.HistogramVec
	// GiftCardAllocationsTotal counts sales that carried gift-card tender;
	// these are excluded from revenue accounting downstream.
	GiftCardAllocationsTotal prometheus.Counter
	// ReceiptHandoffTotal tracks receipt hand-off delivery outcomes.
	ReceiptHandoffTotal *prometheus.CounterVec
	// ActiveSessions reports the number of live terminal sessions.
	ActiveSessions prometheus.Gauge
)

// MustRegisterDomainMetrics initialises and registers POS domain collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SalesSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_submitted_total",
			Help:      "Count of sale submission outcomes.",
		}, []string{"result", "method"})
		SaleValue = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sale_value",
			Help:      "Value of submitted sales in minor units.",
			Buckets:   []float64{1000, 5000, 10000, 25000, 50000, 100000, 250000, 500000, 1000000},
		}, []string{"method"})
		GiftCardAllocationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gift_card_allocations_total",
			Help:      "Number of sales paid partly or fully by gift card.",
		})
		ReceiptHandoffTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_handoff_total",
			Help:      "Count of receipt hand-off delivery outcomes.",
		}, []string{"result"})
		ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Current number of live terminal sessions.",
		})

		reg.MustRegister(SalesSubmittedTotal, SaleValue, GiftCardAllocationsTotal, ReceiptHandoffTotal, ActiveSessions)
	})
}

// ObserveSaleSubmitted records one submission outcome. Value is only observed
// for successful submissions.
func ObserveSaleSubmitted(result, method string, total int64) {
	if SalesSubmittedTotal == nil {
		return
	}
	SalesSubmittedTotal.WithLabelValues(result, method).Inc()
	if result == "ok" && SaleValue != nil {
		SaleValue.WithLabelValues(method).Observe(float64(total))
	}
}
