package subscription

import (
	"github.com/bissquit/subledger/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Hook decision labels.
const (
	decisionAllowed   = "allowed"
	decisionExpired   = "expired"
	decisionNotFound  = "not_found"
	decisionMalformed = "malformed"
)

var (
	subscriptionsInitialized = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "subscription",
			Name:      "initialized_total",
			Help:      "Total subscription records created",
		},
	)

	subscriptionPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "subscription",
			Name:      "payments_total",
			Help:      "Total subscription payments by kind (new period or early renewal)",
		},
		[]string{"kind"},
	)

	subscriptionFees = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "subscription",
			Name:      "fees_lamports_total",
			Help:      "Total lamports collected as subscription fees",
		},
	)

	hookDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "transfer_hook",
			Name:      "decisions_total",
			Help:      "Transfer authorization decisions by result",
		},
		[]string{"result"},
	)

	activeSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "subscription",
			Name:      "active",
			Help:      "Number of subscriptions that are currently active",
		},
	)
)

func recordPayment(renewal bool, fee uint64) {
	kind := "new_period"
	if renewal {
		kind = "early_renewal"
	}
	subscriptionPayments.WithLabelValues(kind).Inc()
	subscriptionFees.Add(float64(fee))
}

func recordHookDecision(result string) {
	hookDecisions.WithLabelValues(result).Inc()
}

// RecordActiveSubscriptions updates the active subscriptions gauge.
func RecordActiveSubscriptions(count int) {
	activeSubscriptions.Set(float64(count))
}
