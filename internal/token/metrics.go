package token

import (
	"errors"

	"github.com/bissquit/subledger/internal/domain"
	"github.com/bissquit/subledger/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transfers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "token",
			Name:      "transfers_total",
			Help:      "Total token transfers by status",
		},
		[]string{"status"},
	)

	minted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "token",
			Name:      "minted_total",
			Help:      "Total base units minted across all mints",
		},
	)
)

func recordTransfer(err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrSubscriptionExpired), errors.Is(err, domain.ErrRecordNotFound):
		status = "rejected"
	case errors.Is(err, domain.ErrInsufficientFunds):
		status = "insufficient_funds"
	default:
		status = "failed"
	}
	transfers.WithLabelValues(status).Inc()
}
