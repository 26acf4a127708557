package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SettlementMetrics holds the Prometheus instruments for the settlement flow.
type SettlementMetrics struct {
	// Webhook outcomes, labeled by direction (deposit/withdrawal) and outcome
	// (accepted/validation_error/insufficient_balance/network_error/internal_error).
	SettlementsTotal *prometheus.CounterVec

	// Settled USDC amounts by direction, in micro units.
	SettledMicroUsdcTotal *prometheus.CounterVec

	// Latency of the custody gateway dispatch call.
	ChainDispatchDuration *prometheus.HistogramVec

	// Ledger status transitions, labeled by target status.
	LedgerStatusTransitionsTotal *prometheus.CounterVec
}

// NewSettlementMetrics registers and returns the settlement metrics.
func NewSettlementMetrics() *SettlementMetrics {
	return &SettlementMetrics{
		SettlementsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settlements_total",
				Help: "Number of settlement webhook requests by direction and outcome",
			},
			[]string{"direction", "outcome"},
		),
		SettledMicroUsdcTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "settled_micro_usdc_total",
				Help: "Total settled USDC amount in micro units by direction",
			},
			[]string{"direction"},
		),
		ChainDispatchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chain_dispatch_duration_seconds",
				Help:    "Latency of custody gateway transfer submissions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		LedgerStatusTransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_status_transitions_total",
				Help: "Withdrawal ledger status transitions by target status",
			},
			[]string{"status"},
		),
	}
}
