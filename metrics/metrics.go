package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	DecisionsEmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goqe_decisions_emitted_total",
			Help: "Total number of trade decisions emitted (by strategy).",
		},
		[]string{"strategy"},
	)

	OpensExecuted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goqe_opens_executed_total",
			Help: "Total number of positions opened (by trade type).",
		},
		[]string{"trade_type"},
	)

	ExitsByReason = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goqe_exits_total",
			Help: "Total number of position closes (by exit reason).",
		},
		[]string{"reason"},
	)

	OpensRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goqe_opens_rejected_total",
			Help: "Open attempts rejected before execution (by cause).",
		},
		[]string{"cause"},
	)

	PositionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goqe_positions_open",
			Help: "Current number of open positions.",
		},
	)

	EquityGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "goqe_equity",
			Help: "Current simulated margin balance (paper) or wallet balance (live).",
		},
	)

	PairSkips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "goqe_pair_skips_total",
			Help: "Pairs skipped during a cycle (by stage).",
		},
		[]string{"stage"},
	)
)

func init() {
	prometheus.MustRegister(DecisionsEmitted, OpensExecuted, ExitsByReason,
		OpensRejected, PositionsOpen, EquityGauge, PairSkips)
}
