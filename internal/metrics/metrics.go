// Package metrics exposes Prometheus instrumentation for the trading
// engine. Counters are labelled sparingly to keep cardinality bounded by
// operation kind, not by market.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totem_trades_executed_total",
			Help: "Total number of executed trade operations",
		},
		[]string{"kind", "side"}, // buy/sell, YES/NO
	)

	TradeChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "totem_trade_chunks",
			Help:    "Number of chunks a buy order was split into",
			Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
		},
	)

	TradeVolume = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totem_trade_volume_collateral",
			Help: "Gross collateral traded, in 6-decimal units",
		},
		[]string{"kind"},
	)

	SolverDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "totem_solver_duration_seconds",
			Help:    "Duration of trade solver invocations",
			Buckets: prometheus.DefBuckets,
		},
	)

	MarketsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totem_markets_resolved_total",
			Help: "Total number of market resolutions",
		},
		[]string{"path"}, // manual, oracle
	)

	Redemptions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "totem_redemptions_total",
			Help: "Total number of winning-share redemptions",
		},
	)

	OracleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "totem_oracle_failures_total",
			Help: "Oracle lookups that blocked resolution",
		},
		[]string{"reason"}, // fetch, not_ok, stale
	)
)
