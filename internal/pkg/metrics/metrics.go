package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PriceLookups counts aggregator price resolutions by where the answer
	// came from: cache, store, upstream or miss.
	PriceLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_price_lookups_total",
			Help: "Price lookups by resolution source.",
		},
		[]string{"source"},
	)

	// TradesExecuted counts successfully settled trades.
	TradesExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tradesim_trades_executed_total",
		Help: "Successfully executed trades.",
	})

	// TradesRejected counts trades rejected by validation, labelled by the
	// failed check.
	TradesRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_trades_rejected_total",
			Help: "Trades rejected before execution.",
		},
		[]string{"reason"},
	)

	// SnapshotTicks counts snapshot scheduler runs by outcome.
	SnapshotTicks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradesim_snapshot_ticks_total",
			Help: "Portfolio snapshot scheduler ticks by outcome.",
		},
		[]string{"outcome"},
	)
)

// MustRegisterMetrics registers all collectors with the default registry.
// Called once from main.
func MustRegisterMetrics() {
	prometheus.MustRegister(PriceLookups, TradesExecuted, TradesRejected, SnapshotTicks)
}
