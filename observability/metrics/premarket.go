package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PremarketMetrics tracks venue operations: offers opened, fills, aborts and
// settlement progress.
type PremarketMetrics struct {
	offersCreated   *prometheus.CounterVec
	takersFilled    prometheus.Counter
	stocksRelisted  prometheus.Counter
	abortsProcessed *prometheus.CounterVec
	settlements     *prometheus.CounterVec
	rpcRequests     *prometheus.CounterVec
}

var (
	premarketOnce     sync.Once
	premarketRegistry *PremarketMetrics
)

// Premarket returns the process-wide venue metric set, registering the
// collectors on first use.
func Premarket() *PremarketMetrics {
	premarketOnce.Do(func() {
		premarketRegistry = &PremarketMetrics{
			offersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "premarket_offers_created_total",
				Help: "Count of offers created by side and settle mode.",
			}, []string{"side", "mode"}),
			takersFilled: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "premarket_takers_filled_total",
				Help: "Count of taker fills accepted.",
			}),
			stocksRelisted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "premarket_stocks_relisted_total",
				Help: "Count of positions relisted on the secondary market.",
			}),
			abortsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "premarket_aborts_total",
				Help: "Count of pre-open aborts by actor.",
			}, []string{"actor"}),
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "premarket_settlements_total",
				Help: "Count of settlement operations by kind.",
			}, []string{"kind"}),
			rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "premarket_rpc_requests_total",
				Help: "Count of RPC requests by method and outcome.",
			}, []string{"method", "outcome"}),
		}
		prometheus.MustRegister(
			premarketRegistry.offersCreated,
			premarketRegistry.takersFilled,
			premarketRegistry.stocksRelisted,
			premarketRegistry.abortsProcessed,
			premarketRegistry.settlements,
			premarketRegistry.rpcRequests,
		)
	})
	return premarketRegistry
}

func (m *PremarketMetrics) ObserveOfferCreated(side, mode string) {
	if m == nil {
		return
	}
	m.offersCreated.WithLabelValues(side, mode).Inc()
}

func (m *PremarketMetrics) ObserveTakerFilled() {
	if m == nil {
		return
	}
	m.takersFilled.Inc()
}

func (m *PremarketMetrics) ObserveRelist() {
	if m == nil {
		return
	}
	m.stocksRelisted.Inc()
}

func (m *PremarketMetrics) ObserveAbort(actor string) {
	if m == nil {
		return
	}
	if actor == "" {
		actor = "unknown"
	}
	m.abortsProcessed.WithLabelValues(actor).Inc()
}

func (m *PremarketMetrics) ObserveSettlement(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.settlements.WithLabelValues(kind).Inc()
}

func (m *PremarketMetrics) ObserveRPC(method, outcome string) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(method, outcome).Inc()
}
