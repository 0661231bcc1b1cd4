package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics collects Prometheus metrics for order submission and
// matching (spec.md §4.6), following the same constructor/fields shape
// as WebSocketMetrics in this package.
type EngineMetrics struct {
	ordersSubmitted   *prometheus.CounterVec // labels: trading_pair, side, order_type
	ordersRejected    *prometheus.CounterVec // labels: trading_pair, reason
	fillsTotal        *prometheus.CounterVec // labels: trading_pair
	matchLatency      *prometheus.HistogramVec
	orderBookDepth    *prometheus.GaugeVec // labels: trading_pair, side
	pairWorkerQueue   *prometheus.GaugeVec // labels: trading_pair
}

// NewEngineMetrics registers and returns EngineMetrics against registry.
func NewEngineMetrics(registry prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		ordersSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_submitted_total",
			Help: "Total number of orders accepted for matching.",
		}, []string{"trading_pair", "side", "order_type"}),
		ordersRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_orders_rejected_total",
			Help: "Total number of orders rejected before or during matching.",
		}, []string{"trading_pair", "reason"}),
		fillsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clob_fills_total",
			Help: "Total number of fills produced by matching.",
		}, []string{"trading_pair"}),
		matchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clob_match_latency_seconds",
			Help:    "Time spent inside matching.Match per submission.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 16),
		}, []string{"trading_pair"}),
		orderBookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clob_orderbook_depth",
			Help: "Number of price levels (within the top-20 snapshot) on one side of a pair's book.",
		}, []string{"trading_pair", "side"}),
		pairWorkerQueue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "clob_pair_worker_queue_depth",
			Help: "Number of commands buffered in a pair's single-writer channel.",
		}, []string{"trading_pair"}),
	}

	registry.MustRegister(m.ordersSubmitted, m.ordersRejected, m.fillsTotal, m.matchLatency, m.orderBookDepth, m.pairWorkerQueue)
	return m
}

// RecordSubmission increments the submitted-orders counter.
func (m *EngineMetrics) RecordSubmission(pair, side, orderType string) {
	m.ordersSubmitted.WithLabelValues(pair, side, orderType).Inc()
}

// RecordRejection increments the rejected-orders counter.
func (m *EngineMetrics) RecordRejection(pair, reason string) {
	m.ordersRejected.WithLabelValues(pair, reason).Inc()
}

// RecordFills adds n to the fills counter for pair.
func (m *EngineMetrics) RecordFills(pair string, n int) {
	if n <= 0 {
		return
	}
	m.fillsTotal.WithLabelValues(pair).Add(float64(n))
}

// ObserveMatchLatency records how long one matching.Match call took.
func (m *EngineMetrics) ObserveMatchLatency(pair string, seconds float64) {
	m.matchLatency.WithLabelValues(pair).Observe(seconds)
}

// SetDepth updates the price-level-count gauge for one side of pair.
func (m *EngineMetrics) SetDepth(pair, side string, depth int) {
	m.orderBookDepth.WithLabelValues(pair, side).Set(float64(depth))
}

// SetQueueDepth updates the pair-worker command queue gauge.
func (m *EngineMetrics) SetQueueDepth(pair string, depth int) {
	m.pairWorkerQueue.WithLabelValues(pair).Set(float64(depth))
}
