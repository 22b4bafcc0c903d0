package obs

import "github.com/prometheus/client_golang/prometheus"

// DomainMetrics groups Prometheus collectors for terminal business events.
type DomainMetrics struct {
	OrdersPlaced     *prometheus.CounterVec
	OrderValue       prometheus.Histogram
	PaymentsAdded    *prometheus.CounterVec
	ExchangesLooked  prometheus.Counter
	ExchangesDone    *prometheus.CounterVec
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
}

// NewDomainMetrics registers and returns business-level collectors.
func NewDomainMetrics(namespace string, reg prometheus.Registerer) *DomainMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &DomainMetrics{
		OrdersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_placed_total",
			Help:      "Orders submitted from the terminal, by result.",
		}, []string{"result"}),
		OrderValue: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_value",
			Help:      "Distribution of placed order grand totals.",
			Buckets:   prometheus.ExponentialBuckets(100, 3, 9),
		}),
		PaymentsAdded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_added_total",
			Help:      "Payment lines captured during checkout, by method.",
		}, []string{"method"}),
		ExchangesLooked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchange_lookups_total",
			Help:      "Exchange eligibility lookups performed.",
		}),
		ExchangesDone: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exchanges_total",
			Help:      "Exchange submissions, by result.",
		}, []string{"result"}),
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Requests to the merchant backend, by operation and outcome.",
		}, []string{"op", "outcome"}),
		UpstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_ms",
			Help:      "Merchant backend request latency in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"op"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups for catalog and payment method data.",
		}, []string{"cache", "outcome"}),
	}
	m.OrdersPlaced = registerCounterVec(reg, m.OrdersPlaced)
	m.OrderValue = registerHistogram(reg, m.OrderValue)
	m.PaymentsAdded = registerCounterVec(reg, m.PaymentsAdded)
	m.ExchangesLooked = registerCounter(reg, m.ExchangesLooked)
	m.ExchangesDone = registerCounterVec(reg, m.ExchangesDone)
	m.UpstreamRequests = registerCounterVec(reg, m.UpstreamRequests)
	m.UpstreamLatency = registerHistogramVec(reg, m.UpstreamLatency)
	m.CacheHits = registerCounterVec(reg, m.CacheHits)
	return m
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}
