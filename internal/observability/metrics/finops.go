package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FinOpsMetrics counts gate activity: cache effectiveness, recorded spend and
// denied calls. All methods are nil-safe so the gate works without metrics in
// tests.
type FinOpsMetrics struct {
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
	spendUSD     *prometheus.CounterVec
	callsDenied  *prometheus.CounterVec
	callsAllowed *prometheus.CounterVec
}

func NewFinOpsMetrics(service string, registry *prometheus.Registry) *FinOpsMetrics {
	cacheHits := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseaudit",
			Subsystem: "finops",
			Name:      "cache_hits_total",
			Help:      "Cache hits by cache name.",
		},
		[]string{"service", "cache"},
	)
	cacheMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseaudit",
			Subsystem: "finops",
			Name:      "cache_misses_total",
			Help:      "Cache misses by cache name.",
		},
		[]string{"service", "cache"},
	)
	spendUSD := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseaudit",
			Subsystem: "finops",
			Name:      "spend_usd_total",
			Help:      "Recorded provider spend in USD by phase and model.",
		},
		[]string{"service", "phase", "model"},
	)
	callsDenied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseaudit",
			Subsystem: "finops",
			Name:      "calls_denied_total",
			Help:      "Paid calls denied before execution, by reason.",
		},
		[]string{"service", "reason"},
	)
	callsAllowed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caseaudit",
			Subsystem: "finops",
			Name:      "calls_allowed_total",
			Help:      "Paid calls that reached the provider, by phase.",
		},
		[]string{"service", "phase"},
	)

	registry.MustRegister(cacheHits, cacheMisses, spendUSD, callsDenied, callsAllowed)

	return &FinOpsMetrics{
		cacheHits:    cacheHits,
		cacheMisses:  cacheMisses,
		spendUSD:     spendUSD,
		callsDenied:  callsDenied,
		callsAllowed: callsAllowed,
	}
}

func (m *FinOpsMetrics) CacheHit(service, cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(service, cache).Inc()
}

func (m *FinOpsMetrics) CacheMiss(service, cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(service, cache).Inc()
}

func (m *FinOpsMetrics) AddSpend(service, phase, model string, usd float64) {
	if m == nil {
		return
	}
	m.spendUSD.WithLabelValues(service, phase, model).Add(usd)
}

func (m *FinOpsMetrics) CallDenied(service, reason string) {
	if m == nil {
		return
	}
	m.callsDenied.WithLabelValues(service, reason).Inc()
}

func (m *FinOpsMetrics) CallAllowed(service, phase string) {
	if m == nil {
		return
	}
	m.callsAllowed.WithLabelValues(service, phase).Inc()
}
