package observability

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type apiMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

type ledgerMetrics struct {
	operations      *prometheus.CounterVec
	events          *prometheus.CounterVec
	totalLiquidity  prometheus.Gauge
	totalStaked     prometheus.Gauge
	accumulatedFees prometheus.Gauge
	feeRateBps      prometheus.Gauge
	flashLoanActive prometheus.Gauge
	allowListSize   prometheus.Gauge

	mu   sync.RWMutex
	last LedgerSnapshot
}

var (
	apiMetricsOnce sync.Once
	apiRegistry    *apiMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// API returns the lazily-initialised registry recording HTTP activity of the
// ledger daemon.
func API() *apiMetrics {
	apiMetricsOnce.Do(func() {
		apiRegistry = &apiMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ryft",
				Subsystem: "api",
				Name:      "requests_total",
				Help:      "Total API requests segmented by route and status code.",
			}, []string{"route", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "ryft",
				Subsystem: "api",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for API handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ryft",
				Subsystem: "api",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by rate limits.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(apiRegistry.requests, apiRegistry.latency, apiRegistry.throttles)
	})
	return apiRegistry
}

// Observe records the outcome of an API request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *apiMetrics) Observe(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.latency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for route.
func (m *apiMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.throttles.WithLabelValues(route).Inc()
}

// Ledger returns the registry tracking ledger operations and pool gauges.
func Ledger() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		gauge := func(name, help string) prometheus.Gauge {
			return prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "ryft",
				Subsystem: "ledger",
				Name:      name,
				Help:      help,
			})
		}
		ledgerRegistry = &ledgerMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ryft",
				Subsystem: "ledger",
				Name:      "operations_total",
				Help:      "Ledger operations segmented by instruction and result.",
			}, []string{"op", "result"}),
			events: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "ryft",
				Subsystem: "ledger",
				Name:      "events_total",
				Help:      "Committed ledger events segmented by type.",
			}, []string{"type"}),
			totalLiquidity:  gauge("total_liquidity", "Aggregate pool liquidity counter."),
			totalStaked:     gauge("total_staked", "Aggregate staked amount."),
			accumulatedFees: gauge("accumulated_fees", "Flash loan fees accrued to the pool."),
			feeRateBps:      gauge("fee_rate_bps", "Configured flash loan fee rate in basis points."),
			flashLoanActive: gauge("flash_loan_active", "1 while a flash loan is outstanding."),
			allowListSize:   gauge("allow_list_size", "Number of allow-listed borrowers."),
		}
		prometheus.MustRegister(
			ledgerRegistry.operations,
			ledgerRegistry.events,
			ledgerRegistry.totalLiquidity,
			ledgerRegistry.totalStaked,
			ledgerRegistry.accumulatedFees,
			ledgerRegistry.feeRateBps,
			ledgerRegistry.flashLoanActive,
			ledgerRegistry.allowListSize,
		)
	})
	return ledgerRegistry
}

// RecordOperation counts one executed instruction. An empty reason is
// recorded as "ok".
func (m *ledgerMetrics) RecordOperation(op string, reason string) {
	if m == nil {
		return
	}
	op = strings.TrimSpace(op)
	if op == "" {
		op = "unknown"
	}
	if reason == "" {
		reason = "ok"
	}
	m.operations.WithLabelValues(op, reason).Inc()
}

// RecordEvent increments the committed event counter.
func (m *ledgerMetrics) RecordEvent(eventType string) {
	if m == nil || strings.TrimSpace(eventType) == "" {
		return
	}
	m.events.WithLabelValues(eventType).Inc()
}

// LedgerSnapshot carries the pool figures exported as gauges.
type LedgerSnapshot struct {
	TotalLiquidity  uint64
	TotalStaked     uint64
	AccumulatedFees uint64
	FeeRateBps      uint64
	FlashLoanActive bool
	AllowListSize   int
}

// SetSnapshot publishes the latest committed pool figures.
func (m *ledgerMetrics) SetSnapshot(s LedgerSnapshot) {
	if m == nil {
		return
	}
	m.totalLiquidity.Set(float64(s.TotalLiquidity))
	m.totalStaked.Set(float64(s.TotalStaked))
	m.accumulatedFees.Set(float64(s.AccumulatedFees))
	m.feeRateBps.Set(float64(s.FeeRateBps))
	active := 0.0
	if s.FlashLoanActive {
		active = 1
	}
	m.flashLoanActive.Set(active)
	m.allowListSize.Set(float64(s.AllowListSize))

	m.mu.Lock()
	m.last = s
	m.mu.Unlock()
}

// Snapshot returns the figures last passed to SetSnapshot.
func (m *ledgerMetrics) Snapshot() LedgerSnapshot {
	if m == nil {
		return LedgerSnapshot{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
