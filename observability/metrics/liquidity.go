package metrics

import (
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type LiquidityMetrics struct {
	operations      *prometheus.CounterVec
	rejections      *prometheus.CounterVec
	rewardsMinted   prometheus.Counter
	accountsAccrued prometheus.Counter
	batchDuration   prometheus.Histogram
	currentEpoch    prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

var (
	liquidityOnce     sync.Once
	liquidityRegistry *LiquidityMetrics
)

// Liquidity returns the lazily-initialised pool metrics registry.
func Liquidity() *LiquidityMetrics {
	liquidityOnce.Do(func() {
		liquidityRegistry = &LiquidityMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "operations_total",
				Help:      "Pool operations segmented by kind and outcome.",
			}, []string{"operation", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "rejections_total",
				Help:      "Rejected pool operations segmented by reason.",
			}, []string{"reason"}),
			rewardsMinted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "rewards_minted_total",
				Help:      "fUSD minted by epoch accrual.",
			}),
			accountsAccrued: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "accounts_accrued_total",
				Help:      "Accounts whose balance changed during batch accrual.",
			}),
			batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "reward_batch_duration_seconds",
				Help:      "Latency of reward accrual batches.",
				Buckets:   prometheus.DefBuckets,
			}),
			currentEpoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "fusd",
				Subsystem: "pool",
				Name:      "epoch",
				Help:      "Epoch targeted by the most recent accrual batch.",
			}),
			httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "fusd",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served by the pool daemon segmented by route and status class.",
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			liquidityRegistry.operations,
			liquidityRegistry.rejections,
			liquidityRegistry.rewardsMinted,
			liquidityRegistry.accountsAccrued,
			liquidityRegistry.batchDuration,
			liquidityRegistry.currentEpoch,
			liquidityRegistry.httpRequests,
		)
	})
	return liquidityRegistry
}

func label(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

// ObserveOperation counts one pool operation. An empty reason means success.
func (m *LiquidityMetrics) ObserveOperation(operation, reason string) {
	if m == nil {
		return
	}
	operation = label(operation, "unknown")
	if strings.TrimSpace(reason) == "" {
		m.operations.WithLabelValues(operation, "success").Inc()
		return
	}
	m.operations.WithLabelValues(operation, "error").Inc()
	m.rejections.WithLabelValues(label(reason, "unknown")).Inc()
}

// ObserveBatch records the outcome of one accrual batch.
func (m *LiquidityMetrics) ObserveBatch(epoch uint64, accrued int, minted *big.Int, took time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.Observe(took.Seconds())
	m.currentEpoch.Set(float64(epoch))
	if accrued > 0 {
		m.accountsAccrued.Add(float64(accrued))
	}
	if minted != nil && minted.Sign() > 0 {
		value, _ := new(big.Float).SetInt(minted).Float64()
		m.rewardsMinted.Add(value)
	}
}

// ObserveHTTP counts one served request.
func (m *LiquidityMetrics) ObserveHTTP(route string, status int) {
	if m == nil {
		return
	}
	class := "5xx"
	switch {
	case status < 300:
		class = "2xx"
	case status < 400:
		class = "3xx"
	case status < 500:
		class = "4xx"
	}
	m.httpRequests.WithLabelValues(label(route, "unmatched"), class).Inc()
}
