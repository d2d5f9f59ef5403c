// internal/pkg/metrics/metrics.go
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	ReservationTotal *prometheus.CounterVec // outcome=accepted|out_of_stock|duplicate|not_found|not_started|ended|error
	RateLimitedTotal *prometheus.CounterVec // rule

	MaterializeTotal   *prometheus.CounterVec   // result=created|duplicate|fatal|error
	MaterializeLatency *prometheus.HistogramVec // result

	CacheMutationTotal *prometheus.CounterVec // channel=update|clean, kind=UPDATE|DELETE, result=ok|retry|cleanup|fail
	LockAcquireTotal   *prometheus.CounterVec // backend, result=success|timeout|error

	DeadLetterTotal *prometheus.CounterVec // topic
}

// New 创建一组未注册的指标，测试里用它避免重复注册。
func New() *Metrics {
	return &Metrics{
		ReservationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_reservation_total",
				Help: "Total reservation attempts by outcome",
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_rate_limited_total",
				Help: "Total requests rejected by the sliding window limiter",
			},
			[]string{"rule"},
		),
		MaterializeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_materialize_total",
				Help: "Total order intents processed by the materializer",
			},
			[]string{"result"},
		),
		MaterializeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "seckill_materialize_latency_ms",
				Help:    "Latency of order materialization (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"result"},
		),
		CacheMutationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_cache_mutation_total",
				Help: "Cache mutations applied by the cache listeners",
			},
			[]string{"channel", "kind", "result"},
		),
		LockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_lock_acquire_total",
				Help: "Distributed lock acquire attempts by result",
			},
			[]string{"backend", "result"},
		),
		DeadLetterTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "seckill_dead_letter_total",
				Help: "Messages moved to a dead letter topic",
			},
			[]string{"topic"},
		),
	}
}

// MustRegister 把所有指标注册到给定的 Registerer。
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.ReservationTotal,
		m.RateLimitedTotal,
		m.MaterializeTotal,
		m.MaterializeLatency,
		m.CacheMutationTotal,
		m.LockAcquireTotal,
		m.DeadLetterTotal,
	)
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default 返回注册到全局 Registry 的进程级指标。
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New()
		defaultMetrics.MustRegister(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
