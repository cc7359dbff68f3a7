// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector 指标收集器
type Collector struct {
	registry *prometheus.Registry

	// LLM 指标
	llmRequestsTotal   *prometheus.CounterVec
	llmRequestDuration *prometheus.HistogramVec
	keyRotations       *prometheus.CounterVec
	retryAttempts      *prometheus.CounterVec

	// 持久化指标
	persistenceErrors *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器。每个收集器持有独立的 Registry，
// 避免测试中重复注册冲突。
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.llmRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of LLM requests by provider, role and status.",
		},
		[]string{"provider", "role", "status"},
	)

	c.llmRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request duration in seconds, including rotation retries.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "role"},
	)

	c.keyRotations = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "key_rotations_total",
			Help:      "Total number of credential rotations triggered by quota errors.",
		},
		[]string{"provider"},
	)

	c.retryAttempts = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Total number of LLM call retries after credential rotation.",
		},
		[]string{"provider"},
	)

	c.persistenceErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Total number of swallowed persistence I/O errors.",
		},
		[]string{"op"},
	)

	return c
}

// Registry 返回底层 Registry，供抓取端点使用。
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordLLMRequest 记录一次 LLM 逻辑调用的结果与耗时。
// 耗时覆盖轮换重试在内的整个调用。
func (c *Collector) RecordLLMRequest(provider, role, status string, seconds float64) {
	c.llmRequestsTotal.WithLabelValues(provider, role, status).Inc()
	c.llmRequestDuration.WithLabelValues(provider, role).Observe(seconds)
}

// RecordRotation 记录一次凭据轮换。
func (c *Collector) RecordRotation(provider string) {
	c.keyRotations.WithLabelValues(provider).Inc()
}

// RecordRetry 记录一次轮换后的重试。
func (c *Collector) RecordRetry(provider string) {
	c.retryAttempts.WithLabelValues(provider).Inc()
}

// RecordPersistenceError 记录一次被吞掉的持久化错误。
func (c *Collector) RecordPersistenceError(op string) {
	c.persistenceErrors.WithLabelValues(op).Inc()
}
