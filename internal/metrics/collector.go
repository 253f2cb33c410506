// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/BaSui01/pageflow/browser"
)

var _ browser.Observer = (*Collector)(nil)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，实现 browser.Observer
type Collector struct {
	// 门面操作指标
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	// 动作指标
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec

	// 会话指标
	sessionsOpened  *prometheus.CounterVec
	sessionsActive  *prometheus.GaugeVec
	sessionLifetime *prometheus.HistogramVec

	// 抽取指标
	recordsExtracted prometheus.Histogram

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewCollector 创建指标收集器。reg 为 nil 时注册到默认 registry
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		c.gatherer = g
	}
	factory := promauto.With(reg)

	c.operationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Total number of automation calls",
		},
		[]string{"operation", "provider", "status"},
	)

	c.operationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Automation call duration in seconds, session acquisition included",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation", "provider"},
	)

	c.actionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Total number of dispatched actions",
		},
		[]string{"kind", "status"},
	)

	c.actionDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Action duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	c.sessionsOpened = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_opened_total",
			Help:      "Total number of browser sessions opened",
		},
		[]string{"provider"},
	)

	c.sessionsActive = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of live browser sessions",
		},
		[]string{"provider"},
	)

	c.sessionLifetime = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lifetime_seconds",
			Help:      "Time between session acquisition and release",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider"},
	)

	c.recordsExtracted = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "records_extracted",
			Help:      "Records produced per structured extraction",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)

	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		},
		[]string{"operation"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		},
		[]string{"operation"},
	)

	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open run-history database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle run-history database connections",
		},
		[]string{"database"},
	)

	c.logger.Debug("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🌐 browser.Observer 实现
// =============================================================================

// ObserveOperation 记录一次门面调用
func (c *Collector) ObserveOperation(op, provider, status string, d time.Duration) {
	c.operationsTotal.WithLabelValues(op, provider, status).Inc()
	c.operationDuration.WithLabelValues(op, provider).Observe(d.Seconds())
}

// ObserveAction 记录一次动作派发
func (c *Collector) ObserveAction(kind, status string, d time.Duration) {
	c.actionsTotal.WithLabelValues(kind, status).Inc()
	c.actionDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveSessionOpened 记录会话获取成功
func (c *Collector) ObserveSessionOpened(provider string) {
	c.sessionsOpened.WithLabelValues(provider).Inc()
	c.sessionsActive.WithLabelValues(provider).Inc()
}

// ObserveSessionClosed 记录会话释放
func (c *Collector) ObserveSessionClosed(provider string, lifetime time.Duration) {
	c.sessionsActive.WithLabelValues(provider).Dec()
	c.sessionLifetime.WithLabelValues(provider).Observe(lifetime.Seconds())
}

// ObserveRecords 记录单次抽取的记录数
func (c *Collector) ObserveRecords(n int) {
	c.recordsExtracted.Observe(float64(n))
}

// ObserveCache 记录结果缓存命中情况
func (c *Collector) ObserveCache(op string, hit bool) {
	if hit {
		c.cacheHits.WithLabelValues(op).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(op).Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 📄 导出
// =============================================================================

// WriteTextfile 以 Prometheus 文本格式写入 path，供 node_exporter textfile collector 读取
func (c *Collector) WriteTextfile(path string) error {
	if c.gatherer == nil {
		return fmt.Errorf("registerer does not implement prometheus.Gatherer")
	}
	if err := prometheus.WriteToTextfile(path, c.gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	c.logger.Debug("metrics textfile written", zap.String("path", path))
	return nil
}
