package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	resultSuccess = "success"
	resultFailed  = "failed"
)

// Metrics 基于 Prometheus 的运行指标
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	busy              prometheus.Gauge
	refreshes         *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
}

// New 创建指标并注册到独立的 registry
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Mutating operations by name and result",
			},
			[]string{"operation", "result"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time from request to ledger confirmation",
				Buckets:   []float64{.05, .1, .5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		busy: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "busy",
				Help:      "1 while a mutating operation awaits ledger confirmation",
			},
		),
		refreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refreshes_total",
				Help:      "Cache refreshes from ledger queries by result",
			},
			[]string{"result"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}

	m.registry.MustRegister(
		m.operations,
		m.operationDuration,
		m.busy,
		m.refreshes,
		m.httpRequests,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveOperation 记录一次变更操作
func (m *Metrics) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, result(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveRefresh 记录一次缓存刷新
func (m *Metrics) ObserveRefresh(err error) {
	m.refreshes.WithLabelValues(result(err)).Inc()
}

// SetBusy 更新互斥门状态
func (m *Metrics) SetBusy(busy bool) {
	if busy {
		m.busy.Set(1)
		return
	}
	m.busy.Set(0)
}

// IncHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) IncHTTPRequest(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 使用的 HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

func result(err error) string {
	if err != nil {
		return resultFailed
	}
	return resultSuccess
}
