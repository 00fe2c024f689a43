package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fire_evac"

// Metrics 业务与 HTTP 指标
// 使用独立 Registry，测试中可多次创建
type Metrics struct {
	registry *prometheus.Registry

	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
	incidentsActive   prometheus.Gauge
	incidentsTotal    *prometheus.CounterVec
	checkins          *prometheus.CounterVec
	helpRequests      *prometheus.CounterVec
	realtimeSubscribe prometheus.Gauge
}

// New 创建并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP 请求总数",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		incidentsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "incidents_active",
			Help: "进行中的疏散事件数",
		}),
		incidentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "incident_transitions_total",
			Help: "疏散事件状态变更次数",
		}, []string{"transition"}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "checkins_total",
			Help: "签到尝试次数（按方式与结果）",
		}, []string{"method", "outcome"}),
		helpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "help_requests_total",
			Help: "求助状态变更次数",
		}, []string{"status"}),
		realtimeSubscribe: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "realtime_subscribers",
			Help: "当前实时订阅数",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.incidentsActive, m.incidentsTotal,
		m.checkins, m.helpRequests, m.realtimeSubscribe,
	)
	return m
}

// Handler /metrics 导出
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry 测试用
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveHTTP 记录一次请求
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncidentStarted 事件开始
func (m *Metrics) IncidentStarted() {
	if m == nil {
		return
	}
	m.incidentsActive.Inc()
	m.incidentsTotal.WithLabelValues("start").Inc()
}

// IncidentEnded 事件结束
func (m *Metrics) IncidentEnded() {
	if m == nil {
		return
	}
	m.incidentsActive.Dec()
	m.incidentsTotal.WithLabelValues("end").Inc()
}

// SetActiveIncidents 启动时按数据库校准
func (m *Metrics) SetActiveIncidents(n int) {
	if m == nil {
		return
	}
	m.incidentsActive.Set(float64(n))
}

// Checkin 记录签到结果：created / existing / rejected
func (m *Metrics) Checkin(method, outcome string) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(method, outcome).Inc()
}

// HelpRequest 记录求助状态变更
func (m *Metrics) HelpRequest(status string) {
	if m == nil {
		return
	}
	m.helpRequests.WithLabelValues(status).Inc()
}

// SubscriberAdded 实时订阅增加
func (m *Metrics) SubscriberAdded() {
	if m == nil {
		return
	}
	m.realtimeSubscribe.Inc()
}

// SubscriberRemoved 实时订阅减少
func (m *Metrics) SubscriberRemoved() {
	if m == nil {
		return
	}
	m.realtimeSubscribe.Dec()
}
