package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 访问申请提交计数
	RequestSubmittedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_request_submitted_total",
			Help: "Total number of access requests submitted",
		},
		[]string{"purpose"},
	)

	// 审批决定计数
	DecisionCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_request_decision_total",
			Help: "Total number of access request decisions",
		},
		[]string{"status", "channel"}, // channel: dashboard, email
	)

	// 通知发送计数
	NotificationCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"kind", "result"}, // result: sent, failed
	)

	// 后台任务处理延迟（毫秒）
	JobLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_job_latency_ms",
			Help:    "Notification job processing latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of slow database queries",
		},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementRequestSubmitted 增加提交计数
func IncrementRequestSubmitted(purpose string) {
	RequestSubmittedCount.WithLabelValues(purpose).Inc()
}

// IncrementDecision 增加审批计数
func IncrementDecision(status, channel string) {
	DecisionCount.WithLabelValues(status, channel).Inc()
}

// IncrementNotification 增加通知发送计数
func IncrementNotification(kind, result string) {
	NotificationCount.WithLabelValues(kind, result).Inc()
}

// RecordJobLatency 记录后台任务延迟
func RecordJobLatency(routingKey string, duration time.Duration) {
	JobLatency.WithLabelValues(routingKey).Observe(float64(duration.Milliseconds()))
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery() {
	SlowQueryCount.Inc()
}
