package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 消息指标
	MessagesSent    *prometheus.CounterVec
	MessagesRead    prometheus.Counter
	MessagesReplied prometheus.Counter
	MessagesDeleted prometheus.Counter
	MessagesUnread  prometheus.Gauge

	// 会话指标
	SessionsActive  prometheus.Gauge
	LoginsTotal     *prometheus.CounterVec
	SessionsExpired prometheus.Counter

	// 考勤与学习记录指标
	AttendanceRecords *prometheus.CounterVec
	StudentLogsSaved  prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP 请求指标
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "maktab_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		// 消息指标
		MessagesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_messages_sent_total",
				Help: "Total number of messages sent, by sender role",
			},
			[]string{"role"},
		),

		MessagesRead: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_messages_read_total",
				Help: "Total number of messages marked as read",
			},
		),

		MessagesReplied: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_messages_replied_total",
				Help: "Total number of replies appended to threads",
			},
		),

		MessagesDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_messages_deleted_total",
				Help: "Total number of messages deleted",
			},
		),

		MessagesUnread: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maktab_messages_unread",
				Help: "Current number of unread inbox messages across all users",
			},
		),

		// 会话指标
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "maktab_sessions_active",
				Help: "Current number of active messaging sessions",
			},
		),

		LoginsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_logins_total",
				Help: "Total number of successful logins, by role",
			},
			[]string{"role"},
		),

		SessionsExpired: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_sessions_expired_total",
				Help: "Total number of messaging sessions pruned after expiry",
			},
		),

		// 考勤与学习记录指标
		AttendanceRecords: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_attendance_records_total",
				Help: "Total number of attendance records saved, by status",
			},
			[]string{"status"},
		),

		StudentLogsSaved: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_student_logs_total",
				Help: "Total number of memorization log entries saved",
			},
		),

		// 错误指标
		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_errors_total",
				Help: "Total number of errors",
			},
			[]string{"error_type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "maktab_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		// 限流指标
		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "maktab_rate_limit_blocks_total",
				Help: "Total number of requests rejected by rate limiting",
			},
			[]string{"scope"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordMessageSent 记录消息发送
func (m *Metrics) RecordMessageSent(role string) {
	m.MessagesSent.WithLabelValues(role).Inc()
}

// RecordMessageRead 记录消息已读
func (m *Metrics) RecordMessageRead() {
	m.MessagesRead.Inc()
}

// RecordMessageReplied 记录回复
func (m *Metrics) RecordMessageReplied() {
	m.MessagesReplied.Inc()
}

// RecordMessageDeleted 记录消息删除
func (m *Metrics) RecordMessageDeleted() {
	m.MessagesDeleted.Inc()
}

// RecordLogin 记录登录
func (m *Metrics) RecordLogin(role string) {
	m.LoginsTotal.WithLabelValues(role).Inc()
}

// RecordSessionsExpired 记录过期会话清理
func (m *Metrics) RecordSessionsExpired(count int) {
	m.SessionsExpired.Add(float64(count))
}

// RecordAttendance 记录考勤保存
func (m *Metrics) RecordAttendance(status string, count int) {
	m.AttendanceRecords.WithLabelValues(status).Add(float64(count))
}

// RecordStudentLog 记录学习记录保存
func (m *Metrics) RecordStudentLog() {
	m.StudentLogsSaved.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流拒绝
func (m *Metrics) RecordRateLimitBlock(scope string) {
	m.RateLimitBlocks.WithLabelValues(scope).Inc()
}

// UpdateSessionsActive 更新活跃会话数
func (m *Metrics) UpdateSessionsActive(count int) {
	m.SessionsActive.Set(float64(count))
}

// UpdateMessagesUnread 更新未读消息数
func (m *Metrics) UpdateMessagesUnread(count int) {
	m.MessagesUnread.Set(float64(count))
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
