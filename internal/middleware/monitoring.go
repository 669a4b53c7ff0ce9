package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"maktab/backend/internal/monitoring"
)

// MonitoringMiddleware 监控中间件
type MonitoringMiddleware struct {
	metrics *monitoring.Metrics
}

// NewMonitoringMiddleware 创建监控中间件
func NewMonitoringMiddleware(metrics *monitoring.Metrics) *MonitoringMiddleware {
	return &MonitoringMiddleware{metrics: metrics}
}

// HTTPMetrics HTTP 指标采集
func (m *MonitoringMiddleware) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := c.Writer.Status()

		m.metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(status),
			time.Since(start),
		)

		if status >= 500 {
			m.metrics.RecordError("server_error", "http")
		} else if status >= 400 {
			m.metrics.RecordError("client_error", "http")
		}
	}
}
