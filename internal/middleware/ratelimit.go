package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/storage"
)

// RateLimiter 登录等敏感接口的限流中间件。
//
// 进程内按 IP 维护令牌桶（golang.org/x/time/rate）做第一道闸门；
// 配置了共享计数器（Redis）时再做跨实例的窗口计数。计数器不可用
// 不拦截请求，限流是保护而不是单点。
type RateLimiter struct {
	counters storage.RateLimitRepository
	metrics  *monitoring.Metrics
	log      *zap.Logger

	limit rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 创建限流中间件。
// counters 可以为 nil，此时只有进程内令牌桶生效。
func NewRateLimiter(requestsPerMinute, burst int, counters storage.RateLimitRepository, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	rl := &RateLimiter{
		counters: counters,
		log:      log,
		limit:    rate.Limit(float64(requestsPerMinute) / 60.0),
		burst:    burst,
		visitors: make(map[string]*visitor),
	}

	go rl.cleanupLoop()
	return rl
}

// WithMetrics 启用限流拒绝计数
func (rl *RateLimiter) WithMetrics(metrics *monitoring.Metrics) *RateLimiter {
	rl.metrics = metrics
	return rl
}

// Limit 按客户端 IP 限流
func (rl *RateLimiter) Limit(scope string) gin.HandlerFunc {
	window := time.Minute

	return func(c *gin.Context) {
		ip := c.ClientIP()

		if !rl.limiterFor(ip).Allow() {
			rl.reject(c, scope, ip)
			return
		}

		// 跨实例窗口计数
		if rl.counters != nil {
			key := fmt.Sprintf("ratelimit:%s:%s", scope, ip)
			count, err := rl.counters.IncrementRateLimit(key, window)
			if err != nil {
				rl.log.Warn("rate limit counter unavailable", zap.Error(err))
			} else if count > int64(float64(rl.limit)*window.Seconds())+int64(rl.burst) {
				rl.reject(c, scope, ip)
				return
			}
		}

		c.Next()
	}
}

func (rl *RateLimiter) reject(c *gin.Context, scope, ip string) {
	if rl.metrics != nil {
		rl.metrics.RecordRateLimitBlock(scope)
	}
	rl.log.Warn("rate limit exceeded",
		zap.String("scope", scope),
		zap.String("ip", ip),
	)
	c.Header("Retry-After", "60")
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error": "too many requests",
	})
	c.Abort()
}

// limiterFor 返回某 IP 的令牌桶，不存在则创建
func (rl *RateLimiter) limiterFor(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = time.Now()
	return v.limiter
}

// cleanupLoop 定期剔除长时间不活跃的 IP 条目
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if v.lastSeen.Before(cutoff) {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}
