package health

import (
	"fmt"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"

	"maktab/backend/internal/storage"
)

// redisChecker 由带 Redis 后端的存储实现。
type redisChecker interface {
	RedisHealth() error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	health healthcheck.Handler
	store  storage.Store
	logger *zap.Logger
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(store storage.Store, logger *zap.Logger) *HealthChecker {
	hc := &HealthChecker{
		health: healthcheck.NewHandler(),
		store:  store,
		logger: logger,
	}

	hc.addChecks()

	return hc
}

// addChecks 添加健康检查
func (hc *HealthChecker) addChecks() {
	// 存储后端检查
	hc.health.AddReadinessCheck("storage", func() error {
		return hc.store.Health()
	})

	// Redis 连接检查（仅混合存储支持）
	if rc, ok := hc.store.(redisChecker); ok {
		hc.health.AddReadinessCheck("redis", rc.RedisHealth)
	}

	// 存活检查：进程可响应即为存活
	hc.health.AddLivenessCheck("server", func() error {
		return nil
	})
}

// LiveHandler 返回存活检查处理器
func (hc *HealthChecker) LiveHandler() http.HandlerFunc {
	return hc.health.LiveEndpoint
}

// ReadyHandler 返回就绪检查处理器
func (hc *HealthChecker) ReadyHandler() http.HandlerFunc {
	return hc.health.ReadyEndpoint
}

// CheckHealth 执行健康检查并返回各组件状态
func (hc *HealthChecker) CheckHealth() map[string]string {
	results := make(map[string]string)

	if err := hc.store.Health(); err != nil {
		results["storage"] = fmt.Sprintf("ERROR: %v", err)
	} else {
		results["storage"] = "OK"
	}

	if rc, ok := hc.store.(redisChecker); ok {
		if err := rc.RedisHealth(); err != nil {
			results["redis"] = fmt.Sprintf("ERROR: %v", err)
		} else {
			results["redis"] = "OK"
		}
	} else {
		results["redis"] = "NOT_AVAILABLE"
	}

	results["timestamp"] = time.Now().Format(time.RFC3339)

	return results
}
