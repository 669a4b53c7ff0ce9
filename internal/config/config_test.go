package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	// 保存原始环境变量
	originalEnvs := make(map[string]string)
	envKeys := []string{
		"MAKTAB_JWT_SECRET",
		"MAKTAB_SERVER_HOST",
		"MAKTAB_SERVER_PORT",
		"MAKTAB_SCHOOL_NAME",
		"MAKTAB_SCHOOL_TIMEZONE",
		"MAKTAB_SESSION_TTL",
		"MAKTAB_CORS_ALLOWED_ORIGINS",
		"MAKTAB_LOG_LEVEL",
		"MAKTAB_LOG_DEVELOPMENT",
		"MAKTAB_DATABASE_TYPE",
		"MAKTAB_DATABASE_DSN",
		"MAKTAB_RATELIMIT_REQUESTS_PER_MINUTE",
	}

	for _, key := range envKeys {
		originalEnvs[key] = os.Getenv(key)
	}

	// 测试后恢复环境变量
	defer func() {
		for key, value := range originalEnvs {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}()

	t.Run("加载默认配置成功", func(t *testing.T) {
		for _, key := range envKeys {
			os.Unsetenv(key)
		}

		// 设置必需的JWT密钥
		os.Setenv("MAKTAB_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证默认值
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, "Asia/Riyadh", cfg.School.Timezone)
		assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
		assert.Equal(t, 5*time.Minute, cfg.Session.PruneInterval)
		assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "info", cfg.Log.Level)
		assert.False(t, cfg.Log.Development)
		assert.Equal(t, "", cfg.Database.Type)
		assert.Equal(t, "test-secret-key-for-development-32-chars-long-at-least", cfg.JWT.Secret)
		assert.Equal(t, "maktab", cfg.JWT.Issuer)
		assert.Equal(t, 15*time.Minute, cfg.JWT.AccessExpiry)
		assert.Equal(t, 7*24*time.Hour, cfg.JWT.RefreshExpiry)
		assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
		assert.Equal(t, 10, cfg.RateLimit.Burst)
	})

	t.Run("加载自定义配置成功", func(t *testing.T) {
		os.Setenv("MAKTAB_JWT_SECRET", "custom-jwt-secret-key-32-chars-long-minimum")
		os.Setenv("MAKTAB_SERVER_HOST", "127.0.0.1")
		os.Setenv("MAKTAB_SERVER_PORT", "9090")
		os.Setenv("MAKTAB_SCHOOL_NAME", "مدرسة النور")
		os.Setenv("MAKTAB_SCHOOL_TIMEZONE", "Africa/Cairo")
		os.Setenv("MAKTAB_SESSION_TTL", "2h")
		os.Setenv("MAKTAB_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
		os.Setenv("MAKTAB_LOG_LEVEL", "debug")
		os.Setenv("MAKTAB_LOG_DEVELOPMENT", "true")
		os.Setenv("MAKTAB_RATELIMIT_REQUESTS_PER_MINUTE", "120")

		cfg, err := Load()

		assert.NoError(t, err)
		assert.NotNil(t, cfg)

		// 验证自定义值
		assert.Equal(t, "127.0.0.1", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "مدرسة النور", cfg.School.Name)
		assert.Equal(t, "Africa/Cairo", cfg.School.Timezone)
		assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
		assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.True(t, cfg.Log.Development)
		assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	})

	t.Run("JWT密钥太短失败", func(t *testing.T) {
		os.Setenv("MAKTAB_JWT_SECRET", "short-key") // 少于32字符

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret must be at least 32 characters long")
	})

	t.Run("使用默认JWT密钥失败", func(t *testing.T) {
		os.Setenv("MAKTAB_JWT_SECRET", "change-me-in-production")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "JWT secret cannot be the default value")
	})

	t.Run("非法时区失败", func(t *testing.T) {
		os.Setenv("MAKTAB_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("MAKTAB_SCHOOL_TIMEZONE", "Mars/Olympus")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid school.timezone")
		os.Unsetenv("MAKTAB_SCHOOL_TIMEZONE")
	})

	t.Run("指定数据库类型必须带DSN", func(t *testing.T) {
		os.Setenv("MAKTAB_JWT_SECRET", "test-secret-key-for-development-32-chars-long-at-least")
		os.Setenv("MAKTAB_DATABASE_TYPE", "mysql")
		os.Unsetenv("MAKTAB_DATABASE_DSN")

		cfg, err := Load()

		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "database.dsn is required")
		os.Unsetenv("MAKTAB_DATABASE_TYPE")
	})
}
