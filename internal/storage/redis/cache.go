package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"maktab/backend/internal/domain"
)

// Cache Redis 缓存实现。
//
// 承担两类职责：持久层查询的旁路缓存（账号、收件人目录），以及
// 纯易失数据的主存储（会话、JWT 黑名单、限流计数）。
type Cache struct {
	client *redis.Client
	ctx    context.Context
}

// NewCache 创建 Redis 缓存实例
func NewCache(addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx := context.Background()

	// 测试连接
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{
		client: client,
		ctx:    ctx,
	}, nil
}

// Close 关闭 Redis 连接
func (c *Cache) Close() error {
	return c.client.Close()
}

// Health 检查 Redis 健康状态
func (c *Cache) Health() error {
	return c.client.Ping(c.ctx).Err()
}

// ========== 收件人目录缓存 ==========
//
// 账号本体不进 Redis：PasswordHash 带 json:"-" 标签，序列化后会丢失。
// 目录条目只含姓名和角色，可以安全缓存。

// CacheRecipientDirectory 缓存某角色可见的收件人目录
func (c *Cache) CacheRecipientDirectory(role domain.Role, recipients []domain.Recipient, ttl time.Duration) error {
	key := fmt.Sprintf("directory:%s", role)
	data, err := json.Marshal(recipients)
	if err != nil {
		return err
	}
	return c.client.Set(c.ctx, key, data, ttl).Err()
}

// GetCachedRecipientDirectory 获取缓存的收件人目录
func (c *Cache) GetCachedRecipientDirectory(role domain.Role) ([]domain.Recipient, error) {
	key := fmt.Sprintf("directory:%s", role)
	data, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("directory not found in cache")
		}
		return nil, err
	}

	var recipients []domain.Recipient
	if err := json.Unmarshal([]byte(data), &recipients); err != nil {
		return nil, err
	}
	return recipients, nil
}

// InvalidateRecipientDirectory 账号变更后作废全部目录缓存
func (c *Cache) InvalidateRecipientDirectory() error {
	keys := []string{
		fmt.Sprintf("directory:%s", domain.RoleAdmin),
		fmt.Sprintf("directory:%s", domain.RoleTeacher),
		fmt.Sprintf("directory:%s", domain.RoleStudent),
	}
	return c.client.Del(c.ctx, keys...).Err()
}

// ========== JWT 黑名单 ==========

// AddToBlacklist 将 JWT 添加到黑名单
func (c *Cache) AddToBlacklist(jti string, ttl time.Duration) error {
	key := fmt.Sprintf("blacklist:%s", jti)
	return c.client.Set(c.ctx, key, "1", ttl).Err()
}

// IsBlacklisted 检查 JWT 是否在黑名单中
func (c *Cache) IsBlacklisted(jti string) (bool, error) {
	key := fmt.Sprintf("blacklist:%s", jti)
	_, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ========== 限流缓存 ==========

// IncrementRateLimit 增加限流计数
func (c *Cache) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	pipe := c.client.Pipeline()

	// 增加计数
	incr := pipe.Incr(c.ctx, key)

	// 设置过期时间（如果是新键）
	pipe.Expire(c.ctx, key, window)

	_, err := pipe.Exec(c.ctx)
	if err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

// GetRateLimit 获取限流计数
func (c *Cache) GetRateLimit(key string) (int64, error) {
	count, err := c.client.Get(c.ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

// ========== 会话缓存 ==========

// CacheSession 缓存用户会话
func (c *Cache) CacheSession(sessionID string, userID string, ttl time.Duration) error {
	key := fmt.Sprintf("session:%s", sessionID)
	return c.client.Set(c.ctx, key, userID, ttl).Err()
}

// GetCachedSession 获取缓存的会话
func (c *Cache) GetCachedSession(sessionID string) (string, error) {
	key := fmt.Sprintf("session:%s", sessionID)
	userID, err := c.client.Get(c.ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("session not found in cache")
		}
		return "", err
	}
	return userID, nil
}

// DeleteCachedSession 删除缓存的会话
func (c *Cache) DeleteCachedSession(sessionID string) error {
	key := fmt.Sprintf("session:%s", sessionID)
	return c.client.Del(c.ctx, key).Err()
}
