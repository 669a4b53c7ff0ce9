package cache

import (
	"sync"
	"time"
)

// LocalCache 本地内存缓存。
//
// 收件人目录等读多写少的数据走这里，避免每次打开撰写面板都扫一遍
// 账号表。基于 sync.Map 的无锁读取，条目按 TTL 过期，后台定期清理。
type LocalCache struct {
	data sync.Map
	ttl  time.Duration
	stop chan struct{}
}

type cacheEntry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocalCache 创建本地缓存，ttl 为条目默认过期时间
func NewLocalCache(ttl time.Duration) *LocalCache {
	c := &LocalCache{
		ttl:  ttl,
		stop: make(chan struct{}),
	}

	go c.cleanupLoop()
	return c
}

// Get 获取缓存值，过期条目按不存在处理
func (c *LocalCache) Get(key string) (interface{}, bool) {
	val, ok := c.data.Load(key)
	if !ok {
		return nil, false
	}

	entry := val.(*cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.data.Delete(key)
		return nil, false
	}
	return entry.value, true
}

// Set 设置缓存值，ttl 为零时使用默认过期时间
func (c *LocalCache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data.Store(key, &cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.data.Delete(key)
}

// Purge 清空全部条目
func (c *LocalCache) Purge() {
	c.data.Range(func(key, _ interface{}) bool {
		c.data.Delete(key)
		return true
	})
}

// Close 停止后台清理
func (c *LocalCache) Close() {
	close(c.stop)
}

// cleanupLoop 定期剔除过期条目
func (c *LocalCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			now := time.Now()
			c.data.Range(func(key, val interface{}) bool {
				if entry, ok := val.(*cacheEntry); ok && now.After(entry.expiresAt) {
					c.data.Delete(key)
				}
				return true
			})
		}
	}
}
