package messaging

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"maktab/backend/internal/storage"
)

// Registry 按用户维护长活的消息引擎会话。
//
// 引擎在用户首次访问消息接口时创建，之后复用同一实例以保留视图
// 状态；长期不活跃的会话由后台任务定期清理。
type Registry struct {
	repo storage.MessageRepository
	log  *zap.Logger
	ttl  time.Duration

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	engine   *Engine
	lastSeen time.Time
}

// NewRegistry 创建引擎会话表。
func NewRegistry(repo storage.MessageRepository, log *zap.Logger, ttl time.Duration) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		repo:     repo,
		log:      log,
		ttl:      ttl,
		sessions: make(map[string]*session),
	}
}

// Engine 返回某用户的引擎，没有则创建。
func (r *Registry) Engine(userID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[userID]
	if !ok {
		sess = &session{engine: NewEngine(r.repo, r.log)}
		r.sessions[userID] = sess
	}
	sess.lastSeen = time.Now()
	return sess.engine
}

// Evict 移除某用户的会话（登出时调用）。
func (r *Registry) Evict(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// PruneExpired 清理超过 TTL 未活动的会话，返回清理数量。
func (r *Registry) PruneExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.ttl)
	count := 0
	for userID, sess := range r.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(r.sessions, userID)
			count++
		}
	}
	return count
}

// Len 返回当前活跃会话数。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
