package hybrid

import (
	"fmt"
	"time"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
	"maktab/backend/internal/storage/redis"
	sqlstore "maktab/backend/internal/storage/sql"
)

// Store 混合存储实现，结合 SQL 数据库和 Redis。
//
// 持久化数据（消息、账号、考勤、进度记录）落 SQL，易失数据
// （会话、JWT 黑名单、限流计数）落 Redis，两者拼装出完整的
// storage.Store。
type Store struct {
	db    *sqlstore.Store
	redis *redis.Cache
}

// 目录缓存有效期，账号变更时主动作废
const directoryCacheTTL = 5 * time.Minute

// Options 混合存储的连接参数
type Options struct {
	DatabaseType    string // "mysql" 或 "postgres"
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// NewStore 创建混合存储实例
func NewStore(opts Options) (*Store, error) {
	dbStore, err := sqlstore.NewStore(opts.DatabaseType, opts.DSN, opts.MaxOpenConns, opts.MaxIdleConns, opts.ConnMaxLifetime)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	redisCache, err := redis.NewCache(opts.RedisAddr, opts.RedisPassword, opts.RedisDB)
	if err != nil {
		dbStore.Close()
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	return &Store{
		db:    dbStore,
		redis: redisCache,
	}, nil
}

// ========== Message Repository ==========

func (s *Store) SaveMessage(message *domain.Message) error {
	return s.db.SaveMessage(message)
}

func (s *Store) ListInbox(userID string, role domain.Role) ([]domain.Message, error) {
	return s.db.ListInbox(userID, role)
}

func (s *Store) ListSent(userID string, role domain.Role) ([]domain.Message, error) {
	return s.db.ListSent(userID, role)
}

func (s *Store) GetMessage(id string) (*domain.Message, error) {
	return s.db.GetMessage(id)
}

func (s *Store) AppendReply(parentID string, reply *domain.Message) error {
	return s.db.AppendReply(parentID, reply)
}

func (s *Store) MarkMessageRead(id string) error {
	return s.db.MarkMessageRead(id)
}

func (s *Store) DeleteMessage(id string) error {
	return s.db.DeleteMessage(id)
}

// ========== User Repository ==========

func (s *Store) CreateUser(user *domain.User) error {
	if err := s.db.CreateUser(user); err != nil {
		return err
	}

	// 目录缓存已过时
	s.redis.InvalidateRecipientDirectory()
	return nil
}

// GetUserByID 根据 ID 获取账号
// 注意：不经过 Redis 缓存，PasswordHash 字段带 json:"-" 标签，缓存后会丢失
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	return s.db.GetUserByID(id)
}

// GetUserByCode 根据登录编号获取账号
// 注意：不经过 Redis 缓存，登录要校验 PasswordHash
func (s *Store) GetUserByCode(code string) (*domain.User, error) {
	return s.db.GetUserByCode(code)
}

func (s *Store) ListUsersByRole(role domain.Role) ([]domain.User, error) {
	return s.db.ListUsersByRole(role)
}

func (s *Store) ListStudentsByTeacher(teacherID string) ([]domain.User, error) {
	return s.db.ListStudentsByTeacher(teacherID)
}

func (s *Store) UpdateUser(user *domain.User) error {
	if err := s.db.UpdateUser(user); err != nil {
		return err
	}

	s.redis.InvalidateRecipientDirectory()
	return nil
}

func (s *Store) UpdateLastLogin(userID string) error {
	return s.db.UpdateLastLogin(userID)
}

func (s *Store) DeleteUser(userID string) error {
	if err := s.db.DeleteUser(userID); err != nil {
		return err
	}

	s.redis.InvalidateRecipientDirectory()
	return nil
}

// ========== Attendance Repository ==========

func (s *Store) SaveAttendanceBatch(records []domain.AttendanceRecord) error {
	return s.db.SaveAttendanceBatch(records)
}

func (s *Store) ListAttendanceByTeacher(teacherID string, from, to string) ([]domain.AttendanceRecord, error) {
	return s.db.ListAttendanceByTeacher(teacherID, from, to)
}

func (s *Store) ListAttendanceByStudent(studentName string, from, to string) ([]domain.AttendanceRecord, error) {
	return s.db.ListAttendanceByStudent(studentName, from, to)
}

// ========== StudentLog Repository ==========

func (s *Store) SaveStudentLog(log *domain.StudentLog) error {
	return s.db.SaveStudentLog(log)
}

func (s *Store) ListStudentLogs(studentID string) ([]domain.StudentLog, error) {
	return s.db.ListStudentLogs(studentID)
}

func (s *Store) DeleteStudentLog(id string) error {
	return s.db.DeleteStudentLog(id)
}

// ========== Admin Repository ==========

func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	return s.db.GetSystemStatistics()
}

// ========== JWT Repository ==========

func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	return s.redis.AddToBlacklist(jti, ttl)
}

func (s *Store) IsBlacklisted(jti string) (bool, error) {
	return s.redis.IsBlacklisted(jti)
}

// ========== RateLimit Repository ==========

func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	return s.redis.IncrementRateLimit(key, window)
}

func (s *Store) GetRateLimit(key string) (int64, error) {
	return s.redis.GetRateLimit(key)
}

// ========== Session Repository ==========

func (s *Store) CacheSession(sessionID string, userID string, ttl time.Duration) error {
	return s.redis.CacheSession(sessionID, userID, ttl)
}

func (s *Store) GetCachedSession(sessionID string) (string, error) {
	return s.redis.GetCachedSession(sessionID)
}

func (s *Store) DeleteCachedSession(sessionID string) error {
	return s.redis.DeleteCachedSession(sessionID)
}

// ========== 收件人目录 ==========

// RecipientDirectory 返回某角色可见的收件人目录，带 Redis 旁路缓存。
// 目录只含姓名和角色，不含口令散列，可以安全缓存。
func (s *Store) RecipientDirectory(role domain.Role, targetRoles []domain.Role) ([]domain.Recipient, error) {
	if cached, err := s.redis.GetCachedRecipientDirectory(role); err == nil {
		return cached, nil
	}

	recipients := []domain.Recipient{}
	for _, target := range targetRoles {
		users, err := s.db.ListUsersByRole(target)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if !u.IsActive {
				continue
			}
			recipients = append(recipients, domain.Recipient{ID: u.ID, Name: u.Name, Role: u.Role})
		}
	}

	s.redis.CacheRecipientDirectory(role, recipients, directoryCacheTTL)
	return recipients, nil
}

// ========== 工具方法 ==========

// Close 关闭底层连接
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		s.redis.Close()
		return err
	}
	return s.redis.Close()
}

// Health 检查底层存储健康状态
func (s *Store) Health() error {
	if err := s.db.Health(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := s.redis.Health(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	return nil
}

// RedisHealth 单独检查 Redis 后端。
func (s *Store) RedisHealth() error {
	return s.redis.Health()
}

var _ storage.Store = (*Store)(nil)
