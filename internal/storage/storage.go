package storage

import (
	"errors"
	"time"

	"maktab/backend/internal/domain"
)

var (
	// ErrMessageNotFound 消息未找到错误
	ErrMessageNotFound = errors.New("message not found")
	// ErrUserNotFound 账号未找到错误
	ErrUserNotFound = errors.New("user not found")
	// ErrCodeExists 登录编号已被占用错误
	ErrCodeExists = errors.New("code already exists")
	// ErrLogNotFound 进度记录未找到错误
	ErrLogNotFound = errors.New("student log not found")
)

// MessageRepository 定义消息数据存取操作。
//
// Inbox/Sent 是同一份消息数据上按身份过滤出的两个视图，不是独立存储。
// 收件箱除了直接寻址到 (userID, role) 的顶层消息，还包含其回复寻址到
// 该身份的线程，这样回复会把整个线程带回原发件人的收件箱。
type MessageRepository interface {
	// SaveMessage 落盘一条顶层消息，ID 为空时由存储层分配。
	SaveMessage(message *domain.Message) error
	// ListInbox 返回 (userID, role) 收到的顶层消息（含各自的回复）。
	ListInbox(userID string, role domain.Role) ([]domain.Message, error)
	// ListSent 返回 (userID, role) 发出的顶层消息（含各自的回复）。
	ListSent(userID string, role domain.Role) ([]domain.Message, error)
	// GetMessage 获取单条顶层消息及其回复。
	GetMessage(id string) (*domain.Message, error)
	// AppendReply 向父消息追加一条回复，父消息不存在时返回 ErrMessageNotFound。
	// 只有顶层消息可以作为父消息，回复不能再被回复。
	AppendReply(parentID string, reply *domain.Message) error
	// MarkMessageRead 将消息置为已读，幂等。
	MarkMessageRead(id string) error
	// DeleteMessage 硬删除消息及其全部回复，不存在时返回 ErrMessageNotFound。
	DeleteMessage(id string) error
}

// AttendanceRepository 定义考勤数据存取操作。
type AttendanceRepository interface {
	SaveAttendanceBatch(records []domain.AttendanceRecord) error
	ListAttendanceByTeacher(teacherID string, from, to string) ([]domain.AttendanceRecord, error)
	ListAttendanceByStudent(studentName string, from, to string) ([]domain.AttendanceRecord, error)
}

// StudentLogRepository 定义背诵进度记录存取操作。
type StudentLogRepository interface {
	SaveStudentLog(log *domain.StudentLog) error
	ListStudentLogs(studentID string) ([]domain.StudentLog, error)
	DeleteStudentLog(id string) error
}

// UserRepository 定义账号数据存取操作。
type UserRepository interface {
	CreateUser(user *domain.User) error
	GetUserByID(id string) (*domain.User, error)
	GetUserByCode(code string) (*domain.User, error)
	ListUsersByRole(role domain.Role) ([]domain.User, error)
	ListStudentsByTeacher(teacherID string) ([]domain.User, error)
	UpdateUser(user *domain.User) error
	UpdateLastLogin(userID string) error
	DeleteUser(userID string) error
}

// AdminRepository 定义管理端统计操作。
type AdminRepository interface {
	GetSystemStatistics() (*domain.SystemStatistics, error)
}

// JWTRepository 定义 JWT 黑名单操作。
type JWTRepository interface {
	AddToBlacklist(jti string, ttl time.Duration) error
	IsBlacklisted(jti string) (bool, error)
}

// RateLimitRepository 定义限流操作。
type RateLimitRepository interface {
	IncrementRateLimit(key string, window time.Duration) (int64, error)
	GetRateLimit(key string) (int64, error)
}

// SessionRepository 定义会话管理操作。
type SessionRepository interface {
	CacheSession(sessionID string, userID string, ttl time.Duration) error
	GetCachedSession(sessionID string) (string, error)
	DeleteCachedSession(sessionID string) error
}

// Store 定义完整的存储接口。
type Store interface {
	MessageRepository
	AttendanceRepository
	StudentLogRepository
	UserRepository
	AdminRepository
	JWTRepository
	RateLimitRepository
	SessionRepository

	// 工具方法
	Close() error
	Health() error
}
