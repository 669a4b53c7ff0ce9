package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// Store 使用内存保存账号、消息与考勤数据，主要用于开发验证和测试。
type Store struct {
	mu       sync.RWMutex
	users    map[string]*domain.User      // userID -> user
	byCode   map[string]string            // code -> userID
	messages map[string]*domain.Message   // messageID -> 顶层消息
	replies  map[string][]*domain.Message // parentID -> 回复（追加序）

	attendance  []*domain.AttendanceRecord
	studentLogs map[string]*domain.StudentLog // logID -> log

	// 会话与限流
	sessions   map[string]sessionEntry
	blacklist  map[string]time.Time
	rateLimits map[string]*rateLimitEntry
}

// sessionEntry 会话条目
type sessionEntry struct {
	UserID    string
	ExpiresAt time.Time
}

// rateLimitEntry 速率限制条目
type rateLimitEntry struct {
	Count     int64
	ExpiresAt time.Time
}

// NewStore 创建一个内存存储实例。
func NewStore() *Store {
	return &Store{
		users:       make(map[string]*domain.User),
		byCode:      make(map[string]string),
		messages:    make(map[string]*domain.Message),
		replies:     make(map[string][]*domain.Message),
		attendance:  make([]*domain.AttendanceRecord, 0),
		studentLogs: make(map[string]*domain.StudentLog),
		sessions:    make(map[string]sessionEntry),
		blacklist:   make(map[string]time.Time),
		rateLimits:  make(map[string]*rateLimitEntry),
	}
}

// ========== 消息 ==========

// SaveMessage 落盘一条顶层消息，ID 为空时在此分配。
func (s *Store) SaveMessage(message *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if message.ID == "" {
		message.ID = uuid.NewString()
	}

	stored := *message
	stored.Replies = nil
	s.messages[stored.ID] = &stored
	return nil
}

// ListInbox 返回 (userID, role) 收到的顶层消息及其回复。
//
// 某条回复寻址到该身份时，整个线程也计入收件箱，这样回复会回到
// 原发件人的视图里。
func (s *Store) ListInbox(userID string, role domain.Role) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if msg.AddressedTo(userID, role) || s.anyReplyAddressedLocked(msg.ID, userID, role) {
			result = append(result, s.threadLocked(msg))
		}
	}
	return result, nil
}

// ListSent 返回 (userID, role) 发出的顶层消息及其回复。
func (s *Store) ListSent(userID string, role domain.Role) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Message, 0)
	for _, msg := range s.messages {
		if msg.SentBy(userID, role) {
			result = append(result, s.threadLocked(msg))
		}
	}
	return result, nil
}

// GetMessage 获取单条顶层消息及其回复。
func (s *Store) GetMessage(id string) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, storage.ErrMessageNotFound
	}
	thread := s.threadLocked(msg)
	return &thread, nil
}

// AppendReply 向父消息追加一条回复。
//
// 只有顶层消息可以作为父消息：回复不进入 s.messages 索引，因此
// 对回复再回复会得到 ErrMessageNotFound，嵌套在结构上不可能发生。
func (s *Store) AppendReply(parentID string, reply *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[parentID]; !ok {
		return storage.ErrMessageNotFound
	}

	if reply.ID == "" {
		reply.ID = uuid.NewString()
	}
	reply.ParentID = parentID

	stored := *reply
	stored.Replies = nil
	s.replies[parentID] = append(s.replies[parentID], &stored)
	return nil
}

// MarkMessageRead 将消息置为已读，幂等。
func (s *Store) MarkMessageRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return storage.ErrMessageNotFound
	}
	msg.IsRead = true
	return nil
}

// DeleteMessage 硬删除消息及其全部回复。
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[id]; !ok {
		return storage.ErrMessageNotFound
	}
	delete(s.messages, id)
	delete(s.replies, id)
	return nil
}

// threadLocked 返回顶层消息连同回复的深拷贝，持锁调用。
func (s *Store) threadLocked(msg *domain.Message) domain.Message {
	thread := *msg
	if replies, ok := s.replies[msg.ID]; ok && len(replies) > 0 {
		thread.Replies = make([]domain.Message, 0, len(replies))
		for _, r := range replies {
			thread.Replies = append(thread.Replies, *r)
		}
	}
	return thread
}

// anyReplyAddressedLocked 判断某线程是否有回复寻址到 (userID, role)，持锁调用。
func (s *Store) anyReplyAddressedLocked(parentID, userID string, role domain.Role) bool {
	for _, r := range s.replies[parentID] {
		if r.AddressedTo(userID, role) {
			return true
		}
	}
	return false
}

// ========== 考勤 ==========

// SaveAttendanceBatch 整批写入考勤记录，ID 为空时在此分配。
func (s *Store) SaveAttendanceBatch(records []domain.AttendanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		stored := records[i]
		s.attendance = append(s.attendance, &stored)
	}
	return nil
}

// ListAttendanceByTeacher 按教师查询考勤记录，可选日期区间（含端点）。
func (s *Store) ListAttendanceByTeacher(teacherID string, from, to string) ([]domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AttendanceRecord, 0)
	for _, rec := range s.attendance {
		if rec.TeacherID != teacherID || !dateInRange(rec.Date, from, to) {
			continue
		}
		result = append(result, *rec)
	}
	sortAttendance(result)
	return result, nil
}

// ListAttendanceByStudent 按学生姓名查询考勤记录，可选日期区间（含端点）。
func (s *Store) ListAttendanceByStudent(studentName string, from, to string) ([]domain.AttendanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AttendanceRecord, 0)
	for _, rec := range s.attendance {
		if rec.StudentName != studentName || !dateInRange(rec.Date, from, to) {
			continue
		}
		result = append(result, *rec)
	}
	sortAttendance(result)
	return result, nil
}

// dateInRange 判断 ISO 日期是否落在 [from, to]，空端点不限制。
// ISO 日期的字典序即时间序。
func dateInRange(date, from, to string) bool {
	if from != "" && strings.Compare(date, from) < 0 {
		return false
	}
	if to != "" && strings.Compare(date, to) > 0 {
		return false
	}
	return true
}

// sortAttendance 按日期倒序排列（同日期保持写入序）。
func sortAttendance(records []domain.AttendanceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
}

// ========== 背诵进度 ==========

// SaveStudentLog 保存一条进度记录，ID 为空时在此分配。
func (s *Store) SaveStudentLog(log *domain.StudentLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	stored := *log
	s.studentLogs[stored.ID] = &stored
	return nil
}

// ListStudentLogs 返回某学生的全部进度记录，按日期倒序。
func (s *Store) ListStudentLogs(studentID string) ([]domain.StudentLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StudentLog, 0)
	for _, log := range s.studentLogs {
		if log.StudentID == studentID {
			result = append(result, *log)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date > result[j].Date
	})
	return result, nil
}

// DeleteStudentLog 删除一条进度记录。
func (s *Store) DeleteStudentLog(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.studentLogs[id]; !ok {
		return storage.ErrLogNotFound
	}
	delete(s.studentLogs, id)
	return nil
}

// ========== 账号 ==========

// CreateUser 创建账号，登录编号必须唯一。
func (s *Store) CreateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[user.Code]; ok {
		return storage.ErrCodeExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	stored := *user
	s.users[stored.ID] = &stored
	s.byCode[stored.Code] = stored.ID
	return nil
}

// GetUserByID 根据 ID 获取账号。
func (s *Store) GetUserByID(id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *user
	return &u, nil
}

// GetUserByCode 根据登录编号获取账号。
func (s *Store) GetUserByCode(code string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byCode[code]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// ListUsersByRole 返回某角色的全部账号，按姓名排序。
func (s *Store) ListUsersByRole(role domain.Role) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0)
	for _, u := range s.users {
		if u.Role == role {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// ListStudentsByTeacher 返回某教师名下的学生，按姓名排序。
func (s *Store) ListStudentsByTeacher(teacherID string) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.User, 0)
	for _, u := range s.users {
		if u.Role == domain.RoleStudent && u.TeacherID == teacherID {
			result = append(result, *u)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// UpdateUser 更新账号信息。
func (s *Store) UpdateUser(user *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return storage.ErrUserNotFound
	}
	if existing.Code != user.Code {
		if _, taken := s.byCode[user.Code]; taken {
			return storage.ErrCodeExists
		}
		delete(s.byCode, existing.Code)
		s.byCode[user.Code] = user.ID
	}
	stored := *user
	s.users[user.ID] = &stored
	return nil
}

// UpdateLastLogin 更新最近登录时间。
func (s *Store) UpdateLastLogin(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return nil
}

// DeleteUser 删除账号。
func (s *Store) DeleteUser(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	delete(s.byCode, user.Code)
	delete(s.users, userID)
	return nil
}

// ========== 统计 ==========

// GetSystemStatistics 汇总系统统计信息。
func (s *Store) GetSystemStatistics() (*domain.SystemStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now().UTC()
	today := now.Format("2006-01-02")

	stats := &domain.SystemStatistics{
		StudentLogsTotal: len(s.studentLogs),
		GeneratedAt:      now,
	}

	for _, u := range s.users {
		switch u.Role {
		case domain.RoleTeacher:
			stats.TotalTeachers++
		case domain.RoleStudent:
			stats.TotalStudents++
		}
		if u.IsActive {
			stats.ActiveUsers++
		}
	}

	for _, m := range s.messages {
		stats.TotalMessages++
		if !m.IsRead {
			stats.UnreadMessages++
		}
		if m.SentAt.UTC().Format("2006-01-02") == today {
			stats.MessagesToday++
		}
		stats.TotalMessages += len(s.replies[m.ID])
	}

	for _, rec := range s.attendance {
		if rec.Date == today {
			stats.AttendanceToday++
			if rec.Status == domain.AttendanceAbsent {
				stats.AbsencesToday++
			}
		}
	}

	return stats, nil
}

// ========== 会话 / 黑名单 / 限流 ==========

// AddToBlacklist 将 JWT ID 加入黑名单。
func (s *Store) AddToBlacklist(jti string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklist[jti] = time.Now().Add(ttl)
	return nil
}

// IsBlacklisted 判断 JWT ID 是否在黑名单内。
func (s *Store) IsBlacklisted(jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.blacklist[jti]
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		delete(s.blacklist, jti)
		return false, nil
	}
	return true, nil
}

// IncrementRateLimit 自增限流计数，窗口过期后重置。
func (s *Store) IncrementRateLimit(key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.rateLimits[key]
	if !ok || now.After(entry.ExpiresAt) {
		entry = &rateLimitEntry{ExpiresAt: now.Add(window)}
		s.rateLimits[key] = entry
	}
	entry.Count++
	return entry.Count, nil
}

// GetRateLimit 查询限流计数。
func (s *Store) GetRateLimit(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.rateLimits[key]
	if !ok || time.Now().After(entry.ExpiresAt) {
		return 0, nil
	}
	return entry.Count, nil
}

// CacheSession 缓存会话。
func (s *Store) CacheSession(sessionID string, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = sessionEntry{UserID: userID, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

// GetCachedSession 读取会话。
func (s *Store) GetCachedSession(sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[sessionID]
	if !ok || time.Now().After(entry.ExpiresAt) {
		delete(s.sessions, sessionID)
		return "", nil
	}
	return entry.UserID, nil
}

// DeleteCachedSession 删除会话。
func (s *Store) DeleteCachedSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

// ========== 工具方法 ==========

// Close 关闭存储（内存实现为空操作）。
func (s *Store) Close() error {
	return nil
}

// Health 检查存储健康状态（内存实现恒为健康）。
func (s *Store) Health() error {
	return nil
}
