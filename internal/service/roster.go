package service

import (
	"errors"
	"fmt"
	"time"

	"maktab/backend/internal/cache"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

var ErrUnknownRole = errors.New("unknown role")

// 本地目录缓存有效期
const localDirectoryTTL = 5 * time.Minute

// directoryProvider 可选的存储层目录接口。
// 混合存储实现了它（Redis 旁路缓存），内存存储没有。
type directoryProvider interface {
	RecipientDirectory(role domain.Role, targetRoles []domain.Role) ([]domain.Recipient, error)
}

// RosterService 封装花名册与收件人目录的业务操作。
//
// 收件人目录是角色决定的可寻址集合：
//   - 管理员可以写给任何人
//   - 教师可以写给管理员和自己名下的学生
//   - 学生可以写给管理员和自己的教师
type RosterService struct {
	users storage.UserRepository
	local *cache.LocalCache
}

// NewRosterService 创建花名册服务
func NewRosterService(users storage.UserRepository, local *cache.LocalCache) *RosterService {
	return &RosterService{
		users: users,
		local: local,
	}
}

// Recipients 返回 uc 可寻址的收件人目录，不包含 uc 自己
func (s *RosterService) Recipients(uc domain.UserContext) ([]domain.Recipient, error) {
	var recipients []domain.Recipient
	var err error

	switch uc.Role {
	case domain.RoleAdmin:
		recipients, err = s.roleDirectory(uc.Role, domain.RoleTeacher, domain.RoleStudent)
	case domain.RoleTeacher:
		recipients, err = s.roleDirectory(uc.Role, domain.RoleAdmin)
		if err == nil {
			var students []domain.Recipient
			students, err = s.ownStudents(uc.ID)
			recipients = append(recipients, students...)
		}
	case domain.RoleStudent:
		recipients, err = s.roleDirectory(uc.Role, domain.RoleAdmin)
		if err == nil {
			var teacher *domain.Recipient
			teacher, err = s.ownTeacher(uc.ID)
			if teacher != nil {
				recipients = append(recipients, *teacher)
			}
		}
	default:
		return nil, ErrUnknownRole
	}

	if err != nil {
		return nil, err
	}

	// 自己不出现在自己的目录里；缓存的切片不原地改写
	out := make([]domain.Recipient, 0, len(recipients))
	for _, r := range recipients {
		if r.ID != uc.ID {
			out = append(out, r)
		}
	}
	return out, nil
}

// CanAddress 判断 uc 是否允许向 (recipientID, role) 发送消息
func (s *RosterService) CanAddress(uc domain.UserContext, recipientID string, role domain.Role) (bool, error) {
	recipients, err := s.Recipients(uc)
	if err != nil {
		return false, err
	}
	for _, r := range recipients {
		if r.ID == recipientID && r.Role == role {
			return true, nil
		}
	}
	return false, nil
}

// Students 返回某教师名下的学生
func (s *RosterService) Students(teacherID string) ([]domain.User, error) {
	return s.users.ListStudentsByTeacher(teacherID)
}

// UsersByRole 返回某角色的全部账号（管理端花名册）
func (s *RosterService) UsersByRole(role domain.Role) ([]domain.User, error) {
	if !role.Valid() {
		return nil, ErrUnknownRole
	}
	return s.users.ListUsersByRole(role)
}

// Deactivate 停用一个账号，停用后无法登录、也不再出现在目录里
func (s *RosterService) Deactivate(userID string) error {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.IsActive = false
	if err := s.users.UpdateUser(user); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Remove 删除一个账号
func (s *RosterService) Remove(userID string) error {
	if err := s.users.DeleteUser(userID); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Invalidate 账号变更后作废本地目录缓存
func (s *RosterService) Invalidate() {
	if s.local != nil {
		s.local.Purge()
	}
}

// roleDirectory 返回目标角色的活跃账号目录。
// 存储层自带目录实现（Redis 缓存）时优先使用，否则走本地缓存。
func (s *RosterService) roleDirectory(viewer domain.Role, targets ...domain.Role) ([]domain.Recipient, error) {
	if provider, ok := s.users.(directoryProvider); ok {
		return provider.RecipientDirectory(viewer, targets)
	}

	key := fmt.Sprintf("directory:%s", viewer)
	if s.local != nil {
		if cached, ok := s.local.Get(key); ok {
			if recipients, ok := cached.([]domain.Recipient); ok {
				return recipients, nil
			}
		}
	}

	recipients := []domain.Recipient{}
	for _, target := range targets {
		users, err := s.users.ListUsersByRole(target)
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

	if s.local != nil {
		s.local.Set(key, recipients, localDirectoryTTL)
	}
	return recipients, nil
}

// ownStudents 教师名下的活跃学生目录
func (s *RosterService) ownStudents(teacherID string) ([]domain.Recipient, error) {
	students, err := s.users.ListStudentsByTeacher(teacherID)
	if err != nil {
		return nil, err
	}

	recipients := make([]domain.Recipient, 0, len(students))
	for _, u := range students {
		if !u.IsActive {
			continue
		}
		recipients = append(recipients, domain.Recipient{ID: u.ID, Name: u.Name, Role: u.Role})
	}
	return recipients, nil
}

// ownTeacher 学生所属教师的目录条目，未指派教师时为 nil
func (s *RosterService) ownTeacher(studentID string) (*domain.Recipient, error) {
	student, err := s.users.GetUserByID(studentID)
	if err != nil {
		return nil, err
	}
	if student.TeacherID == "" {
		return nil, nil
	}

	teacher, err := s.users.GetUserByID(student.TeacherID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !teacher.IsActive {
		return nil, nil
	}
	return &domain.Recipient{ID: teacher.ID, Name: teacher.Name, Role: teacher.Role}, nil
}
