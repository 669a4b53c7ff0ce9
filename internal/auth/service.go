package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

var (
	// ErrInvalidCredentials 凭证无效
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive 账号已被禁用
	ErrUserInactive = errors.New("user is inactive")
	// ErrUserNotFound 账号不存在
	ErrUserNotFound = errors.New("user not found")
	// ErrCodeExists 登录编号已被占用
	ErrCodeExists = errors.New("code already exists")
	// ErrInvalidRole 未知角色
	ErrInvalidRole = errors.New("invalid role")
	// ErrPasswordTooShort 口令太短
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong 口令超过 bcrypt 上限
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// Service 认证与账号服务。
//
// 登录凭证是登录编号 (code) 加口令，不是邮箱。教师和学生账号由
// 管理员创建，没有自助注册。
type Service struct {
	userRepo storage.UserRepository
}

// NewService 创建认证服务
func NewService(userRepo storage.UserRepository) *Service {
	return &Service{
		userRepo: userRepo,
	}
}

// LoginInput 登录输入
type LoginInput struct {
	Code     string
	Password string
}

// CreateAccountInput 创建账号输入（管理端）
type CreateAccountInput struct {
	Code      string
	Name      string
	Role      domain.Role
	Password  string
	Email     string
	Class     string
	TeacherID string
}

// Login 按登录编号和口令验证身份
func (s *Service) Login(input LoginInput) (*domain.User, error) {
	code := strings.TrimSpace(input.Code)

	user, err := s.userRepo.GetUserByCode(code)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// 检查账号是否激活
	if !user.IsActive {
		return nil, ErrUserInactive
	}

	// 验证口令
	if !CheckPassword(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	// 更新最后登录时间
	_ = s.userRepo.UpdateLastLogin(user.ID)

	return user, nil
}

// CreateAccount 创建教师或学生账号
func (s *Service) CreateAccount(input CreateAccountInput) (*domain.User, error) {
	code := strings.TrimSpace(input.Code)
	if err := domain.ValidateCode(code); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, domain.ErrNameRequired
	}
	if !input.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if err := ValidatePassword(input.Password); err != nil {
		return nil, err
	}

	passwordHash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.NewString(),
		Code:         code,
		Name:         strings.TrimSpace(input.Name),
		Role:         input.Role,
		PasswordHash: passwordHash,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Class:        input.Class,
		TeacherID:    input.TeacherID,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.CreateUser(user); err != nil {
		if errors.Is(err, storage.ErrCodeExists) {
			return nil, ErrCodeExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// GetUserByID 根据 ID 获取账号
func (s *Service) GetUserByID(userID string) (*domain.User, error) {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ChangePassword 修改口令
func (s *Service) ChangePassword(userID, oldPassword, newPassword string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	// 验证旧口令
	if !CheckPassword(oldPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.userRepo.UpdateUser(user)
}

// ResetPassword 管理员直接重置某账号的口令，不校验旧口令
func (s *Service) ResetPassword(userID, newPassword string) error {
	user, err := s.userRepo.GetUserByID(userID)
	if err != nil {
		return ErrUserNotFound
	}

	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	newHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = newHash
	return s.userRepo.UpdateUser(user)
}

// ValidatePassword 验证口令强度
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrPasswordTooShort
	}
	if len(password) > 72 {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword 哈希口令
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 检查口令是否匹配
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
