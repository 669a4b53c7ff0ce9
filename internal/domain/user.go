package domain

import "time"

// Role 账号角色
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Valid 判断角色是否为已知角色
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleTeacher || r == RoleStudent
}

// User 表示学校系统中的一个账号（管理员、教师或学生）
type User struct {
	ID           string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code         string     `json:"code" gorm:"uniqueIndex;type:varchar(64);not null"` // 登录编号
	Name         string     `json:"name" gorm:"type:varchar(255);not null"`
	Role         Role       `json:"role" gorm:"type:varchar(20);index;not null"`
	PasswordHash string     `json:"-" gorm:"type:varchar(255)"` // 不返回给前端
	Email        string     `json:"email,omitempty" gorm:"type:varchar(255)"`
	Class        string     `json:"class,omitempty" gorm:"type:varchar(100)"`          // 学生所在班级/halaqa
	TeacherID    string     `json:"teacherId,omitempty" gorm:"type:varchar(36);index"` // 学生所属教师
	IsActive     bool       `json:"isActive" gorm:"default:true"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
}

// IsAdmin 判断账号是否为管理员
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsTeacher 判断账号是否为教师
func (u *User) IsTeacher() bool {
	return u.Role == RoleTeacher
}

// UserContext 当前登录用户的身份三元组
//
// 消息引擎的每个操作都显式接收该上下文，而不是依赖全局会话状态，
// 这样引擎可以脱离认证流程独立测试。
type UserContext struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// Recipient 可选收件人目录条目
type Recipient struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}
