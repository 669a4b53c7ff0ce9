package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/auth"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/service"
	"maktab/backend/internal/storage"
)

// AdminHandler 处理管理端账号管理和系统统计
type AdminHandler struct {
	authService *auth.Service
	roster      *service.RosterService
	stats       storage.AdminRepository
	log         *zap.Logger
}

// NewAdminHandler 创建管理处理器
func NewAdminHandler(authService *auth.Service, roster *service.RosterService, stats storage.AdminRepository, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{
		authService: authService,
		roster:      roster,
		stats:       stats,
		log:         log,
	}
}

type createUserRequest struct {
	Code      string      `json:"code" binding:"required"`
	Name      string      `json:"name" binding:"required"`
	Role      domain.Role `json:"role" binding:"required"`
	Password  string      `json:"password" binding:"required"`
	Email     string      `json:"email"`
	Class     string      `json:"class"`
	TeacherID string      `json:"teacherId"`
}

type resetPasswordRequest struct {
	NewPassword string `json:"newPassword" binding:"required"`
}

// CreateUser 创建新账号（教师或学生，也可以是新的管理员）
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.CreateAccount(auth.CreateAccountInput{
		Code:      req.Code,
		Name:      req.Name,
		Role:      req.Role,
		Password:  req.Password,
		Email:     req.Email,
		Class:     req.Class,
		TeacherID: req.TeacherID,
	})
	if err != nil {
		switch err {
		case auth.ErrCodeExists:
			Conflict(c, GetErrorMessage(err))
		case auth.ErrInvalidRole, auth.ErrPasswordTooShort, auth.ErrPasswordTooLong,
			domain.ErrNameRequired, domain.ErrInvalidCode, domain.ErrCodeTooShort, domain.ErrCodeTooLong:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to create user", zap.String("code", req.Code), zap.Error(err))
			InternalError(c, MsgUserCreateFailed)
		}
		return
	}

	h.log.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)
	Created(c, user)
}

// ListUsers 按角色列出账号
func (h *AdminHandler) ListUsers(c *gin.Context) {
	role := domain.Role(c.DefaultQuery("role", string(domain.RoleStudent)))
	if !role.Valid() {
		BadRequest(c, GetErrorMessage(auth.ErrInvalidRole))
		return
	}

	users, err := h.roster.UsersByRole(role)
	if err != nil {
		h.log.Error("failed to list users", zap.String("role", string(role)), zap.Error(err))
		InternalError(c, MsgUserListFailed)
		return
	}

	Success(c, gin.H{"users": users})
}

// GetUser 返回单个账号详情
func (h *AdminHandler) GetUser(c *gin.Context) {
	user, err := h.authService.GetUserByID(c.Param("id"))
	if err != nil {
		switch err {
		case auth.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to get user", zap.String("user_id", c.Param("id")), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	Success(c, user)
}

// DeactivateUser 停用账号，停用后无法登录且从收件人目录消失
func (h *AdminHandler) DeactivateUser(c *gin.Context) {
	if err := h.roster.Deactivate(c.Param("id")); err != nil {
		switch err {
		case storage.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to deactivate user", zap.String("user_id", c.Param("id")), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	SuccessWithMsg(c, "账号已停用", nil)
}

// DeleteUser 删除账号
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := h.roster.Remove(c.Param("id")); err != nil {
		switch err {
		case storage.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to delete user", zap.String("user_id", c.Param("id")), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	NoContent(c)
}

// ResetPassword 管理员重置某账号的密码，不需要旧密码
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ResetPassword(c.Param("id"), req.NewPassword); err != nil {
		switch err {
		case auth.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		case auth.ErrPasswordTooShort, auth.ErrPasswordTooLong:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to reset password", zap.String("user_id", c.Param("id")), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	SuccessWithMsg(c, "密码已重置", nil)
}

// Statistics 返回系统整体统计信息
func (h *AdminHandler) Statistics(c *gin.Context) {
	stats, err := h.stats.GetSystemStatistics()
	if err != nil {
		h.log.Error("failed to collect statistics", zap.Error(err))
		InternalError(c, MsgStatisticsFailed)
		return
	}

	Success(c, stats)
}
