package httptransport

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/auth"
	jwtpkg "maktab/backend/internal/auth/jwt"
	"maktab/backend/internal/messaging"
	"maktab/backend/internal/middleware"
	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/storage"
)

// volatileStore 登录会话需要的易失存储（黑名单 + 会话记录）
type volatileStore interface {
	storage.JWTRepository
	storage.SessionRepository
}

// AuthHandler 处理认证相关的 HTTP 请求
type AuthHandler struct {
	authService *auth.Service
	jwtManager  *jwtpkg.Manager
	volatile    volatileStore
	registry    *messaging.Registry
	metrics     *monitoring.Metrics
	log         *zap.Logger
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager, volatile volatileStore, registry *messaging.Registry, metrics *monitoring.Metrics, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
		volatile:    volatile,
		registry:    registry,
		metrics:     metrics,
		log:         log,
	}
}

type loginRequest struct {
	Code     string `json:"code" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type authResponse struct {
	User         interface{} `json:"user"`
	AccessToken  string      `json:"accessToken"`
	RefreshToken string      `json:"refreshToken"`
	ExpiresIn    int64       `json:"expiresIn"`
}

// Login 处理登录请求。
//
// 登录凭据为编号 + 密码，成功后返回账号信息和访问/刷新令牌对。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Code:     req.Code,
		Password: req.Password,
	})
	if err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			Unauthorized(c, GetErrorMessage(err))
		case auth.ErrUserInactive:
			Forbidden(c, GetErrorMessage(err))
		default:
			h.log.Error("login failed", zap.String("code", req.Code), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	tokens, err := h.jwtManager.GenerateTokenPair(user.ID, user.Name, string(user.Role))
	if err != nil {
		h.log.Error("failed to generate tokens", zap.Error(err))
		InternalError(c, MsgOperationFailed)
		return
	}

	// 以 jti 为键记录活跃会话，登出时删除
	if err := h.volatile.CacheSession(tokens.AccessJTI, user.ID, h.jwtManager.AccessExpiry()); err != nil {
		h.log.Warn("failed to record session", zap.Error(err))
	}

	if h.metrics != nil {
		h.metrics.RecordLogin(string(user.Role))
	}
	h.log.Info("user logged in",
		zap.String("user_id", user.ID),
		zap.String("role", string(user.Role)),
	)

	Success(c, authResponse{
		User:         user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    int64(h.jwtManager.AccessExpiry().Seconds()),
	})
}

// Refresh 用刷新令牌换取新的访问令牌
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		switch err {
		case jwtpkg.ErrExpiredToken:
			Unauthorized(c, MsgTokenExpired)
		default:
			Unauthorized(c, MsgTokenInvalid)
		}
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
		"expiresIn":   int64(h.jwtManager.AccessExpiry().Seconds()),
	})
}

// Logout 注销当前令牌。
//
// 令牌的 jti 进入黑名单直到自然过期，同时断开该用户的消息会话，
// 下次登录会重建干净的会话状态。
func (h *AuthHandler) Logout(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	jti := c.GetString(middleware.ContextTokenJTI)
	if jti != "" {
		if err := h.volatile.AddToBlacklist(jti, h.jwtManager.AccessExpiry()); err != nil {
			h.log.Warn("failed to blacklist token", zap.Error(err))
		}
		if err := h.volatile.DeleteCachedSession(jti); err != nil {
			h.log.Warn("failed to drop session record", zap.Error(err))
		}
	}

	if h.registry != nil {
		h.registry.Evict(uc.ID)
	}

	h.log.Info("user logged out", zap.String("user_id", uc.ID))
	SuccessWithMsg(c, "已退出登录", nil)
}

// Me 返回当前登录账号的完整信息
func (h *AuthHandler) Me(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	user, err := h.authService.GetUserByID(uc.ID)
	if err != nil {
		switch err {
		case auth.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to load user", zap.String("user_id", uc.ID), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	Success(c, user)
}

// ChangePassword 修改当前账号密码
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	uc, ok := middleware.UserContextFrom(c)
	if !ok {
		Unauthorized(c, MsgAuthRequired)
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	if err := h.authService.ChangePassword(uc.ID, req.OldPassword, req.NewPassword); err != nil {
		switch err {
		case auth.ErrInvalidCredentials:
			BadRequest(c, "原密码不正确")
		case auth.ErrUserNotFound:
			NotFound(c, GetErrorMessage(err))
		case auth.ErrPasswordTooShort, auth.ErrPasswordTooLong:
			BadRequest(c, GetErrorMessage(err))
		default:
			h.log.Error("failed to change password", zap.String("user_id", uc.ID), zap.Error(err))
			InternalError(c, MsgOperationFailed)
		}
		return
	}

	h.log.Info("password changed", zap.String("user_id", uc.ID))
	SuccessWithMsg(c, "密码已更新", nil)
}
