package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/auth/jwt"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/storage"
)

// 上下文键，handler 经 UserContextFrom 取身份
const (
	ContextUserID   = "userID"
	ContextUserName = "userName"
	ContextUserRole = "userRole"
	ContextTokenJTI = "tokenJTI"
)

// JWTAuth JWT 认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	blacklist  storage.JWTRepository
	log        *zap.Logger
}

// NewJWTAuth 创建 JWT 认证中间件
func NewJWTAuth(jwtManager *jwt.Manager, blacklist storage.JWTRepository, log *zap.Logger) *JWTAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &JWTAuth{
		jwtManager: jwtManager,
		blacklist:  blacklist,
		log:        log,
	}
}

// RequireAuth 要求 JWT 认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		// 登出过的令牌在黑名单里
		if ja.blacklist != nil {
			if revoked, err := ja.blacklist.IsBlacklisted(claims.ID); err == nil && revoked {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "token revoked",
				})
				c.Abort()
				return
			}
		}

		// 将用户身份存储到上下文
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserName, claims.Name)
		c.Set(ContextUserRole, claims.Role)
		c.Set(ContextTokenJTI, claims.ID)

		c.Next()
	}
}

// RequireRole 要求特定角色，必须挂在 RequireAuth 之后
func (ja *JWTAuth) RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		uc, ok := UserContextFrom(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		if _, ok := allowed[uc.Role]; !ok {
			ja.log.Warn("role denied",
				zap.String("user_id", uc.ID),
				zap.String("role", string(uc.Role)),
				zap.String("path", c.Request.URL.Path),
			)
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// UserContextFrom 从 gin 上下文还原用户身份三元组
func UserContextFrom(c *gin.Context) (domain.UserContext, bool) {
	id, ok := c.Get(ContextUserID)
	if !ok {
		return domain.UserContext{}, false
	}
	name, _ := c.Get(ContextUserName)
	role, ok := c.Get(ContextUserRole)
	if !ok {
		return domain.UserContext{}, false
	}

	uc := domain.UserContext{
		ID:   id.(string),
		Role: domain.Role(role.(string)),
	}
	if name != nil {
		uc.Name, _ = name.(string)
	}
	if !uc.Role.Valid() {
		return domain.UserContext{}, false
	}
	return uc, true
}

// extractToken 从请求中提取 JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 从 cookie 提取
	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}
