package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maktab/backend/internal/auth"
	jwtpkg "maktab/backend/internal/auth/jwt"
	"maktab/backend/internal/config"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/health"
	"maktab/backend/internal/messaging"
	"maktab/backend/internal/middleware"
	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/service"
	"maktab/backend/internal/storage"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config            *config.Config
	Store             storage.Store
	AuthService       *auth.Service
	JWTManager        *jwtpkg.Manager
	Registry          *messaging.Registry
	RosterService     *service.RosterService
	AttendanceService *service.AttendanceService
	StudentLogService *service.StudentLogService
	Metrics           *monitoring.Metrics
	Health            *health.HealthChecker
	Logger            *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	// 使用自定义中间件替代默认中间件
	router.Use(middleware.RecoveryHandler(deps.Logger, deps.Metrics))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.BodySizeLimit(middleware.DefaultBodyLimit))

	if deps.Metrics != nil {
		mon := middleware.NewMonitoringMiddleware(deps.Metrics)
		router.Use(mon.HTTPMetrics())
	}

	// CORS 配置
	corsConfig := gincors.Config{
		AllowOrigins:     deps.Config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	// 创建处理器
	authHandler := NewAuthHandler(deps.AuthService, deps.JWTManager, deps.Store, deps.Registry, deps.Metrics, deps.Logger)
	messageHandler := NewMessageHandler(deps.Registry, deps.RosterService, deps.Metrics, deps.Logger)
	rosterHandler := NewRosterHandler(deps.RosterService, deps.Logger)
	attendanceHandler := NewAttendanceHandler(deps.AttendanceService, deps.Metrics, deps.Logger)
	studentLogHandler := NewStudentLogHandler(deps.StudentLogService, deps.Metrics, deps.Logger)
	adminHandler := NewAdminHandler(deps.AuthService, deps.RosterService, deps.Store, deps.Logger)

	// 创建中间件
	jwtAuth := middleware.NewJWTAuth(deps.JWTManager, deps.Store, deps.Logger)
	rateLimiter := middleware.NewRateLimiter(
		deps.Config.RateLimit.RequestsPerMinute,
		deps.Config.RateLimit.Burst,
		deps.Store,
		deps.Logger,
	).WithMetrics(deps.Metrics)

	// 健康检查与指标
	if deps.Health != nil {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, deps.Health.CheckHealth())
		})
		router.GET("/live", gin.WrapF(deps.Health.LiveHandler()))
		router.GET("/ready", gin.WrapF(deps.Health.ReadyHandler()))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// V1 API
	v1 := router.Group("/v1")
	v1.Use(rateLimiter.Limit("api"))
	{
		// ========== Auth Routes ==========
		authRoutes := v1.Group("/auth")
		{
			authRoutes.POST("/login", rateLimiter.Limit("login"), authHandler.Login)
			authRoutes.POST("/refresh", authHandler.Refresh)
			authRoutes.POST("/logout", jwtAuth.RequireAuth(), authHandler.Logout)
			authRoutes.GET("/me", jwtAuth.RequireAuth(), authHandler.Me)
			authRoutes.PUT("/password", jwtAuth.RequireAuth(), authHandler.ChangePassword)
		}

		// ========== Message Routes ==========
		messageRoutes := v1.Group("/messages")
		messageRoutes.Use(jwtAuth.RequireAuth())
		{
			messageRoutes.GET("", messageHandler.List)
			messageRoutes.GET("/state", messageHandler.State)
			messageRoutes.POST("/refresh", messageHandler.Refresh)

			// 撰写流程：进入撰写 -> 发送或放弃
			messageRoutes.POST("/compose", messageHandler.StartCompose)
			messageRoutes.DELETE("/compose", messageHandler.CancelCompose)
			messageRoutes.POST("", middleware.BodySizeLimit(middleware.MessageBodyLimit), messageHandler.Compose)

			// 选中与线程操作
			messageRoutes.POST("/:id/select", messageHandler.Select)
			messageRoutes.DELETE("/selection", messageHandler.ClearSelection)
			messageRoutes.POST("/:id/read", messageHandler.MarkRead)
			messageRoutes.POST("/reply", middleware.BodySizeLimit(middleware.MessageBodyLimit), messageHandler.Reply)
			messageRoutes.DELETE("/:id", messageHandler.Delete)
		}

		// ========== Directory Routes ==========
		v1.GET("/directory", jwtAuth.RequireAuth(), rosterHandler.Directory)
		v1.GET("/students", jwtAuth.RequireAuth(), jwtAuth.RequireRole(domain.RoleTeacher, domain.RoleAdmin), rosterHandler.Students)

		// ========== Attendance Routes ==========
		attendanceRoutes := v1.Group("/attendance")
		attendanceRoutes.Use(jwtAuth.RequireAuth())
		{
			attendanceRoutes.POST("", jwtAuth.RequireRole(domain.RoleTeacher, domain.RoleAdmin), attendanceHandler.SaveBatch)
			attendanceRoutes.GET("", jwtAuth.RequireRole(domain.RoleTeacher, domain.RoleAdmin), attendanceHandler.ListByTeacher)
			attendanceRoutes.GET("/students/:name", attendanceHandler.ListByStudent)
		}

		// ========== Student Log Routes ==========
		logRoutes := v1.Group("/logs")
		logRoutes.Use(jwtAuth.RequireAuth())
		{
			logRoutes.POST("", jwtAuth.RequireRole(domain.RoleTeacher, domain.RoleAdmin), studentLogHandler.Append)
			logRoutes.GET("/students/:studentId", studentLogHandler.List)
			logRoutes.DELETE("/:id", jwtAuth.RequireRole(domain.RoleTeacher, domain.RoleAdmin), studentLogHandler.Delete)
		}

		// ========== Admin Routes ==========
		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(jwtAuth.RequireAuth(), jwtAuth.RequireRole(domain.RoleAdmin))
		{
			adminRoutes.POST("/users", adminHandler.CreateUser)
			adminRoutes.GET("/users", adminHandler.ListUsers)
			adminRoutes.GET("/users/:id", adminHandler.GetUser)
			adminRoutes.PATCH("/users/:id/deactivate", adminHandler.DeactivateUser)
			adminRoutes.POST("/users/:id/reset-password", adminHandler.ResetPassword)
			adminRoutes.DELETE("/users/:id", adminHandler.DeleteUser)

			adminRoutes.GET("/statistics", adminHandler.Statistics)
		}
	}

	return router
}
