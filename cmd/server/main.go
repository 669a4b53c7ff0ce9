package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"maktab/backend/internal/auth"
	jwtpkg "maktab/backend/internal/auth/jwt"
	"maktab/backend/internal/cache"
	"maktab/backend/internal/config"
	"maktab/backend/internal/health"
	"maktab/backend/internal/logger"
	"maktab/backend/internal/messaging"
	"maktab/backend/internal/monitoring"
	"maktab/backend/internal/pool"
	"maktab/backend/internal/service"
	"maktab/backend/internal/storage"
	"maktab/backend/internal/storage/hybrid"
	"maktab/backend/internal/storage/memory"
	httptransport "maktab/backend/internal/transport/http"
)

// main 启动学校站内信与考勤服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log := logger.FromConfig(cfg.Log)
	defer log.Sync()

	log.Info("starting maktab server",
		zap.String("school", cfg.School.Name),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 学校本地时区，决定"今天"的界定和日期显示
	loc, err := time.LoadLocation(cfg.School.Timezone)
	if err != nil {
		panic(fmt.Sprintf("invalid timezone %q: %v", cfg.School.Timezone, err))
	}

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" {
		store, err = hybrid.NewStore(hybrid.Options{
			DatabaseType:    cfg.Database.Type,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			RedisAddr:       cfg.Redis.Address,
			RedisPassword:   cfg.Redis.Password,
			RedisDB:         cfg.Redis.DB,
		})
		if err != nil {
			panic(fmt.Sprintf("failed to initialize storage: %v", err))
		}
		log.Info("using hybrid storage",
			zap.String("database", cfg.Database.Type),
			zap.String("redis", cfg.Redis.Address),
		)
	} else {
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, log)

	// 初始化消息引擎会话注册表
	registry := messaging.NewRegistry(store, log, cfg.Session.TTL)

	// 初始化工作池（考勤批次的异步落盘）
	workerPool := pool.NewWorkerPool(4, 64, log)

	// 初始化服务层
	authService := auth.NewService(store)
	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	rosterService := service.NewRosterService(store, cache.NewLocalCache(5*time.Minute))
	attendanceService := service.NewAttendanceService(store, workerPool, loc, log)
	studentLogService := service.NewStudentLogService(store, loc)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:            cfg,
		Store:             store,
		AuthService:       authService,
		JWTManager:        jwtManager,
		Registry:          registry,
		RosterService:     rosterService,
		AttendanceService: attendanceService,
		StudentLogService: studentLogService,
		Metrics:           metrics,
		Health:            healthChecker,
		Logger:            log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerPool.Start(ctx)

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期消息会话 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(cfg.Session.PruneInterval)
		defer ticker.Stop()

		log.Info("starting session prune task",
			zap.Duration("interval", cfg.Session.PruneInterval),
			zap.Duration("ttl", cfg.Session.TTL),
		)

		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if count := registry.PruneExpired(); count > 0 {
					metrics.RecordSessionsExpired(count)
					log.Debug("pruned expired sessions", zap.Int("count", count))
				}
				metrics.UpdateSessionsActive(registry.Len())
				if stats, err := store.GetSystemStatistics(); err == nil {
					metrics.UpdateMessagesUnread(stats.UnreadMessages)
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
			return err
		}
		workerPool.Stop()
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", zap.Error(err))
	}
	log.Info("server stopped")
}
