package main

import (
	"flag"
	"fmt"

	"go.uber.org/zap"

	"maktab/backend/internal/auth"
	"maktab/backend/internal/config"
	"maktab/backend/internal/domain"
	"maktab/backend/internal/logger"
	"maktab/backend/internal/storage"
	"maktab/backend/internal/storage/hybrid"
)

// main 创建初始管理员账号。
//
// 全新部署后运行一次，之后的账号都由管理员在管理端创建。
func main() {
	code := flag.String("code", "admin", "登录编号")
	name := flag.String("name", "المدير", "显示姓名")
	password := flag.String("password", "", "初始密码（必填，至少 8 个字符）")
	email := flag.String("email", "", "邮箱（可选）")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.FromConfig(cfg.Log)
	defer log.Sync()

	if *password == "" {
		log.Fatal("password is required, pass -password")
	}
	if cfg.Database.Type == "" {
		log.Fatal("no database configured, set MAKTAB_DATABASE_TYPE and MAKTAB_DATABASE_DSN")
	}

	var store storage.Store
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
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer store.Close()

	authService := auth.NewService(store)
	user, err := authService.CreateAccount(auth.CreateAccountInput{
		Code:     *code,
		Name:     *name,
		Role:     domain.RoleAdmin,
		Password: *password,
		Email:    *email,
	})
	if err != nil {
		log.Fatal("failed to create admin", zap.Error(err))
	}

	log.Info("admin account created",
		zap.String("user_id", user.ID),
		zap.String("code", user.Code),
	)
}
