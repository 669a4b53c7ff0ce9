package main

import (
	"fmt"

	"go.uber.org/zap"

	"maktab/backend/internal/config"
	"maktab/backend/internal/logger"
	sqlstore "maktab/backend/internal/storage/sql"
)

// main 对配置的数据库执行表结构迁移后退出。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.FromConfig(cfg.Log)
	defer log.Sync()

	if cfg.Database.Type == "" {
		log.Fatal("no database configured, set MAKTAB_DATABASE_TYPE and MAKTAB_DATABASE_DSN")
	}

	log.Info("running migrations", zap.String("database", cfg.Database.Type))

	// NewStore 在建连时执行 AutoMigrate
	store, err := sqlstore.NewStore(
		cfg.Database.Type,
		cfg.Database.DSN,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
	)
	if err != nil {
		log.Fatal("migration failed", zap.Error(err))
	}
	defer store.Close()

	log.Info("migrations complete")
}
