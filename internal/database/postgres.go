package database

import (
	"database/sql"
	"fmt"

	"github.com/csipbllm/backend-go/internal/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenPostgres 打开PostgreSQL连接并配置连接池
func OpenPostgres(cfg config.DatabaseConfig) (*gorm.DB, *sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("database url is empty")
	}

	db, err := gorm.Open(postgres.Open(cfg.URL), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Warn),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	configurePool(sqlDB, cfg)
	return db, sqlDB, nil
}

// configurePool 设置连接池参数，未配置时使用默认值
func configurePool(sqlDB *sql.DB, cfg config.DatabaseConfig) PoolSettings {
	settings := poolSettingsFor(cfg)
	sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
	sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(settings.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(settings.ConnMaxIdleTime)
	return settings
}
