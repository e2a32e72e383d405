package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Database 数据库包装器：连接、迁移、健康检查与指标
type Database struct {
	db            *gorm.DB
	sqlDB         *sql.DB
	config        config.DatabaseConfig
	healthChecker *HealthChecker
	metrics       *MetricsCollector
	logger        *logrus.Logger
}

// NewDatabase 连接PostgreSQL；开启 AutoMigrate 时执行迁移
func NewDatabase(cfg config.DatabaseConfig, reg prometheus.Registerer, logger *logrus.Logger) (*Database, error) {
	db, sqlDB, err := OpenPostgres(cfg)
	if err != nil {
		return nil, err
	}

	d := newDatabase(db, sqlDB, cfg, reg, logger)
	if cfg.AutoMigrate {
		if err := d.Migrate(); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("database migration failed: %w", err)
		}
	}
	return d, nil
}

func newDatabase(db *gorm.DB, sqlDB *sql.DB, cfg config.DatabaseConfig, reg prometheus.Registerer, logger *logrus.Logger) *Database {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	checker := NewHealthChecker(logger)
	checker.AddProbe("postgres", SQLProbe(sqlDB))

	return &Database{
		db:            db,
		sqlDB:         sqlDB,
		config:        cfg,
		healthChecker: checker,
		metrics:       NewMetricsCollector(sqlDB, reg, logger),
		logger:        logger,
	}
}

// Migrate 执行全部待执行迁移
func (d *Database) Migrate() error {
	start := time.Now()
	manager, err := NewMigrationManager(d.sqlDB, d.config.MigrationsPath, d.logger)
	if err != nil {
		d.metrics.RecordMigration("up", time.Since(start), err)
		return err
	}
	// 不关闭 manager：其数据库驱动共享 sqlDB

	err = manager.Up()
	d.metrics.RecordMigration("up", time.Since(start), err)
	return err
}

// GetDB 获取gorm连接
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// SQL 获取底层sql.DB
func (d *Database) SQL() *sql.DB {
	return d.sqlDB
}

// Metrics 数据库指标收集器（实现查询观察者）
func (d *Database) Metrics() *MetricsCollector {
	return d.metrics
}

// HealthChecker 依赖健康检查器
func (d *Database) HealthChecker() *HealthChecker {
	return d.healthChecker
}

// StartMonitoring 启动健康检查和指标收集
func (d *Database) StartMonitoring(ctx context.Context) {
	go d.healthChecker.Start(ctx)
	d.metrics.Start(ctx)
}

// Close 关闭数据库连接
func (d *Database) Close() error {
	d.healthChecker.Stop()
	if d.sqlDB == nil {
		return nil
	}
	return d.sqlDB.Close()
}
