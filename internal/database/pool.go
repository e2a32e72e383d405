package database

import (
	"time"

	"github.com/csipbllm/backend-go/internal/config"
)

// PoolSettings 生效的连接池参数
type PoolSettings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

const (
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 30 * time.Minute
)

func poolSettingsFor(cfg config.DatabaseConfig) PoolSettings {
	s := PoolSettings{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
	if s.MaxOpenConns <= 0 {
		s.MaxOpenConns = defaultMaxOpenConns
	}
	if s.MaxIdleConns <= 0 {
		s.MaxIdleConns = defaultMaxIdleConns
	}
	if s.MaxIdleConns > s.MaxOpenConns {
		s.MaxIdleConns = s.MaxOpenConns
	}
	if s.ConnMaxLifetime <= 0 {
		s.ConnMaxLifetime = defaultConnMaxLifetime
	}
	if s.ConnMaxIdleTime <= 0 {
		s.ConnMaxIdleTime = defaultConnMaxIdleTime
	}
	return s
}
