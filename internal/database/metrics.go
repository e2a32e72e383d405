package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
)

// MetricsCollector 数据库指标收集器
type MetricsCollector struct {
	db              *sql.DB
	logger          *logrus.Logger
	collectInterval time.Duration

	connections   *prometheus.GaugeVec
	queries       *prometheus.CounterVec
	queryDuration *prometheus.HistogramVec
	errors        *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器，指标注册到 reg
func NewMetricsCollector(db *sql.DB, reg prometheus.Registerer, logger *logrus.Logger) *MetricsCollector {
	factory := promauto.With(reg)
	return &MetricsCollector{
		db:              db,
		logger:          logger,
		collectInterval: 15 * time.Second,
		connections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "database_connections",
				Help: "Database connection pool statistics by state",
			},
			[]string{"state"},
		),
		queries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_queries_total",
				Help: "Total number of database queries executed",
			},
			[]string{"operation", "table", "status"},
		),
		queryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "database_query_duration_seconds",
				Help:    "Duration of database queries",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "database_errors_total",
				Help: "Total number of database errors",
			},
			[]string{"operation", "error_type"},
		),
	}
}

// Start 定期采集连接池指标，直到 ctx 结束
func (mc *MetricsCollector) Start(ctx context.Context) {
	mc.logger.Info("Starting database metrics collection")

	go func() {
		ticker := time.NewTicker(mc.collectInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mc.Collect()
			}
		}
	}()
}

// Collect 采集一次连接池指标
func (mc *MetricsCollector) Collect() {
	stats := mc.db.Stats()

	mc.connections.WithLabelValues("idle").Set(float64(stats.Idle))
	mc.connections.WithLabelValues("in_use").Set(float64(stats.InUse))
	mc.connections.WithLabelValues("open").Set(float64(stats.OpenConnections))
	mc.connections.WithLabelValues("max_open").Set(float64(stats.MaxOpenConnections))
	mc.connections.WithLabelValues("wait_count").Set(float64(stats.WaitCount))

	mc.logger.WithFields(logrus.Fields{
		"idle":   stats.Idle,
		"in_use": stats.InUse,
		"open":   stats.OpenConnections,
		"wait":   stats.WaitCount,
	}).Debug("Database connection pool stats collected")
}

// RecordQuery 记录查询操作
func (mc *MetricsCollector) RecordQuery(operation, table string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		mc.errors.WithLabelValues(operation, "query_error").Inc()
	}

	mc.queries.WithLabelValues(operation, table, status).Inc()
	mc.queryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordMigration 记录迁移操作
func (mc *MetricsCollector) RecordMigration(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		mc.errors.WithLabelValues("migration", "migration_error").Inc()
	}

	mc.queries.WithLabelValues("migration", operation, status).Inc()
	if err == nil {
		mc.queryDuration.WithLabelValues("migration", operation).Observe(duration.Seconds())
	}
}
