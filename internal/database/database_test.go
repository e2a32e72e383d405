package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/csipbllm/backend-go/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestDatabase_HealthAndMetrics(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	d := newDatabase(db, sqlDB, config.DatabaseConfig{}, reg, newTestLogger())
	assert.Same(t, db, d.GetDB())
	assert.Same(t, sqlDB, d.SQL())

	mock.ExpectPing()
	require.NoError(t, d.HealthChecker().Check(context.Background()))
	assert.True(t, d.HealthChecker().IsHealthy())

	d.Metrics().RecordQuery("insert", "conversation_logs", 10*time.Millisecond, nil)
	d.Metrics().RecordQuery("insert", "conversation_logs", 10*time.Millisecond, assert.AnError)
	d.Metrics().Collect()

	assert.Equal(t, 1.0, testutil.ToFloat64(d.Metrics().queries.WithLabelValues("insert", "conversation_logs", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.Metrics().errors.WithLabelValues("insert", "query_error")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDatabase_InvalidURL(t *testing.T) {
	_, err := NewDatabase(config.DatabaseConfig{}, prometheus.NewRegistry(), newTestLogger())
	assert.Error(t, err)
}
