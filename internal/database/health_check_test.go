package database

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return logger
}

func TestHealthChecker_SQLProbe(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing()

	checker := NewHealthChecker(newTestLogger())
	checker.AddProbe("postgres", SQLProbe(db))

	require.NoError(t, checker.Check(context.Background()))
	assert.True(t, checker.IsHealthy())

	results := checker.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "postgres", results[0].Name)
	assert.True(t, results[0].Healthy)
	assert.Empty(t, results[0].LastError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_FailureAndRecovery(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	checker := NewHealthChecker(newTestLogger())
	checker.AddProbe("postgres", SQLProbe(db))

	mock.ExpectPing().WillReturnError(sqlmock.ErrCancelled)
	err = checker.Check(context.Background())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
	assert.False(t, checker.IsHealthy())
	assert.NotEmpty(t, checker.Results()[0].LastError)

	mock.ExpectPing()
	assert.NoError(t, checker.Check(context.Background()))
	assert.True(t, checker.IsHealthy())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthChecker_MultipleProbes(t *testing.T) {
	checker := NewHealthChecker(newTestLogger())
	checker.AddProbe("postgres", func(ctx context.Context) error { return nil })
	checker.AddProbe("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	err := checker.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis: connection refused")
	assert.False(t, checker.IsHealthy())

	results := checker.Results()
	require.Len(t, results, 2)
	assert.True(t, results[0].Healthy)
	assert.False(t, results[1].Healthy)

	checker.AddProbe("redis", func(ctx context.Context) error { return nil })
	require.NoError(t, checker.Check(context.Background()))
	assert.True(t, checker.IsHealthy())
	assert.Len(t, checker.Results(), 2)
}

func TestHealthChecker_NoProbesIsHealthy(t *testing.T) {
	checker := NewHealthChecker(newTestLogger())
	assert.True(t, checker.IsHealthy())
	assert.NoError(t, checker.Check(context.Background()))
}

func TestHealthChecker_ProbeTimeout(t *testing.T) {
	checker := NewHealthChecker(newTestLogger())
	checker.SetTimeout(20 * time.Millisecond)
	checker.AddProbe("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := checker.Check(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealthChecker_BackgroundMonitoring(t *testing.T) {
	var calls atomic.Int32
	checker := NewHealthChecker(newTestLogger())
	checker.SetCheckInterval(20 * time.Millisecond)
	checker.AddProbe("postgres", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	done := make(chan struct{})
	go func() {
		checker.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, 10*time.Millisecond)
	checker.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("health checker did not stop")
	}
	assert.True(t, checker.IsHealthy())
}

func TestHealthChecker_WaitForHealthy(t *testing.T) {
	var healthy atomic.Bool
	checker := NewHealthChecker(newTestLogger())
	checker.AddProbe("postgres", func(ctx context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("down")
	})

	require.Error(t, checker.Check(context.Background()))

	go func() {
		time.Sleep(30 * time.Millisecond)
		healthy.Store(true)
		checker.Check(context.Background())
	}()

	assert.NoError(t, checker.WaitForHealthy(context.Background(), time.Second))
}

func TestHealthChecker_WaitForHealthyTimeout(t *testing.T) {
	checker := NewHealthChecker(newTestLogger())
	checker.AddProbe("postgres", func(ctx context.Context) error { return errors.New("down") })
	require.Error(t, checker.Check(context.Background()))

	err := checker.WaitForHealthy(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
