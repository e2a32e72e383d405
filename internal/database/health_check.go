package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Probe 单个依赖的连通性检查
type Probe func(ctx context.Context) error

// SQLProbe PostgreSQL 连通性检查
func SQLProbe(db *sql.DB) Probe {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// RedisProbe Redis 连通性检查
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// HealthCheckResult 单个依赖的检查结果
type HealthCheckResult struct {
	Name         string    `json:"name"`
	Healthy      bool      `json:"healthy"`
	LastCheck    time.Time `json:"last_check"`
	LastError    string    `json:"last_error,omitempty"`
	ResponseTime string    `json:"response_time,omitempty"`
}

type probeState struct {
	name   string
	probe  Probe
	result HealthCheckResult
}

// HealthChecker 依赖健康检查器：定期检查已注册的探针
type HealthChecker struct {
	logger        *logrus.Logger
	checkInterval time.Duration
	timeout       time.Duration

	mu       sync.RWMutex
	probes   []*probeState
	stopChan chan struct{}
	running  bool
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(logger *logrus.Logger) *HealthChecker {
	return &HealthChecker{
		logger:        logger,
		checkInterval: 30 * time.Second,
		timeout:       5 * time.Second,
		stopChan:      make(chan struct{}),
	}
}

// AddProbe 注册探针；同名探针会被替换
func (hc *HealthChecker) AddProbe(name string, probe Probe) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for _, p := range hc.probes {
		if p.name == name {
			p.probe = probe
			return
		}
	}
	hc.probes = append(hc.probes, &probeState{
		name:   name,
		probe:  probe,
		result: HealthCheckResult{Name: name},
	})
}

// SetCheckInterval 设置检查间隔
func (hc *HealthChecker) SetCheckInterval(interval time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checkInterval = interval
}

// SetTimeout 设置单次探针超时
func (hc *HealthChecker) SetTimeout(timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.timeout = timeout
}

// Start 阻塞运行定期检查，直到 ctx 结束或 Stop 被调用
func (hc *HealthChecker) Start(ctx context.Context) {
	hc.mu.Lock()
	if hc.running {
		hc.mu.Unlock()
		return
	}
	hc.running = true
	interval := hc.checkInterval
	stop := hc.stopChan
	hc.mu.Unlock()

	hc.logger.Info("Starting dependency health checker")
	hc.Check(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			hc.setStopped()
			return
		case <-stop:
			hc.setStopped()
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

func (hc *HealthChecker) setStopped() {
	hc.mu.Lock()
	hc.running = false
	hc.mu.Unlock()
	hc.logger.Info("Dependency health checker stopped")
}

// Stop 停止定期检查
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	if !hc.running {
		return
	}
	close(hc.stopChan)
	hc.stopChan = make(chan struct{})
}

// Check 执行一轮检查，返回所有失败探针的合并错误
func (hc *HealthChecker) Check(ctx context.Context) error {
	hc.mu.RLock()
	probes := make([]*probeState, len(hc.probes))
	copy(probes, hc.probes)
	timeout := hc.timeout
	hc.mu.RUnlock()

	var errs []error
	for _, p := range probes {
		if err := hc.checkOne(ctx, p, timeout); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.name, err))
		}
	}
	return errors.Join(errs...)
}

func (hc *HealthChecker) checkOne(ctx context.Context, p *probeState, timeout time.Duration) error {
	start := time.Now()
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	err := p.probe(probeCtx)
	cancel()
	responseTime := time.Since(start)

	hc.mu.Lock()
	wasHealthy := p.result.Healthy
	p.result.LastCheck = time.Now()
	p.result.ResponseTime = responseTime.String()
	p.result.Healthy = err == nil
	p.result.LastError = ""
	if err != nil {
		p.result.LastError = err.Error()
	}
	hc.mu.Unlock()

	entry := hc.logger.WithFields(logrus.Fields{
		"probe":         p.name,
		"response_time": responseTime,
	})
	switch {
	case err != nil:
		entry.WithError(err).Warn("Dependency health check failed")
	case !wasHealthy:
		entry.Info("Dependency connection healthy")
	default:
		entry.Debug("Dependency health check passed")
	}
	return err
}

// IsHealthy 全部探针最近一次检查均成功；未注册探针时视为健康
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	for _, p := range hc.probes {
		if !p.result.Healthy {
			return false
		}
	}
	return true
}

// Results 返回各探针最近一次结果（按注册顺序）
func (hc *HealthChecker) Results() []HealthCheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	out := make([]HealthCheckResult, 0, len(hc.probes))
	for _, p := range hc.probes {
		out = append(out, p.result)
	}
	return out
}

// WaitForHealthy 等待全部依赖变为健康
func (hc *HealthChecker) WaitForHealthy(ctx context.Context, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if hc.IsHealthy() {
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			return timeoutCtx.Err()
		case <-ticker.C:
		}
	}
}
