package controllers

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/csipbllm/backend-go/internal/database"
	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/services"
	"go.uber.org/zap"
)

// RootController 前端入口
type RootController struct {
	BaseController
	StaticDir string
}

// Index GET /
func (c *RootController) Index() {
	path := filepath.Join(c.StaticDir, "index.html")
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		c.JSONError(http.StatusNotFound, "index.html tidak ditemukan")
		return
	}
	http.ServeFile(c.Ctx.ResponseWriter, c.Ctx.Request, path)
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
	Index   *knowledge.MaterialIndex
	Checker *database.HealthChecker
}

// NewHealthController 创建健康检查控制器；health 可为 nil
func NewHealthController(index *knowledge.MaterialIndex, health *database.HealthChecker) *HealthController {
	return &HealthController{Index: index, Checker: health}
}

// Health GET /health
func (c *HealthController) Health() {
	status := "ok"
	body := map[string]interface{}{
		"index":            c.Index.Stats(),
		"circuit_breakers": services.GetAllCircuitBreakers(),
	}
	if c.Checker != nil {
		results := c.Checker.Results()
		body["dependencies"] = results
		if !c.Checker.IsHealthy() {
			status = "degraded"
		}
	}
	body["status"] = status
	c.JSON(http.StatusOK, body)
}

// WarmupController 显式构建材料索引
type WarmupController struct {
	BaseController
	Index   *knowledge.MaterialIndex
	Metrics *services.MetricsService
}

// NewWarmupController 创建预热控制器
func NewWarmupController(index *knowledge.MaterialIndex, metrics *services.MetricsService) *WarmupController {
	return &WarmupController{Index: index, Metrics: metrics}
}

// Warmup POST /rag/warmup
func (c *WarmupController) Warmup() {
	if err := c.Index.EnsureLoaded(context.WithoutCancel(c.Ctx.Request.Context())); err != nil {
		logger.Warn("Material index warmup interrupted", zap.Error(err))
		c.JSONAppError(err)
		return
	}
	stats := c.Index.Stats()
	c.Metrics.SetIndexChunks(stats.Chunks)
	c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ready",
		"index":  stats,
	})
}

// MetricsController 指标控制器
type MetricsController struct {
	BaseController
	Service *services.MetricsService
}

// NewMetricsController 创建指标控制器
func NewMetricsController(metrics *services.MetricsService) *MetricsController {
	return &MetricsController{Service: metrics}
}

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	c.Service.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
