package services

import (
	"context"
	"errors"
	"time"

	"github.com/csipbllm/backend-go/internal/llm"
	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// 模型调用用途（指标标签）
const (
	PurposeAnswer   = "answer"
	PurposeCompare  = "compare"
	PurposeFollowup = "followup"
	PurposeEvaluate = "evaluate"
	PurposeJudge    = "judge"
	PurposeCompress = "compress"
)

// GuardedGenerator 为模型调用加上熔断与耗时指标
type GuardedGenerator struct {
	inner   llm.Generator
	breaker *CircuitBreaker
	metrics *MetricsService
}

// NewGuardedGenerator 创建受保护的生成器；breaker、metrics 可为 nil
func NewGuardedGenerator(inner llm.Generator, breaker *CircuitBreaker, metrics *MetricsService) *GuardedGenerator {
	return &GuardedGenerator{inner: inner, breaker: breaker, metrics: metrics}
}

// IsConnectivityFailure 仅连接类错误计入熔断
func IsConnectivityFailure(err error) bool {
	return errors.Is(err, llm.ErrUnavailable) || errors.Is(err, llm.ErrTimeout)
}

// Generate 以 answer 用途调用模型
func (g *GuardedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.GenerateFor(ctx, PurposeAnswer, prompt)
}

// GenerateFor 调用模型并记录用途
func (g *GuardedGenerator) GenerateFor(ctx context.Context, purpose, prompt string) (string, error) {
	start := time.Now()

	var text string
	call := func() error {
		var err error
		text, err = g.inner.Generate(ctx, prompt)
		return err
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Call(call)
	} else {
		err = call()
	}

	elapsed := time.Since(start)
	g.metrics.ObserveModelCall(purpose, elapsed, err)
	if err != nil {
		logger.Warn("Model call failed",
			zap.String("purpose", purpose),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return "", err
	}
	logger.Debug("Model call finished", zap.String("purpose", purpose), zap.Duration("elapsed", elapsed))
	return text, nil
}

// For 返回固定用途的生成器视图
func (g *GuardedGenerator) For(purpose string) llm.Generator {
	return purposeGenerator{g: g, purpose: purpose}
}

type purposeGenerator struct {
	g       *GuardedGenerator
	purpose string
}

func (p purposeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return p.g.GenerateFor(ctx, p.purpose, prompt)
}

// generateOrSentinel 失败时以哨兵文本代替回答
func generateOrSentinel(ctx context.Context, g *GuardedGenerator, purpose, prompt string) string {
	text, err := g.GenerateFor(ctx, purpose, prompt)
	if err != nil {
		return llm.SentinelFor(err)
	}
	return text
}
