package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web"
	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"

	"github.com/csipbllm/backend-go/internal/logger"
)

const requestStartKey = "request_start"

// DefaultMaxBodyBytes 请求体上限
const DefaultMaxBodyBytes int64 = 1 << 20

// RequestStart 记录请求开始时间（BeforeRouter）
func RequestStart(ctx *context.Context) {
	ctx.Input.SetData(requestStartKey, time.Now())
}

// RequestLogger 请求完成日志（FinishRouter）
func RequestLogger(ctx *context.Context) {
	var elapsed time.Duration
	if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
		elapsed = time.Since(start)
	}
	status := ctx.ResponseWriter.Status
	if status == 0 {
		status = http.StatusOK
	}

	fields := []zap.Field{
		zap.String("method", ctx.Input.Method()),
		zap.String("path", ctx.Input.URL()),
		zap.Int("status", status),
		zap.Duration("elapsed", elapsed),
		zap.String("remote_addr", clientIP(ctx)),
	}
	switch {
	case status >= 500:
		logger.Error("Request completed", fields...)
	case status >= 400:
		logger.Warn("Request completed", fields...)
	default:
		logger.Debug("Request completed", fields...)
	}
}

// SecurityHeaders 安全响应头
func SecurityHeaders(ctx *context.Context) {
	ctx.Output.Header("X-Content-Type-Options", "nosniff")
	ctx.Output.Header("X-Frame-Options", "DENY")
	ctx.Output.Header("Referrer-Policy", "strict-origin-when-cross-origin")
}

// NewBodyGuard 拒绝过大或非JSON的POST请求体
func NewBodyGuard(maxBytes int64) web.FilterFunc {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(ctx *context.Context) {
		if ctx.Input.Method() != http.MethodPost {
			return
		}
		if ctx.Request.ContentLength > maxBytes {
			abort(ctx, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		contentType := ctx.Request.Header.Get("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			abort(ctx, http.StatusUnsupportedMediaType, "content type must be application/json")
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.ResponseWriter, ctx.Request.Body, maxBytes)
	}
}

func abort(ctx *context.Context, status int, message string) {
	ctx.Output.SetStatus(status)
	_ = ctx.Output.JSON(map[string]string{"error": message}, false, false)
}

func clientIP(ctx *context.Context) string {
	if forwarded := ctx.Input.Header("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := ctx.Input.Header("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ctx.Input.IP()
}
