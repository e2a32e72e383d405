package middleware

import (
	"net/http"
	"strings"

	"github.com/beego/beego/v2/server/web/context"
)

// CORSOptions 跨域配置；AllowedOrigins 为空或含 "*" 时放行任意来源
type CORSOptions struct {
	AllowedOrigins []string
}

func (o CORSOptions) allows(origin string) bool {
	if len(o.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range o.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// NewCORSFilter 创建CORS过滤器，插入在路由之前
func NewCORSFilter(opts CORSOptions) func(ctx *context.Context) {
	return func(ctx *context.Context) {
		origin := ctx.Input.Header("Origin")
		if origin != "" && opts.allows(origin) {
			ctx.Output.Header("Access-Control-Allow-Origin", origin)
			ctx.Output.Header("Access-Control-Allow-Credentials", "true")
			ctx.Output.Header("Vary", "Origin")
		}
		ctx.Output.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		ctx.Output.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, Accept, Origin")
		ctx.Output.Header("Access-Control-Max-Age", "3600")

		if ctx.Input.Method() == http.MethodOptions {
			ctx.Output.SetStatus(http.StatusNoContent)
			_ = ctx.Output.Body([]byte(""))
		}
	}
}
