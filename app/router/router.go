package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/csipbllm/backend-go/app/controllers"
	"github.com/csipbllm/backend-go/app/middleware"
)

// Options 路由配置
type Options struct {
	StaticDir    string
	CORSOrigins  []string
	MaxBodyBytes int64
}

// Init registers all routes. Must be called after the container is populated.
func Init(factory *controllers.ControllerFactory, opts Options) error {
	web.InsertFilter("/*", web.BeforeStatic, middleware.RequestStart)
	web.InsertFilter("/*", web.BeforeStatic, middleware.NewBodyGuard(opts.MaxBodyBytes))
	web.InsertFilter("/*", web.BeforeRouter, middleware.SecurityHeaders)
	web.InsertFilter("/*", web.BeforeRouter, middleware.NewCORSFilter(middleware.CORSOptions{
		AllowedOrigins: opts.CORSOrigins,
	}))
	web.InsertFilter("/*", web.FinishRouter, middleware.RequestLogger, web.WithReturnOnOutput(false))

	tutorController, err := factory.CreateTutorController()
	if err != nil {
		return err
	}
	historyController, err := factory.CreateHistoryController()
	if err != nil {
		return err
	}
	healthController, err := factory.CreateHealthController()
	if err != nil {
		return err
	}
	warmupController, err := factory.CreateWarmupController()
	if err != nil {
		return err
	}
	metricsController, err := factory.CreateMetricsController()
	if err != nil {
		return err
	}

	web.Router("/", &controllers.RootController{StaticDir: opts.StaticDir}, "get:Index")
	web.Router("/chat", tutorController, "post:Chat")
	web.Router("/evaluate", tutorController, "post:Evaluate")
	web.Router("/history", historyController, "get:Get")
	web.Router("/health", healthController, "get:Health")
	web.Router("/rag/warmup", warmupController, "post:Warmup")
	web.Router("/metrics", metricsController, "get:Metrics")

	if opts.StaticDir != "" {
		web.SetStaticPath("/static", opts.StaticDir)
	}
	return nil
}
