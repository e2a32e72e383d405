package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/csipbllm/backend-go/app/bootstrap"
	"github.com/csipbllm/backend-go/app/controllers"
	"github.com/csipbllm/backend-go/app/router"
	"github.com/csipbllm/backend-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()

	cfg := app.Config
	if err := router.Init(controllers.NewControllerFactory(app.Container), router.Options{
		StaticDir:   cfg.Server.StaticDir,
		CORSOrigins: cfg.Server.CORSOrigins,
	}); err != nil {
		logger.Fatal("Failed to register routes", zap.Error(err))
	}

	port, err := strconv.Atoi(cfg.Server.Port)
	if err != nil {
		logger.Fatal("Invalid server port", zap.String("port", cfg.Server.Port), zap.Error(err))
	}

	web.BConfig.AppName = "CSIPB Tutor"
	web.BConfig.CopyRequestBody = true
	web.BConfig.WebConfig.AutoRender = false
	web.BConfig.Listen.HTTPPort = port
	if cfg.Server.Env == "production" {
		web.BConfig.RunMode = web.PROD
	}

	logger.Info("Starting tutor service",
		zap.Int("port", port),
		zap.String("env", cfg.Server.Env))
	web.Run()
}
