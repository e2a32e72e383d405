package bootstrap

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/csipbllm/backend-go/internal/database"
	"github.com/csipbllm/backend-go/internal/di"
	"github.com/csipbllm/backend-go/internal/kafka"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/repository"
	"github.com/csipbllm/backend-go/internal/services"
	"github.com/csipbllm/backend-go/internal/storage"
)

// restoreLimit 启动时从数据库恢复的对话条数
const restoreLimit = 500

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	Config    *config.Config
	Container *dig.Container

	cleanupTasks []func() error
	cancel       context.CancelFunc
}

// Init bootstraps configuration, logger, optional infrastructure and the
// dependency container required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	cfg := config.AppConfig

	if err := logger.InitLogger(logger.Options{Env: cfg.Server.Env, Level: cfg.Server.LogLevel}); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{Config: cfg, cancel: cancel}

	infra := app.initInfrastructure(ctx, cfg)

	app.Container = di.InitContainer()
	if err := di.RegisterProviders(app.Container, cfg, infra); err != nil {
		app.Shutdown()
		return nil, err
	}

	conversations, err := di.Resolve[*services.ConversationService](app.Container)
	if err != nil {
		app.Shutdown()
		return nil, err
	}
	if n, err := conversations.Restore(ctx, restoreLimit); err != nil {
		logger.Warn("Failed to restore conversation log", zap.Error(err))
	} else if n > 0 {
		logger.Info("Conversation log restored", zap.Int("entries", n))
	}

	return app, nil
}

// initInfrastructure 连接可选的外部依赖；任何失败都只降级，不阻断启动
func (a *App) initInfrastructure(ctx context.Context, cfg *config.Config) di.Infrastructure {
	dbLogger := logrus.New()
	dbLogger.SetOutput(os.Stdout)
	dbLogger.SetFormatter(&logrus.JSONFormatter{})

	infra := di.Infrastructure{
		Metrics: services.NewMetricsService(),
		Health:  database.NewHealthChecker(dbLogger),
	}

	if cfg.Database.Enabled {
		db, err := database.NewDatabase(cfg.Database, infra.Metrics.Registerer(), dbLogger)
		if err != nil {
			logger.Warn("Failed to initialize database, conversation log stays in memory", zap.Error(err))
		} else {
			infra.Database = db
			infra.Health = db.HealthChecker()
			db.StartMonitoring(ctx)
			a.cleanupTasks = append(a.cleanupTasks, db.Close)
		}
	}

	if cfg.Session.Provider == "redis" || cfg.RAG.Cache.Provider == "redis" {
		client, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Failed to initialize Redis", zap.Error(err))
		} else {
			infra.Redis = client
			infra.Health.AddProbe("redis", database.RedisProbe(client))
			a.cleanupTasks = append(a.cleanupTasks, client.Close)
		}
	}

	if cfg.RAG.Cache.Provider == "minio" {
		client, err := storage.InitMinIO(ctx, cfg.Storage)
		if err != nil {
			logger.Warn("Failed to initialize MinIO", zap.Error(err))
		} else {
			infra.MinIO = client
		}
	}

	if cfg.Kafka.Enabled {
		a.initKafka(ctx, cfg.Kafka, &infra)
	}

	if infra.Database == nil {
		go infra.Health.Start(ctx)
	}
	return infra
}

func (a *App) initKafka(ctx context.Context, cfg config.KafkaConfig, infra *di.Infrastructure) {
	producer, err := kafka.NewProducer(cfg.Brokers, cfg.Topic)
	if err != nil {
		logger.Warn("Failed to initialize Kafka producer", zap.Error(err))
		return
	}
	infra.Producer = producer
	a.cleanupTasks = append(a.cleanupTasks, producer.Close)

	// 没有数据库时事件无人落库，不启动消费者
	if infra.Database == nil {
		return
	}
	consumer, err := kafka.NewConsumer(cfg.Brokers, cfg.GroupID, []string{cfg.Topic})
	if err != nil {
		logger.Warn("Failed to initialize Kafka consumer", zap.Error(err))
		return
	}
	repo := repository.NewConversationRepository(infra.Database.GetDB(), infra.Database.Metrics())
	consumer.RegisterHandler(cfg.Topic, kafka.PersistConversationHandler(repo))
	consumer.Start(ctx)
	a.cleanupTasks = append(a.cleanupTasks, consumer.Close)
}

// Shutdown stops background work and closes resources gracefully.
func (a *App) Shutdown() {
	if a.cancel != nil {
		a.cancel()
	}

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			logger.Warn("Cleanup error", zap.Error(err))
		}
	}

	logger.Sync()
}
