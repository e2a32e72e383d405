package di

import (
	"context"
	"fmt"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/csipbllm/backend-go/internal/database"
	"github.com/csipbllm/backend-go/internal/kafka"
	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/llm"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/repository"
	"github.com/csipbllm/backend-go/internal/services"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"go.uber.org/dig"
	"go.uber.org/zap"
)

// Infrastructure 启动时建立的可选外部连接，未启用的字段为 nil
type Infrastructure struct {
	Database *database.Database
	Redis    *redis.Client
	MinIO    *minio.Client
	Producer *kafka.Producer
	Health   *database.HealthChecker
	Metrics  *services.MetricsService
}

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container, cfg *config.Config, infra Infrastructure) error {
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	providers := []interface{}{
		func() *config.Config { return cfg },
		func() Infrastructure { return infra },
		func() *database.HealthChecker { return infra.Health },
		func() *services.MetricsService {
			if infra.Metrics != nil {
				return infra.Metrics
			}
			return services.NewMetricsService()
		},
		provideGenerator,
		provideGuardedGenerator,
		provideEmbedder,
		provideSimilarity,
		provideCacheStore,
		provideCompressor,
		provideMaterialIndex,
		provideEvaluator,
		provideSessionStore,
		provideConversationService,
		provideTutorService,
		provideEvaluationService,
	}
	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

// OllamaBaseURL 生成与向量共用的 Ollama 地址
type OllamaBaseURL string

func provideGenerator(cfg *config.Config) (llm.Generator, OllamaBaseURL) {
	base := llm.DetectBaseURL(context.Background(), cfg.Ollama.Host, cfg.Ollama.Ports, cfg.Ollama.ProbeTimeout)
	client := llm.NewClient(llm.Options{
		BaseURL:      base,
		Model:        cfg.Ollama.Model,
		Timeout:      cfg.Ollama.Timeout,
		Retries:      cfg.Ollama.Retries,
		RetryDelay:   cfg.Ollama.RetryDelay,
		Temperature:  cfg.Ollama.Temperature,
		UseOpenAIAPI: cfg.Ollama.UseOpenAIAPI,
	})
	return client, OllamaBaseURL(base)
}

func provideGuardedGenerator(generator llm.Generator, metrics *services.MetricsService) *services.GuardedGenerator {
	opts := services.DefaultCircuitBreakerOptions()
	opts.IsFailure = services.IsConnectivityFailure
	breaker := services.GetCircuitBreaker("ollama", opts)
	return services.NewGuardedGenerator(generator, breaker, metrics)
}

func provideEmbedder(cfg *config.Config, base OllamaBaseURL) knowledge.Embedder {
	if cfg.Ollama.UseOpenAIAPI {
		return knowledge.NewOpenAIEmbedder(string(base)+"/v1", "", cfg.Ollama.EmbeddingModel)
	}
	return knowledge.NewOllamaEmbedder(string(base), cfg.Ollama.EmbeddingModel, cfg.Ollama.Timeout)
}

// provideSimilarity 加速索引不可用时退回暴力检索
func provideSimilarity(cfg *config.Config) knowledge.SimilarityIndex {
	vs := cfg.RAG.VectorStore
	switch vs.Provider {
	case "milvus":
		idx, err := knowledge.NewMilvusIndex(context.Background(), knowledge.MilvusOptions{
			Address:    vs.Milvus.Address,
			Username:   vs.Milvus.Username,
			Password:   vs.Milvus.Password,
			Database:   vs.Milvus.Database,
			Collection: vs.Milvus.Collection,
			UseTLS:     vs.Milvus.TLS,
		})
		if err != nil {
			logger.Warn("Milvus unavailable, using brute-force similarity", zap.Error(err))
			return knowledge.NewBruteForceIndex()
		}
		return idx
	case "qdrant":
		return knowledge.NewQdrantIndex(knowledge.QdrantOptions{
			Endpoint:   vs.Qdrant.Endpoint,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Qdrant.Collection,
			UseTLS:     vs.Qdrant.UseTLS,
		})
	default:
		return knowledge.NewBruteForceIndex()
	}
}

func provideCacheStore(cfg *config.Config, infra Infrastructure) knowledge.CacheStore {
	cache := cfg.RAG.Cache
	switch cache.Provider {
	case "redis":
		if infra.Redis != nil {
			return knowledge.NewRedisCacheStore(infra.Redis, cache.RedisKey)
		}
		logger.Warn("Redis cache requested but redis is not connected, using file cache")
	case "minio":
		if infra.MinIO != nil {
			return knowledge.NewMinIOCacheStore(infra.MinIO, cfg.Storage.Bucket, cache.ObjectKey)
		}
		logger.Warn("MinIO cache requested but object storage is not connected, using file cache")
	}
	return knowledge.NewFileCacheStore(cache.Path)
}

func provideCompressor(cfg *config.Config, generator *services.GuardedGenerator) *knowledge.Compressor {
	if !cfg.RAG.Compression.Enabled {
		return nil
	}
	return knowledge.NewCompressor(generator.For(services.PurposeCompress), cfg.RAG.Compression.InputChars)
}

func provideMaterialIndex(
	cfg *config.Config,
	embedder knowledge.Embedder,
	similarity knowledge.SimilarityIndex,
	cache knowledge.CacheStore,
	compressor *knowledge.Compressor,
) *knowledge.MaterialIndex {
	return knowledge.NewMaterialIndex(knowledge.IndexOptions{
		MaterialsDir: cfg.RAG.MaterialsDir,
		Extensions:   cfg.RAG.Extensions,
		ChunkSize:    cfg.RAG.ChunkSize,
		SnippetChars: cfg.RAG.SnippetChars,
		MinScore:     cfg.RAG.MinScore,
	}, embedder, similarity, cache, compressor)
}

func provideEvaluator(cfg *config.Config, generator *services.GuardedGenerator) *knowledge.Evaluator {
	return knowledge.NewEvaluator(knowledge.CragConfig{
		Enabled:        cfg.RAG.Crag.Enabled,
		NoRagThreshold: cfg.RAG.Crag.NoRagThreshold,
		KeepThreshold:  cfg.RAG.Crag.KeepThreshold,
		TopK:           cfg.RAG.Crag.TopK,
		SnippetChars:   cfg.RAG.SnippetChars,
	}, generator.For(services.PurposeJudge))
}

func provideSessionStore(cfg *config.Config, infra Infrastructure) services.SessionStore {
	if cfg.Session.Provider == "redis" {
		if infra.Redis != nil {
			return services.NewRedisSessionStore(infra.Redis, cfg.Session.KeyPrefix, cfg.Session.TTL)
		}
		logger.Warn("Redis sessions requested but redis is not connected, using memory sessions")
	}
	return services.NewMemorySessionStore()
}

func provideConversationService(infra Infrastructure) *services.ConversationService {
	var repo repository.ConversationRepository
	if infra.Database != nil {
		repo = repository.NewConversationRepository(infra.Database.GetDB(), infra.Database.Metrics())
	}
	var publisher services.ConversationPublisher
	if infra.Producer != nil {
		publisher = infra.Producer
	}
	return services.NewConversationService(repo, publisher)
}

func tutorOptions(cfg *config.Config) services.TutorOptions {
	return services.TutorOptions{
		RetrievalK:      cfg.RAG.RetrievalK,
		MaxHistoryChars: cfg.Session.MaxHistoryChars,
	}
}

func provideTutorService(
	cfg *config.Config,
	index *knowledge.MaterialIndex,
	evaluator *knowledge.Evaluator,
	generator *services.GuardedGenerator,
	sessions services.SessionStore,
	conversations *services.ConversationService,
	metrics *services.MetricsService,
) *services.TutorService {
	return services.NewTutorService(index, evaluator, generator, sessions, conversations, metrics, tutorOptions(cfg))
}

func provideEvaluationService(
	cfg *config.Config,
	index *knowledge.MaterialIndex,
	evaluator *knowledge.Evaluator,
	generator *services.GuardedGenerator,
	sessions services.SessionStore,
	metrics *services.MetricsService,
) *services.EvaluationService {
	return services.NewEvaluationService(index, evaluator, generator, sessions, metrics, tutorOptions(cfg))
}
