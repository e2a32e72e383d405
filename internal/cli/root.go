// Package cli implements the ragctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/csipbllm/backend-go/internal/database"
	"github.com/csipbllm/backend-go/internal/di"
	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/storage"
)

var (
	configFile   string
	materialsDir string
	logLevel     string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Operate the tutor material index",
	Long:  "Build the material index and inspect retrieval and context assembly without running the HTTP service.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: $CONFIG_FILE)")
	RootCmd.PersistentFlags().StringVarP(&materialsDir, "materials", "m", "", "Materials directory (overrides rag.materials_dir)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level")
}

// pipeline 命令行所需的检索组件
type pipeline struct {
	index     *knowledge.MaterialIndex
	evaluator *knowledge.Evaluator
	close     func()
}

func openPipeline(ctx context.Context) (*pipeline, error) {
	if configFile != "" {
		os.Setenv("CONFIG_FILE", configFile)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if materialsDir != "" {
		cfg.RAG.MaterialsDir = materialsDir
	}
	if err := logger.InitLogger(logger.Options{Env: "development", Level: logLevel}); err != nil {
		return nil, err
	}

	var infra di.Infrastructure
	closers := []func() error{}
	switch cfg.RAG.Cache.Provider {
	case "redis":
		client, err := database.OpenRedis(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Redis unavailable, using file cache", zap.Error(err))
		} else {
			infra.Redis = client
			closers = append(closers, client.Close)
		}
	case "minio":
		client, err := storage.InitMinIO(ctx, cfg.Storage)
		if err != nil {
			logger.Warn("MinIO unavailable, using file cache", zap.Error(err))
		} else {
			infra.MinIO = client
		}
	}

	container := di.InitContainer()
	if err := di.RegisterProviders(container, cfg, infra); err != nil {
		return nil, err
	}

	p := &pipeline{close: func() {
		for _, c := range closers {
			_ = c()
		}
		logger.Sync()
	}}
	err = container.Invoke(func(index *knowledge.MaterialIndex, evaluator *knowledge.Evaluator) {
		p.index = index
		p.evaluator = evaluator
	})
	if err != nil {
		p.close()
		return nil, err
	}
	return p, nil
}

func printJSON(v interface{}) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
