package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/csipbllm/backend-go/internal/config"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

const (
	bucketAttempts   = 5
	bucketRetryDelay = 2 * time.Second
)

// NormalizeEndpoint 去掉协议前缀，minio.New 只接受 host:port
func NormalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")
	return strings.TrimSuffix(endpoint, "/")
}

// NewMinIOClient 创建MinIO客户端
func NewMinIOClient(cfg config.ObjectStorageConfig) (*minio.Client, error) {
	endpoint := NormalizeEndpoint(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint not configured")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return client, nil
}

// InitMinIO 创建客户端并确保存储桶存在；MinIO 启动较慢时重试
func InitMinIO(ctx context.Context, cfg config.ObjectStorageConfig) (*minio.Client, error) {
	client, err := NewMinIOClient(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket not configured")
	}

	var exists bool
	var bucketErr error
	for attempt := 1; attempt <= bucketAttempts; attempt++ {
		exists, bucketErr = client.BucketExists(ctx, cfg.Bucket)
		if bucketErr == nil {
			break
		}
		logger.Warn("MinIO not reachable yet",
			zap.Int("attempt", attempt),
			zap.String("endpoint", cfg.Endpoint),
			zap.Error(bucketErr))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bucketRetryDelay * time.Duration(attempt)):
		}
	}
	if bucketErr != nil {
		return nil, fmt.Errorf("failed to check minio bucket %s: %w", cfg.Bucket, bucketErr)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create minio bucket %s: %w", cfg.Bucket, err)
		}
		logger.Info("MinIO bucket created", zap.String("bucket", cfg.Bucket))
	}

	logger.Info("MinIO client initialized", zap.String("endpoint", cfg.Endpoint), zap.String("bucket", cfg.Bucket))
	return client, nil
}
