package knowledge

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
)

const cacheFormatVersion = 1

// ErrCacheMiss 缓存不存在
var ErrCacheMiss = errors.New("material cache not found")

// CacheStore 材料索引缓存（整体读写，无增量格式）
type CacheStore interface {
	Load(ctx context.Context) ([]MaterialChunk, error)
	Save(ctx context.Context, chunks []MaterialChunk) error
	Name() string
}

type cacheArtifact struct {
	Version int
	Chunks  []cachedChunk
}

type cachedChunk struct {
	Embedding []float32
	Text      string
	Summary   string
	Source    string
	ChunkID   int
}

func encodeArtifact(chunks []MaterialChunk) ([]byte, error) {
	artifact := cacheArtifact{
		Version: cacheFormatVersion,
		Chunks:  make([]cachedChunk, len(chunks)),
	}
	for i, c := range chunks {
		artifact.Chunks[i] = cachedChunk(c)
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&artifact); err != nil {
		return nil, fmt.Errorf("encode material cache: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeArtifact(r io.Reader) ([]MaterialChunk, error) {
	var artifact cacheArtifact
	if err := gob.NewDecoder(r).Decode(&artifact); err != nil {
		return nil, fmt.Errorf("decode material cache: %w", err)
	}
	if artifact.Version != cacheFormatVersion {
		return nil, fmt.Errorf("unsupported material cache version %d", artifact.Version)
	}

	chunks := make([]MaterialChunk, len(artifact.Chunks))
	for i, c := range artifact.Chunks {
		chunks[i] = MaterialChunk(c)
	}
	return chunks, nil
}

// FileCacheStore 本地文件缓存，先写临时文件再原子重命名
type FileCacheStore struct {
	path string
}

// NewFileCacheStore 创建文件缓存
func NewFileCacheStore(path string) *FileCacheStore {
	return &FileCacheStore{path: path}
}

func (s *FileCacheStore) Name() string {
	return "file:" + s.path
}

func (s *FileCacheStore) Load(ctx context.Context) ([]MaterialChunk, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, err
	}
	defer file.Close()

	return decodeArtifact(file)
}

func (s *FileCacheStore) Save(ctx context.Context, chunks []MaterialChunk) error {
	data, err := encodeArtifact(chunks)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write material cache: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// RedisCacheStore 将缓存整体存为Redis字符串
type RedisCacheStore struct {
	client *redis.Client
	key    string
}

// NewRedisCacheStore 创建Redis缓存
func NewRedisCacheStore(client *redis.Client, key string) *RedisCacheStore {
	if key == "" {
		key = "csipb:materials:index"
	}
	return &RedisCacheStore{client: client, key: key}
}

func (s *RedisCacheStore) Name() string {
	return "redis:" + s.key
}

func (s *RedisCacheStore) Load(ctx context.Context) ([]MaterialChunk, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read material cache from redis: %w", err)
	}
	return decodeArtifact(bytes.NewReader(data))
}

func (s *RedisCacheStore) Save(ctx context.Context, chunks []MaterialChunk) error {
	data, err := encodeArtifact(chunks)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store material cache to redis: %w", err)
	}
	return nil
}

// MinIOCacheStore 将缓存存为对象存储中的单个对象
type MinIOCacheStore struct {
	client    *minio.Client
	bucket    string
	objectKey string
}

// NewMinIOCacheStore 创建MinIO缓存
func NewMinIOCacheStore(client *minio.Client, bucket, objectKey string) *MinIOCacheStore {
	if objectKey == "" {
		objectKey = "materials/index.gob"
	}
	return &MinIOCacheStore{client: client, bucket: bucket, objectKey: objectKey}
}

func (s *MinIOCacheStore) Name() string {
	return fmt.Sprintf("minio:%s/%s", s.bucket, s.objectKey)
}

func (s *MinIOCacheStore) Load(ctx context.Context) ([]MaterialChunk, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.translate(err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return nil, s.translate(err)
	}
	return decodeArtifact(obj)
}

func (s *MinIOCacheStore) Save(ctx context.Context, chunks []MaterialChunk) error {
	data, err := encodeArtifact(chunks)
	if err != nil {
		return err
	}

	_, err = s.client.PutObject(ctx, s.bucket, s.objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("failed to upload material cache: %w", err)
	}
	return nil
}

func (s *MinIOCacheStore) translate(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrCacheMiss
	}
	return fmt.Errorf("failed to read material cache from minio: %w", err)
}
