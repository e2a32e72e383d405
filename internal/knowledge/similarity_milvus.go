package knowledge

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
)

const (
	milvusIDField     = "id"
	milvusVectorField = "vector"
	milvusInsertBatch = 512
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	UseTLS     bool
	Timeout    time.Duration
}

// MilvusIndex 基于Milvus内积(IP)索引的加速检索
type MilvusIndex struct {
	milvusClient client.Client
	collection   string
	timeout      time.Duration

	mu        sync.RWMutex
	dimension int
	loaded    bool
}

// NewMilvusIndex 连接Milvus并创建索引实例
func NewMilvusIndex(ctx context.Context, opts MilvusOptions) (*MilvusIndex, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Collection == "" {
		opts.Collection = "material_chunks"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	address := strings.TrimPrefix(strings.TrimPrefix(opts.Address, "http://"), "https://")

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	milvusClient, err := client.NewClient(connectCtx, client.Config{
		Address:       address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &MilvusIndex{
		milvusClient: milvusClient,
		collection:   opts.Collection,
		timeout:      opts.Timeout,
	}, nil
}

func (m *MilvusIndex) Name() string {
	return "milvus"
}

// Build 删除旧集合并以当前向量整体重建
func (m *MilvusIndex) Build(ctx context.Context, vectors [][]float32) error {
	if len(vectors) == 0 {
		return fmt.Errorf("no vectors to index")
	}
	dim := len(vectors[0])

	m.mu.Lock()
	defer m.mu.Unlock()
	m.loaded = false

	exists, err := m.milvusClient.HasCollection(ctx, m.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		if err := m.milvusClient.DropCollection(ctx, m.collection); err != nil {
			return fmt.Errorf("failed to drop stale collection: %w", err)
		}
	}

	schema := &entity.Schema{
		CollectionName: m.collection,
		Description:    "material chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       milvusIDField,
				DataType:   entity.FieldTypeInt64,
				PrimaryKey: true,
				AutoID:     false,
			},
			{
				Name:     milvusVectorField,
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", dim),
				},
			},
		},
	}
	if err := m.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// 内积度量；HNSW 不可用时退回 FLAT
	var index entity.Index
	index, err = entity.NewIndexHNSW(entity.IP, 8, 64)
	if err != nil {
		index, err = entity.NewIndexFlat(entity.IP)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	if err := m.milvusClient.CreateIndex(ctx, m.collection, milvusVectorField, index, false); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	for start := 0; start < len(vectors); start += milvusInsertBatch {
		end := start + milvusInsertBatch
		if end > len(vectors) {
			end = len(vectors)
		}
		ids := make([]int64, 0, end-start)
		batch := make([][]float32, 0, end-start)
		for i := start; i < end; i++ {
			if len(vectors[i]) != dim {
				return fmt.Errorf("vector %d has dim %d, expected %d", i, len(vectors[i]), dim)
			}
			ids = append(ids, int64(i))
			batch = append(batch, vectors[i])
		}

		idColumn := entity.NewColumnInt64(milvusIDField, ids)
		vectorColumn := entity.NewColumnFloatVector(milvusVectorField, dim, batch)
		if _, err := m.milvusClient.Insert(ctx, m.collection, "", idColumn, vectorColumn); err != nil {
			return fmt.Errorf("milvus insert failed: %w", err)
		}
	}

	if err := m.milvusClient.Flush(ctx, m.collection, false); err != nil {
		return fmt.Errorf("milvus flush failed: %w", err)
	}
	if err := m.milvusClient.LoadCollection(ctx, m.collection, false); err != nil {
		return fmt.Errorf("milvus load failed: %w", err)
	}

	m.dimension = dim
	m.loaded = true
	return nil
}

// Search 单次top-k内积检索，返回(位置, 分数)
func (m *MilvusIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	m.mu.RLock()
	loaded, dim := m.loaded, m.dimension
	m.mu.RUnlock()

	if !loaded {
		return nil, ErrIndexNotBuilt
	}
	if len(query) != dim {
		return nil, fmt.Errorf("query dim %d does not match index dim %d", len(query), dim)
	}
	if k <= 0 {
		return nil, nil
	}

	searchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sp, _ := entity.NewIndexHNSWSearchParam(64)
	searchResults, err := m.milvusClient.Search(
		searchCtx,
		m.collection,
		[]string{},
		"",
		[]string{},
		[]entity.Vector{entity.FloatVector(query)},
		milvusVectorField,
		entity.IP,
		k,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return nil, nil
	}

	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	var ids []int64
	if idCol, ok := result.IDs.(*entity.ColumnInt64); ok {
		ids = idCol.Data()
	}

	matches := make([]Match, 0, result.ResultCount)
	for i := 0; i < result.ResultCount && i < len(ids) && i < len(result.Scores); i++ {
		matches = append(matches, Match{
			Index: int(ids[i]),
			Score: float64(result.Scores[i]),
		})
	}
	sortMatchesByScore(matches)
	return matches, nil
}

func (m *MilvusIndex) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Close 关闭Milvus连接
func (m *MilvusIndex) Close() error {
	if m.milvusClient == nil {
		return nil
	}
	if err := m.milvusClient.Close(); err != nil {
		logger.Warn("Failed to close milvus client", zap.Error(err))
		return err
	}
	return nil
}
