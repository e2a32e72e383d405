package knowledge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

const (
	reasonEmbedderUnavailable = "embedding backend unavailable"
	reasonMissingDir          = "materials directory not found"
)

// IndexState 材料索引生命周期状态
type IndexState int32

const (
	StateUnbuilt IndexState = iota
	StateBuilding
	StateReady
)

// String 返回状态字符串
func (s IndexState) String() string {
	switch s {
	case StateUnbuilt:
		return "unbuilt"
	case StateBuilding:
		return "building"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// IndexOptions 材料索引配置
type IndexOptions struct {
	MaterialsDir string
	Extensions   []string
	ChunkSize    int
	SnippetChars int
	// MinScore 检索结果需严格大于该分数
	MinScore float64
}

// IndexStats 索引统计
type IndexStats struct {
	State          string        `json:"state"`
	Chunks         int           `json:"chunks"`
	Sources        int           `json:"sources"`
	Disabled       bool          `json:"disabled"`
	DisabledReason string        `json:"disabled_reason,omitempty"`
	FromCache      bool          `json:"from_cache"`
	Similarity     string        `json:"similarity"`
	BuildDuration  time.Duration `json:"build_duration"`
}

// MaterialIndex 进程级材料索引：首次访问时加载或构建，之后只读
type MaterialIndex struct {
	opts       IndexOptions
	embedder   Embedder
	similarity *FallbackIndex
	cache      CacheStore
	compressor *Compressor
	chunker    *Chunker

	buildMu sync.Mutex
	state   atomic.Int32

	// 以下字段在 state 变为 Ready 前写入，之后只读
	chunks         []MaterialChunk
	disabledReason string
	fromCache      bool
	buildDuration  time.Duration
	builds         atomic.Int64
}

// NewMaterialIndex 创建材料索引；similarity、cache、compressor 均可为 nil
func NewMaterialIndex(opts IndexOptions, embedder Embedder, similarity SimilarityIndex, cache CacheStore, compressor *Compressor) *MaterialIndex {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.SnippetChars <= 0 {
		opts.SnippetChars = DefaultSnippetChars
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}

	return &MaterialIndex{
		opts:       opts,
		embedder:   NewNormalizedEmbedder(embedder),
		similarity: NewFallbackIndex(similarity),
		cache:      cache,
		compressor: compressor,
		chunker:    NewChunker(opts.ChunkSize),
	}
}

// State 返回当前状态
func (m *MaterialIndex) State() IndexState {
	return IndexState(m.state.Load())
}

// EnsureLoaded 加载或构建索引，幂等；并发调用者等待同一次构建完成。
// 仅在 ctx 被取消时返回错误，此时索引保持 Unbuilt 以便重试。
func (m *MaterialIndex) EnsureLoaded(ctx context.Context) error {
	if m.State() == StateReady {
		return nil
	}

	m.buildMu.Lock()
	defer m.buildMu.Unlock()

	if m.State() == StateReady {
		return nil
	}
	m.state.Store(int32(StateBuilding))

	start := time.Now()
	chunks, fromCache, reason := m.load(ctx)
	if err := ctx.Err(); err != nil {
		m.state.Store(int32(StateUnbuilt))
		return fmt.Errorf("material index build interrupted: %w", err)
	}

	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vectors[i] = chunks[i].Embedding
	}
	if err := m.similarity.Build(ctx, vectors); err != nil {
		logger.Warn("Failed to build similarity index", zap.Error(err))
	}

	m.chunks = chunks
	m.fromCache = fromCache
	m.disabledReason = reason
	m.buildDuration = time.Since(start)
	m.builds.Add(1)
	m.state.Store(int32(StateReady))

	logger.Info("Material index ready",
		zap.Int("chunks", len(chunks)),
		zap.Bool("from_cache", fromCache),
		zap.String("similarity", m.similarity.Name()),
		zap.String("disabled_reason", reason),
		zap.Duration("duration", m.buildDuration))
	return nil
}

// load 返回分块、是否来自缓存，以及RAG被禁用时的原因
func (m *MaterialIndex) load(ctx context.Context) ([]MaterialChunk, bool, string) {
	if !m.embedder.Ready() {
		logger.Error("Embedding backend unavailable, RAG disabled for this process")
		return nil, false, reasonEmbedderUnavailable
	}
	if !dirExists(m.opts.MaterialsDir) {
		logger.Warn("Materials directory not found, RAG disabled",
			zap.String("dir", m.opts.MaterialsDir))
		return nil, false, reasonMissingDir
	}

	if m.cache != nil {
		cached, err := m.cache.Load(ctx)
		switch {
		case err == nil && len(cached) == 0:
			logger.Warn("Material cache is empty, rebuilding index", zap.String("cache", m.cache.Name()))
		case err == nil:
			m.repairCached(cached)
			logger.Info("Material index loaded from cache",
				zap.String("cache", m.cache.Name()),
				zap.Int("chunks", len(cached)))
			return cached, true, ""
		case errors.Is(err, ErrCacheMiss):
			logger.Info("Material cache not found, building index", zap.String("cache", m.cache.Name()))
		default:
			logger.Warn("Failed to load material cache, rebuilding index",
				zap.String("cache", m.cache.Name()),
				zap.Error(err))
		}
	}

	chunks, attempted := m.build(ctx)
	if ctx.Err() != nil {
		return chunks, false, ""
	}

	// 有分块却全部嵌入失败：后端不可用，不写缓存，本进程禁用RAG
	if attempted > 0 && len(chunks) == 0 {
		logger.Error("Every chunk failed to embed, RAG disabled for this process",
			zap.Int("attempted", attempted))
		return nil, false, reasonEmbedderUnavailable
	}

	if m.cache != nil && len(chunks) > 0 {
		if err := m.cache.Save(ctx, chunks); err != nil {
			logger.Warn("Failed to save material cache", zap.String("cache", m.cache.Name()), zap.Error(err))
		} else {
			logger.Info("Material cache saved", zap.String("cache", m.cache.Name()), zap.Int("chunks", len(chunks)))
		}
	}
	return chunks, false, ""
}

// repairCached 重新归一化并补齐旧缓存缺失的摘要
func (m *MaterialIndex) repairCached(chunks []MaterialChunk) {
	for i := range chunks {
		chunks[i].Embedding = Normalize(chunks[i].Embedding)
		if chunks[i].Summary == "" {
			chunks[i].Summary = truncateRunes(chunks[i].Text, m.opts.SnippetChars)
		}
	}
}

// build 返回成功嵌入的分块与尝试嵌入的分块数
func (m *MaterialIndex) build(ctx context.Context) ([]MaterialChunk, int) {
	logger.Info("Building material index", zap.String("dir", m.opts.MaterialsDir))

	docs, err := LoadDocuments(m.opts.MaterialsDir, m.opts.Extensions)
	if err != nil {
		logger.Warn("Failed to walk materials directory", zap.String("dir", m.opts.MaterialsDir), zap.Error(err))
		return nil, 0
	}

	var chunks []MaterialChunk
	attempted := 0
	for _, doc := range docs {
		for _, chunk := range m.chunker.Split(doc.Text) {
			if ctx.Err() != nil {
				return chunks, attempted
			}
			label := fmt.Sprintf("%s#%d", doc.Name, chunk.Index)
			attempted++

			embedding, err := m.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				logger.Warn("Failed to embed chunk", zap.String("chunk", label), zap.Error(err))
				continue
			}

			summary := truncateRunes(chunk.Text, m.opts.SnippetChars)
			summary = m.compressor.Summarize(ctx, chunk.Text, summary, label)

			chunks = append(chunks, MaterialChunk{
				Embedding: embedding,
				Text:      chunk.Text,
				Summary:   summary,
				Source:    doc.Name,
				ChunkID:   chunk.Index,
			})
		}
	}
	return chunks, attempted
}

// Retrieve 返回与查询最相关的k个分块；任何失败都返回空结果
func (m *MaterialIndex) Retrieve(ctx context.Context, query string, k int) []RetrievalResult {
	if m.State() != StateReady || len(m.chunks) == 0 {
		return nil
	}
	if k <= 0 {
		k = DefaultRetrievalK
	}

	queryVec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Failed to embed retrieval query", zap.Error(err))
		return nil
	}

	matches, err := m.similarity.Search(ctx, queryVec, k)
	if err != nil {
		logger.Warn("Similarity search failed", zap.Error(err))
		return nil
	}

	results := make([]RetrievalResult, 0, len(matches))
	for _, match := range matches {
		if match.Index < 0 || match.Index >= len(m.chunks) {
			continue
		}
		if match.Score <= m.opts.MinScore {
			continue
		}
		chunk := m.chunks[match.Index]
		summary := chunk.Summary
		if summary == "" {
			summary = chunk.Text
		}
		results = append(results, RetrievalResult{
			Text:    chunk.Text,
			Summary: summary,
			Source:  chunk.Source,
			Score:   match.Score,
		})
	}
	return results
}

// Chunks 返回索引分块的只读视图；未就绪时为 nil
func (m *MaterialIndex) Chunks() []MaterialChunk {
	if m.State() != StateReady {
		return nil
	}
	return m.chunks
}

// Builds 返回实际执行加载/构建的次数
func (m *MaterialIndex) Builds() int64 {
	return m.builds.Load()
}

// Stats 返回索引统计
func (m *MaterialIndex) Stats() IndexStats {
	state := m.State()
	stats := IndexStats{
		State:      state.String(),
		Similarity: m.similarity.Name(),
	}
	if state != StateReady {
		return stats
	}

	sources := make(map[string]struct{})
	for _, c := range m.chunks {
		sources[c.Source] = struct{}{}
	}
	stats.Chunks = len(m.chunks)
	stats.Sources = len(sources)
	stats.Disabled = m.disabledReason != ""
	stats.DisabledReason = m.disabledReason
	stats.FromCache = m.fromCache
	stats.BuildDuration = m.buildDuration
	return stats
}
