package knowledge

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// DefaultRetrievalK 默认检索数量
const DefaultRetrievalK = 4

// Match 相似度检索命中（索引位置 + 内积分数）
type Match struct {
	Index int
	Score float64
}

// SimilarityIndex 内积相似度检索能力
type SimilarityIndex interface {
	// Build 以给定向量整体重建索引，位置即为Match.Index
	Build(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]Match, error)
	Ready() bool
	Name() string
}

// ErrIndexNotBuilt 索引尚未构建
var ErrIndexNotBuilt = errors.New("similarity index not built")

// BruteForceIndex 逐条点积的兜底实现，始终可用
type BruteForceIndex struct {
	mu      sync.RWMutex
	vectors [][]float32
	built   bool
}

// NewBruteForceIndex 创建暴力检索索引
func NewBruteForceIndex() *BruteForceIndex {
	return &BruteForceIndex{}
}

func (b *BruteForceIndex) Build(ctx context.Context, vectors [][]float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.vectors = vectors
	b.built = true
	return nil
}

// Search 计算全部点积，降序稳定排序后取前k个
func (b *BruteForceIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.built {
		return nil, ErrIndexNotBuilt
	}
	if k <= 0 || len(b.vectors) == 0 {
		return nil, nil
	}

	matches := make([]Match, len(b.vectors))
	for i, vec := range b.vectors {
		matches[i] = Match{Index: i, Score: dot(query, vec)}
	}
	sortMatchesByScore(matches)

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

func (b *BruteForceIndex) Ready() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.built
}

func (b *BruteForceIndex) Name() string {
	return "bruteforce"
}

// FallbackIndex 优先使用加速索引，失败时退化到暴力检索
type FallbackIndex struct {
	primary  SimilarityIndex
	fallback *BruteForceIndex

	mu            sync.RWMutex
	primaryActive bool
}

// NewFallbackIndex 创建带兜底的索引；primary 可为 nil
func NewFallbackIndex(primary SimilarityIndex) *FallbackIndex {
	if fi, ok := primary.(*FallbackIndex); ok {
		return fi
	}
	return &FallbackIndex{
		primary:  primary,
		fallback: NewBruteForceIndex(),
	}
}

func (f *FallbackIndex) Build(ctx context.Context, vectors [][]float32) error {
	if err := f.fallback.Build(ctx, vectors); err != nil {
		return err
	}

	active := false
	if f.primary != nil && len(vectors) > 0 {
		if err := f.primary.Build(ctx, vectors); err != nil {
			logger.Warn("Accelerated similarity index unavailable, using brute force",
				zap.String("index", f.primary.Name()),
				zap.Error(err))
		} else {
			active = true
			logger.Info("Accelerated similarity index built",
				zap.String("index", f.primary.Name()),
				zap.Int("vectors", len(vectors)),
				zap.Int("dim", len(vectors[0])))
		}
	}

	f.mu.Lock()
	f.primaryActive = active
	f.mu.Unlock()
	return nil
}

func (f *FallbackIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	f.mu.RLock()
	active := f.primaryActive
	f.mu.RUnlock()

	if active {
		matches, err := f.primary.Search(ctx, query, k)
		if err == nil {
			return matches, nil
		}
		logger.Warn("Accelerated search failed, falling back to brute force",
			zap.String("index", f.primary.Name()),
			zap.Error(err))
	}
	return f.fallback.Search(ctx, query, k)
}

func (f *FallbackIndex) Ready() bool {
	return f.fallback.Ready()
}

// Name 返回当前实际使用的索引名称
func (f *FallbackIndex) Name() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.primaryActive {
		return f.primary.Name()
	}
	return f.fallback.Name()
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// sortMatchesByScore 按分数降序，同分保持原始顺序
func sortMatchesByScore(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
}
