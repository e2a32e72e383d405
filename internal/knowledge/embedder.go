package knowledge

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Embedder 定义文本向量化接口
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	// Ready 报告后端是否已配置；可达性由构建时的嵌入结果判断
	Ready() bool
}

// ErrEmbedderNotConfigured 未配置向量化后端
var ErrEmbedderNotConfigured = errors.New("embedding provider not configured")

// NoopEmbedder 默认占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, ErrEmbedderNotConfigured
}

func (n *NoopEmbedder) Dimensions() int {
	return 0
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

// Normalize 返回L2归一化后的向量副本；零向量原样返回
func Normalize(vec []float32) []float32 {
	out := make([]float32, len(vec))
	copy(out, vec)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return out
	}

	norm := math.Sqrt(sum)
	for i := range out {
		out[i] = float32(float64(out[i]) / norm)
	}
	return out
}

// NormalizedEmbedder 对底层向量结果做归一化
type NormalizedEmbedder struct {
	inner Embedder
}

// NewNormalizedEmbedder 包装Embedder；重复包装时直接返回
func NewNormalizedEmbedder(inner Embedder) *NormalizedEmbedder {
	if inner == nil {
		inner = &NoopEmbedder{}
	}
	if already, ok := inner.(*NormalizedEmbedder); ok {
		return already
	}
	return &NormalizedEmbedder{inner: inner}
}

func (e *NormalizedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) == 0 {
		return nil, errors.New("embedding response empty")
	}
	return Normalize(vec), nil
}

func (e *NormalizedEmbedder) Dimensions() int {
	return e.inner.Dimensions()
}

func (e *NormalizedEmbedder) Ready() bool {
	return e.inner.Ready()
}

var embeddingDimensions = map[string]int{
	"mxbai-embed-large":      1024,
	"nomic-embed-text":       768,
	"all-minilm":             384,
	"text-embedding-3-small": 1536,
}

// OpenAIEmbedder 通过OpenAI兼容接口（Ollama /v1）生成向量
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	limiter    sync.Mutex
}

// NewOpenAIEmbedder 创建OpenAI兼容的向量生成器；baseURL为空时使用官方地址
func NewOpenAIEmbedder(baseURL, apiKey, model string) Embedder {
	if model == "" {
		return &NoopEmbedder{}
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		// Ollama 不校验 key，但客户端要求非空
		apiKey = "ollama"
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		dimensions: embeddingDimensions[model],
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}
	if e.client == nil {
		return nil, errors.New("openai client not initialized")
	}

	e.limiter.Lock()
	defer e.limiter.Unlock()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: []string{text},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embedding response empty")
	}

	embedding := resp.Data[0].Embedding
	result := make([]float32, len(embedding))
	copy(result, embedding)
	return result, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
