package knowledge

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// funcEmbedder 以函数决定向量，并统计调用次数
type funcEmbedder struct {
	fn    func(text string) ([]float32, error)
	ready bool
	calls atomic.Int64
}

func newFuncEmbedder(fn func(text string) ([]float32, error)) *funcEmbedder {
	return &funcEmbedder{fn: fn, ready: true}
}

func (f *funcEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f.fn(text)
}

func (f *funcEmbedder) Dimensions() int { return 2 }

func (f *funcEmbedder) Ready() bool { return f.ready }

// letterEmbedder 以 a 开头的文本指向x轴，以 b 开头的指向y轴
func letterEmbedder() *funcEmbedder {
	return newFuncEmbedder(func(text string) ([]float32, error) {
		switch {
		case len(text) > 0 && text[0] == 'a':
			return []float32{3, 0}, nil
		case len(text) > 0 && text[0] == 'b':
			return []float32{0, 2}, nil
		default:
			return []float32{1, 1}, nil
		}
	})
}

// MockGenerator 模拟文本生成
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// stubIndex 可控制失败行为的加速索引
type stubIndex struct {
	buildErr  error
	searchErr error
	matches   []Match
	built     bool
}

func (s *stubIndex) Build(ctx context.Context, vectors [][]float32) error {
	if s.buildErr != nil {
		return s.buildErr
	}
	s.built = true
	return nil
}

func (s *stubIndex) Search(ctx context.Context, query []float32, k int) ([]Match, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	return s.matches, nil
}

func (s *stubIndex) Ready() bool { return s.built }

func (s *stubIndex) Name() string { return "stub" }

var errBoom = errors.New("boom")
