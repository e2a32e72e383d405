package services

import (
	"context"
	"strings"
	"sync"

	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/models"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

// MockLLM testify 生成器
type MockLLM struct {
	mock.Mock
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func promptContains(marker string) interface{} {
	return mock.MatchedBy(func(prompt string) bool { return strings.Contains(prompt, marker) })
}

// fakeRetriever 固定检索结果
type fakeRetriever struct {
	mu          sync.Mutex
	results     []knowledge.RetrievalResult
	ensureErr   error
	ensureCalls int
	queries     []string
	ks          []int
}

func (f *fakeRetriever) EnsureLoaded(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeRetriever) Retrieve(ctx context.Context, query string, k int) []knowledge.RetrievalResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.ks = append(f.ks, k)
	return f.results
}

func (f *fakeRetriever) Chunks() []knowledge.MaterialChunk {
	f.mu.Lock()
	defer f.mu.Unlock()
	chunks := make([]knowledge.MaterialChunk, len(f.results))
	for i, r := range f.results {
		chunks[i] = knowledge.MaterialChunk{Text: r.Text, Summary: r.Summary, Source: r.Source, ChunkID: i}
	}
	return chunks
}

// fakeConversationRepo 内存仓库
type fakeConversationRepo struct {
	mu      sync.Mutex
	created []models.ConversationLog
	stored  []models.ConversationLog
	err     error
}

func (f *fakeConversationRepo) GetDB() *gorm.DB { return nil }

func (f *fakeConversationRepo) Create(ctx context.Context, log *models.ConversationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *log)
	return nil
}

func (f *fakeConversationRepo) ListRecent(ctx context.Context, limit int) ([]models.ConversationLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.stored, nil
}

func (f *fakeConversationRepo) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	return nil, nil
}

// fakePublisher 记录发布的事件
type fakePublisher struct {
	mu        sync.Mutex
	published []models.ConversationLog
	err       error
}

func (f *fakePublisher) PublishConversation(ctx context.Context, log *models.ConversationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, *log)
	return nil
}

func sampleChunks() []knowledge.RetrievalResult {
	return []knowledge.RetrievalResult{
		{Text: "Rekursi adalah fungsi yang memanggil dirinya sendiri.", Source: "rekursi.md", Score: 0.81},
		{Text: "Perulangan for mengulang blok kode.", Source: "loop.md", Score: 0.42},
	}
}
