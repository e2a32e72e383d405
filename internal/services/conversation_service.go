package services

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/models"
	"github.com/csipbllm/backend-go/internal/repository"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

const persistTimeout = 5 * time.Second

// ConversationEntry /chat 的一次问答记录
type ConversationEntry struct {
	ID               string             `json:"id"`
	UserMessage      string             `json:"user_message"`
	CognitiveMain    string             `json:"cognitive_main"`
	CQ1Main          string             `json:"cq1_main"`
	CQ2Main          string             `json:"cq2_main"`
	CognitiveCompare string             `json:"cognitive_compare"`
	CQ1Compare       string             `json:"cq1_compare"`
	CQ2Compare       string             `json:"cq2_compare"`
	ReplyMain        string             `json:"reply_main"`
	ReplyCompare     string             `json:"reply_compare"`
	FollowupQuestion string             `json:"followup_question"`
	IsCodeQuestion   bool               `json:"is_code_question"`
	UsedRAG          bool               `json:"used_rag"`
	RagMode          string             `json:"rag_mode"`
	RagSources       []knowledge.Source `json:"rag_sources"`
	SessionID        string             `json:"session_id"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ConversationPublisher 对话事件发布方（Kafka 生产者实现）
type ConversationPublisher interface {
	PublishConversation(ctx context.Context, log *models.ConversationLog) error
}

// ConversationService 进程内对话日志；可选地经 Kafka 或直接写入 PostgreSQL
type ConversationService struct {
	repo      repository.ConversationRepository
	publisher ConversationPublisher

	mu      sync.RWMutex
	entries []ConversationEntry
	entropy *rand.Rand
}

// NewConversationService 创建对话日志服务；repo、publisher 可为 nil
func NewConversationService(repo repository.ConversationRepository, publisher ConversationPublisher) *ConversationService {
	return &ConversationService{
		repo:      repo,
		publisher: publisher,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Append 追加一条记录并返回带ID的副本；持久化失败只记录日志
func (s *ConversationService) Append(ctx context.Context, entry ConversationEntry) ConversationEntry {
	if entry.RagSources == nil {
		entry.RagSources = []knowledge.Source{}
	}

	s.mu.Lock()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	if entry.ID == "" {
		entry.ID = ulid.MustNew(ulid.Timestamp(entry.CreatedAt), s.entropy).String()
	}
	s.entries = append(s.entries, entry)
	total := len(s.entries)
	s.mu.Unlock()

	logger.Info("Conversation saved",
		zap.String("conversation_id", entry.ID),
		zap.String("session_id", entry.SessionID),
		zap.Int("total", total))

	s.persist(ctx, entry)
	return entry
}

func (s *ConversationService) persist(ctx context.Context, entry ConversationEntry) {
	if s.publisher == nil && s.repo == nil {
		return
	}

	record, err := entryToModel(entry)
	if err != nil {
		logger.Error("Failed to encode conversation", zap.String("conversation_id", entry.ID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if s.publisher != nil {
		err := s.publisher.PublishConversation(ctx, record)
		if err == nil {
			return
		}
		logger.Warn("Conversation event not published, writing directly",
			zap.String("conversation_id", entry.ID),
			zap.Error(err))
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, record); err != nil {
			logger.Error("Failed to persist conversation", zap.String("conversation_id", entry.ID), zap.Error(err))
		}
	}
}

// Entries 返回全部记录（按追加顺序）的副本
func (s *ConversationService) Entries() []ConversationEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ConversationEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len 记录条数
func (s *ConversationService) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore 启动时从数据库恢复最近 limit 条记录；内存中已有记录时不做任何事
func (s *ConversationService) Restore(ctx context.Context, limit int) (int, error) {
	if s.repo == nil {
		return 0, nil
	}

	logs, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return 0, err
	}

	restored := make([]ConversationEntry, 0, len(logs))
	for i := range logs {
		restored = append(restored, modelToEntry(&logs[i]))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 {
		return 0, nil
	}
	s.entries = restored
	return len(restored), nil
}

func entryToModel(entry ConversationEntry) (*models.ConversationLog, error) {
	sources, err := json.Marshal(entry.RagSources)
	if err != nil {
		return nil, err
	}
	return &models.ConversationLog{
		ID:               entry.ID,
		SessionID:        entry.SessionID,
		UserMessage:      entry.UserMessage,
		CognitiveMain:    entry.CognitiveMain,
		CQ1Main:          entry.CQ1Main,
		CQ2Main:          entry.CQ2Main,
		CognitiveCompare: entry.CognitiveCompare,
		CQ1Compare:       entry.CQ1Compare,
		CQ2Compare:       entry.CQ2Compare,
		ReplyMain:        entry.ReplyMain,
		ReplyCompare:     entry.ReplyCompare,
		FollowupQuestion: entry.FollowupQuestion,
		IsCodeQuestion:   entry.IsCodeQuestion,
		UsedRAG:          entry.UsedRAG,
		RagMode:          entry.RagMode,
		RagSources:       string(sources),
		CreatedAt:        entry.CreatedAt,
	}, nil
}

func modelToEntry(log *models.ConversationLog) ConversationEntry {
	sources := []knowledge.Source{}
	if log.RagSources != "" {
		if err := json.Unmarshal([]byte(log.RagSources), &sources); err != nil {
			logger.Warn("Ignoring malformed rag sources", zap.String("conversation_id", log.ID), zap.Error(err))
			sources = []knowledge.Source{}
		}
	}
	return ConversationEntry{
		ID:               log.ID,
		UserMessage:      log.UserMessage,
		CognitiveMain:    log.CognitiveMain,
		CQ1Main:          log.CQ1Main,
		CQ2Main:          log.CQ2Main,
		CognitiveCompare: log.CognitiveCompare,
		CQ1Compare:       log.CQ1Compare,
		CQ2Compare:       log.CQ2Compare,
		ReplyMain:        log.ReplyMain,
		ReplyCompare:     log.ReplyCompare,
		FollowupQuestion: log.FollowupQuestion,
		IsCodeQuestion:   log.IsCodeQuestion,
		UsedRAG:          log.UsedRAG,
		RagMode:          log.RagMode,
		RagSources:       sources,
		SessionID:        log.SessionID,
		CreatedAt:        log.CreatedAt,
	}
}
