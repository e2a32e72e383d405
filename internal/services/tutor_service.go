package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/csipbllm/backend-go/internal/knowledge"
	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

const (
	DefaultSessionID  = "default"
	DefaultRetrievalK = 4
)

// ErrEmptyQuestion 问题为空
var ErrEmptyQuestion = errors.New("question is required")

// MaterialRetriever 材料检索
type MaterialRetriever interface {
	EnsureLoaded(ctx context.Context) error
	Retrieve(ctx context.Context, query string, k int) []knowledge.RetrievalResult
	Chunks() []knowledge.MaterialChunk
}

// ContextAssembler 检索结果到提示词上下文
type ContextAssembler interface {
	Assemble(ctx context.Context, question string, chunks []knowledge.RetrievalResult, mode string) knowledge.CragDecision
	AssembleSimple(chunks []knowledge.RetrievalResult) knowledge.CragDecision
}

// TutorOptions 辅导服务参数
type TutorOptions struct {
	RetrievalK      int
	MaxHistoryChars int
}

// ChatRequest /chat 请求
type ChatRequest struct {
	Question  string `json:"question" validate:"required"`
	Cognitive string `json:"cognitive"`
	CQ1       string `json:"cq1"`
	CQ2       string `json:"cq2"`
	SessionID string `json:"session_id"`
	Mode      string `json:"mode"`
}

// ChatResponse /chat 响应
type ChatResponse struct {
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
}

// TutorService 个性化辅导：主画像回答、对照画像回答与追问
type TutorService struct {
	index         MaterialRetriever
	assembler     ContextAssembler
	generator     *GuardedGenerator
	sessions      SessionStore
	conversations *ConversationService
	metrics       *MetricsService
	opts          TutorOptions
}

// NewTutorService 创建辅导服务；conversations、metrics 可为 nil
func NewTutorService(
	index MaterialRetriever,
	assembler ContextAssembler,
	generator *GuardedGenerator,
	sessions SessionStore,
	conversations *ConversationService,
	metrics *MetricsService,
	opts TutorOptions,
) *TutorService {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = DefaultRetrievalK
	}
	return &TutorService{
		index:         index,
		assembler:     assembler,
		generator:     generator,
		sessions:      sessions,
		conversations: conversations,
		metrics:       metrics,
		opts:          opts,
	}
}

// Chat 处理一次提问
func (s *TutorService) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, ErrEmptyQuestion
	}
	sessionID := sessionOrDefault(req.SessionID)

	main := NormalizeProfile(req.Cognitive, req.CQ1, req.CQ2)
	compare := main.CompareProfile()
	mainLabels, compareLabels := main.Labels(), compare.Labels()

	logger.Info("Chat request",
		zap.String("session_id", sessionID),
		zap.String("cognitive", main.Cognitive),
		zap.String("cq1", main.CQ1),
		zap.String("cq2", main.CQ2),
		zap.String("mode", req.Mode))

	chunks := retrieveMaterials(ctx, s.index, s.metrics, req.Question, s.opts.RetrievalK)
	decision := s.assembler.Assemble(ctx, req.Question, chunks, req.Mode)
	s.metrics.RecordRagDecision("chat", string(decision.Outcome))

	historyText := loadHistoryText(ctx, s.sessions, sessionID, s.opts.MaxHistoryChars)
	codeQuestion := IsCodeLike(req.Question)

	in := chatPromptInput{
		Question:     req.Question,
		Main:         mainLabels,
		Compare:      compareLabels,
		HistoryText:  historyText,
		ContextText:  decision.ContextText,
		RagMode:      string(decision.Outcome),
		CodeQuestion: codeQuestion,
	}
	replyMain := generateOrSentinel(ctx, s.generator, PurposeAnswer, buildMainPrompt(in))
	replyCompare := generateOrSentinel(ctx, s.generator, PurposeCompare, buildComparePrompt(in))
	followup := strings.TrimSpace(generateOrSentinel(ctx, s.generator, PurposeFollowup,
		buildChatFollowupPrompt(historyText, replyMain)))

	appendSession(ctx, s.sessions, sessionID,
		SessionMessage{Role: RoleHuman, Content: req.Question},
		SessionMessage{Role: RoleAI, Content: replyMain},
	)

	sources := decision.Sources
	if sources == nil {
		sources = []knowledge.Source{}
	}

	resp := &ChatResponse{
		CognitiveMain:    mainLabels.Cognitive,
		CQ1Main:          mainLabels.CQ1,
		CQ2Main:          mainLabels.CQ2,
		CognitiveCompare: compareLabels.Cognitive,
		CQ1Compare:       compareLabels.CQ1,
		CQ2Compare:       compareLabels.CQ2,
		ReplyMain:        replyMain,
		ReplyCompare:     replyCompare,
		FollowupQuestion: followup,
		IsCodeQuestion:   codeQuestion,
		UsedRAG:          decision.UsedRAG,
		RagMode:          string(decision.Outcome),
		RagSources:       sources,
		SessionID:        sessionID,
	}

	if s.conversations != nil {
		s.conversations.Append(ctx, ConversationEntry{
			UserMessage:      req.Question,
			CognitiveMain:    resp.CognitiveMain,
			CQ1Main:          resp.CQ1Main,
			CQ2Main:          resp.CQ2Main,
			CognitiveCompare: resp.CognitiveCompare,
			CQ1Compare:       resp.CQ1Compare,
			CQ2Compare:       resp.CQ2Compare,
			ReplyMain:        resp.ReplyMain,
			ReplyCompare:     resp.ReplyCompare,
			FollowupQuestion: resp.FollowupQuestion,
			IsCodeQuestion:   resp.IsCodeQuestion,
			UsedRAG:          resp.UsedRAG,
			RagMode:          resp.RagMode,
			RagSources:       resp.RagSources,
			SessionID:        sessionID,
		})
	}
	return resp, nil
}

func sessionOrDefault(id string) string {
	if strings.TrimSpace(id) == "" {
		return DefaultSessionID
	}
	return id
}

// retrieveMaterials 首次调用时构建索引；请求取消不会中断构建
func retrieveMaterials(ctx context.Context, index MaterialRetriever, metrics *MetricsService, query string, k int) []knowledge.RetrievalResult {
	if err := index.EnsureLoaded(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Material index not loaded", zap.Error(err))
	}
	metrics.SetIndexChunks(len(index.Chunks()))
	return index.Retrieve(ctx, query, k)
}

func loadHistoryText(ctx context.Context, sessions SessionStore, sessionID string, maxChars int) string {
	messages, err := sessions.Messages(ctx, sessionID)
	if err != nil {
		logger.Warn("Failed to load session history", zap.String("session_id", sessionID), zap.Error(err))
		return NoHistoryText
	}
	return FormatHistory(messages, maxChars)
}

func appendSession(ctx context.Context, sessions SessionStore, sessionID string, messages ...SessionMessage) {
	for i := range messages {
		if messages[i].CreatedAt.IsZero() {
			messages[i].CreatedAt = time.Now()
		}
	}
	if err := sessions.Append(context.WithoutCancel(ctx), sessionID, messages...); err != nil {
		logger.Warn("Failed to update session history", zap.String("session_id", sessionID), zap.Error(err))
	}
}
