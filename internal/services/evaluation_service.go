package services

import (
	"context"
	"errors"
	"strings"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// ErrEmptyAnswer 答案或参考答案为空
var ErrEmptyAnswer = errors.New("user_answer and correct_answer are required")

// HintStage 按错误次数递进的提示阶段
type HintStage struct {
	Level        string
	FollowupRole string
}

// HintStageFor 根据累计错误次数选择提示阶段
func HintStageFor(wrongCount int) HintStage {
	switch wrongCount {
	case 0:
		return HintStage{
			Level:        "Evaluasi awal.",
			FollowupRole: "ajukan 1 pertanyaan sederhana untuk menguji pemahaman dasar.",
		}
	case 1:
		return HintStage{
			Level:        "Directive Hint: petunjuk singkat & spesifik.",
			FollowupRole: "ajukan 1 pertanyaan penuntun yang mengarah ke inti konsep.",
		}
	case 2:
		return HintStage{
			Level:        "Remedial Scaffold: contoh sepadan + langkah kecil.",
			FollowupRole: "ajukan pertanyaan lanjutan berbasis analogi atau langkah kecil.",
		}
	default:
		return HintStage{
			Level:        "Facilitative Step-by-Step Guide: panduan terstruktur namun tetap tidak membocorkan jawaban.",
			FollowupRole: "ajakan refleksi agar siswa menyusun kembali pemahamannya.",
		}
	}
}

// EvaluateRequest /evaluate 请求
type EvaluateRequest struct {
	UserAnswer    string `json:"user_answer" validate:"required"`
	CorrectAnswer string `json:"correct_answer" validate:"required"`
	WrongCount    int    `json:"wrong_count"`
	SessionID     string `json:"session_id"`
}

// EvaluateResponse /evaluate 响应
type EvaluateResponse struct {
	IsCorrect        bool   `json:"is_correct"`
	Feedback         string `json:"feedback"`
	HintLevel        string `json:"hint_level"`
	IsCode           bool   `json:"is_code"`
	FollowupQuestion string `json:"followup_question"`
	UsedRAG          bool   `json:"used_rag"`
	SessionID        string `json:"session_id"`
}

// EvaluationService 答案评估：逐级提示，不泄露最终答案
type EvaluationService struct {
	index     MaterialRetriever
	assembler ContextAssembler
	generator *GuardedGenerator
	sessions  SessionStore
	metrics   *MetricsService
	opts      TutorOptions
}

// NewEvaluationService 创建评估服务
func NewEvaluationService(
	index MaterialRetriever,
	assembler ContextAssembler,
	generator *GuardedGenerator,
	sessions SessionStore,
	metrics *MetricsService,
	opts TutorOptions,
) *EvaluationService {
	if opts.RetrievalK <= 0 {
		opts.RetrievalK = DefaultRetrievalK
	}
	return &EvaluationService{
		index:     index,
		assembler: assembler,
		generator: generator,
		sessions:  sessions,
		metrics:   metrics,
		opts:      opts,
	}
}

// IsCorrectFeedback 反馈含“benar”且不含“salah”即视为正确
func IsCorrectFeedback(feedback string) bool {
	lower := strings.ToLower(feedback)
	return strings.Contains(lower, "benar") && !strings.Contains(lower, "salah")
}

// Evaluate 评估学生答案
func (s *EvaluationService) Evaluate(ctx context.Context, req EvaluateRequest) (*EvaluateResponse, error) {
	if strings.TrimSpace(req.UserAnswer) == "" || strings.TrimSpace(req.CorrectAnswer) == "" {
		return nil, ErrEmptyAnswer
	}
	sessionID := sessionOrDefault(req.SessionID)
	answer := strings.TrimSpace(req.UserAnswer)
	isCode := IsCodeLike(answer)
	hint := HintStageFor(req.WrongCount)

	logger.Info("Evaluate request",
		zap.String("session_id", sessionID),
		zap.Int("wrong_count", req.WrongCount),
		zap.Bool("is_code", isCode))

	query := req.CorrectAnswer + "\n\nJawaban siswa:\n" + req.UserAnswer
	chunks := retrieveMaterials(ctx, s.index, s.metrics, query, s.opts.RetrievalK)
	decision := s.assembler.AssembleSimple(chunks)
	s.metrics.RecordRagDecision("evaluate", string(decision.Outcome))

	historyText := loadHistoryText(ctx, s.sessions, sessionID, s.opts.MaxHistoryChars)

	feedback := generateOrSentinel(ctx, s.generator, PurposeEvaluate, buildEvaluatePrompt(evalPromptInput{
		Answer:        req.UserAnswer,
		CorrectAnswer: req.CorrectAnswer,
		HistoryText:   historyText,
		ContextText:   decision.ContextText,
		HintLevel:     hint.Level,
		IsCode:        isCode,
	}))
	feedback = strings.TrimSpace(feedback)

	followup := strings.TrimSpace(generateOrSentinel(ctx, s.generator, PurposeFollowup,
		buildEvaluateFollowupPrompt(historyText, req.UserAnswer, req.CorrectAnswer, hint)))

	appendSession(ctx, s.sessions, sessionID,
		SessionMessage{Role: RoleHuman, Content: "[EVALUASI] Jawaban: " + req.UserAnswer},
		SessionMessage{Role: RoleAI, Content: "[UMPAN BALIK] " + feedback},
	)

	return &EvaluateResponse{
		IsCorrect:        IsCorrectFeedback(feedback),
		Feedback:         feedback,
		HintLevel:        hint.Level,
		IsCode:           isCode,
		FollowupQuestion: followup,
		UsedRAG:          len(chunks) > 0,
		SessionID:        sessionID,
	}, nil
}
