package controllers

import (
	"errors"
	"net/http"
	"strings"

	apperrors "github.com/csipbllm/backend-go/internal/errors"
	"github.com/csipbllm/backend-go/internal/services"
)

// chatPayload 兼容旧前端的 message 字段
type chatPayload struct {
	services.ChatRequest
	Message string `json:"message"`
}

// TutorController 提问与答案评估
type TutorController struct {
	BaseController
	Tutor      *services.TutorService
	Evaluation *services.EvaluationService
	Metrics    *services.MetricsService
}

// NewTutorController 创建辅导控制器
func NewTutorController(tutor *services.TutorService, evaluation *services.EvaluationService, metrics *services.MetricsService) *TutorController {
	return &TutorController{Tutor: tutor, Evaluation: evaluation, Metrics: metrics}
}

// Chat POST /chat
func (c *TutorController) Chat() {
	var payload chatPayload
	if err := c.ParseJSON(&payload); err != nil {
		c.fail("chat", err)
		return
	}
	req := payload.ChatRequest
	if strings.TrimSpace(req.Question) == "" {
		req.Question = payload.Message
	}
	req.Mode = strings.ToLower(strings.TrimSpace(req.Mode))
	if err := c.Validate(req); err != nil {
		c.fail("chat", err)
		return
	}

	resp, err := c.Tutor.Chat(c.Ctx.Request.Context(), req)
	if err != nil {
		c.fail("chat", err)
		return
	}
	c.Metrics.RecordRequest("chat", "success")
	c.JSON(http.StatusOK, resp)
}

// Evaluate POST /evaluate
func (c *TutorController) Evaluate() {
	var req services.EvaluateRequest
	if err := c.ParseJSON(&req); err != nil {
		c.fail("evaluate", err)
		return
	}
	if err := c.Validate(req); err != nil {
		c.fail("evaluate", err)
		return
	}

	resp, err := c.Evaluation.Evaluate(c.Ctx.Request.Context(), req)
	if err != nil {
		c.fail("evaluate", err)
		return
	}
	c.Metrics.RecordRequest("evaluate", "success")
	c.JSON(http.StatusOK, resp)
}

func (c *TutorController) fail(endpoint string, err error) {
	c.Metrics.RecordRequest(endpoint, "error")
	if errors.Is(err, services.ErrEmptyQuestion) || errors.Is(err, services.ErrEmptyAnswer) {
		err = apperrors.NewValidationError(err.Error()).WithCause(err)
	}
	c.JSONAppError(err)
}
