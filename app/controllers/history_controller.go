package controllers

import (
	"net/http"
	"strings"

	"github.com/csipbllm/backend-go/internal/services"
)

// HistoryController 对话日志
type HistoryController struct {
	BaseController
	Conversations *services.ConversationService
}

// NewHistoryController 创建历史控制器
func NewHistoryController(conversations *services.ConversationService) *HistoryController {
	return &HistoryController{Conversations: conversations}
}

// Get GET /history?format=json|text
func (c *HistoryController) Get() {
	entries := c.Conversations.Entries()
	if strings.EqualFold(c.GetString("format"), "text") {
		c.JSON(http.StatusOK, map[string]string{
			"data": services.FormatConversationText(entries),
		})
		return
	}
	c.JSON(http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}
