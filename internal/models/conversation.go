package models

import (
	"time"
)

// ConversationLog 对话日志表（/chat 每次问答一条）
type ConversationLog struct {
	ID               string    `gorm:"primaryKey;column:id;size:26" json:"id"`
	SessionID        string    `gorm:"column:session_id;size:255;not null;index" json:"session_id"`
	UserMessage      string    `gorm:"column:user_message;type:text;not null" json:"user_message"`
	CognitiveMain    string    `gorm:"column:cognitive_main;size:100" json:"cognitive_main"`
	CQ1Main          string    `gorm:"column:cq1_main;size:100" json:"cq1_main"`
	CQ2Main          string    `gorm:"column:cq2_main;size:100" json:"cq2_main"`
	CognitiveCompare string    `gorm:"column:cognitive_compare;size:100" json:"cognitive_compare"`
	CQ1Compare       string    `gorm:"column:cq1_compare;size:100" json:"cq1_compare"`
	CQ2Compare       string    `gorm:"column:cq2_compare;size:100" json:"cq2_compare"`
	ReplyMain        string    `gorm:"column:reply_main;type:text" json:"reply_main"`
	ReplyCompare     string    `gorm:"column:reply_compare;type:text" json:"reply_compare"`
	FollowupQuestion string    `gorm:"column:followup_question;type:text" json:"followup_question"`
	IsCodeQuestion   bool      `gorm:"column:is_code_question" json:"is_code_question"`
	UsedRAG          bool      `gorm:"column:used_rag" json:"used_rag"`
	RagMode          string    `gorm:"column:rag_mode;size:32" json:"rag_mode"`
	RagSources       string    `gorm:"column:rag_sources;type:jsonb" json:"rag_sources"`
	CreatedAt        time.Time `gorm:"column:created_at;not null;index" json:"created_at"`
}

func (ConversationLog) TableName() string {
	return "conversation_logs"
}
