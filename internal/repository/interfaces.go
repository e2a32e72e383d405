package repository

import (
	"context"
	"time"

	"github.com/csipbllm/backend-go/internal/models"
	"gorm.io/gorm"
)

// Repository 基础仓库接口
type Repository interface {
	GetDB() *gorm.DB
}

// QueryObserver 查询耗时观察者（由数据库指标收集器实现）
type QueryObserver interface {
	RecordQuery(operation, table string, duration time.Duration, err error)
}

// ConversationRepository 对话日志仓库接口
type ConversationRepository interface {
	Repository
	Create(ctx context.Context, log *models.ConversationLog) error
	ListRecent(ctx context.Context, limit int) ([]models.ConversationLog, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error)
}
