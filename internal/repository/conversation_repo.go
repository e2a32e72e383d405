package repository

import (
	"context"
	"time"

	"github.com/csipbllm/backend-go/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const conversationTable = "conversation_logs"

// conversationRepository 对话日志仓库实现
type conversationRepository struct {
	db       *gorm.DB
	observer QueryObserver
}

// NewConversationRepository 创建对话日志仓库；observer 可为 nil
func NewConversationRepository(db *gorm.DB, observer QueryObserver) ConversationRepository {
	return &conversationRepository{db: db, observer: observer}
}

// GetDB 获取数据库连接
func (r *conversationRepository) GetDB() *gorm.DB {
	return r.db
}

func (r *conversationRepository) observe(operation string, start time.Time, err error) {
	if r.observer != nil {
		r.observer.RecordQuery(operation, conversationTable, time.Since(start), err)
	}
}

// Create 写入一条对话日志；同ID重复写入被忽略（Kafka 重投递）
func (r *conversationRepository) Create(ctx context.Context, log *models.ConversationLog) error {
	start := time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(log).Error
	r.observe("insert", start, err)
	return err
}

// ListRecent 返回最近 limit 条日志，按时间正序
func (r *conversationRepository) ListRecent(ctx context.Context, limit int) ([]models.ConversationLog, error) {
	return r.list(r.db.WithContext(ctx), limit)
}

// ListBySession 返回某会话最近 limit 条日志，按时间正序
func (r *conversationRepository) ListBySession(ctx context.Context, sessionID string, limit int) ([]models.ConversationLog, error) {
	return r.list(r.db.WithContext(ctx).Where("session_id = ?", sessionID), limit)
}

func (r *conversationRepository) list(query *gorm.DB, limit int) ([]models.ConversationLog, error) {
	start := time.Now()

	var logs []models.ConversationLog
	query = query.Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&logs).Error
	r.observe("select", start, err)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(logs)-1; i < j; i, j = i+1, j-1 {
		logs[i], logs[j] = logs[j], logs[i]
	}
	return logs, nil
}
