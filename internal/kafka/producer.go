package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/models"
	"go.uber.org/zap"
)

// 事件类型
const (
	EventConversationLogged = "conversation.logged"
)

// ConversationEvent 对话日志事件
type ConversationEvent struct {
	Type         string                 `json:"type"`
	Conversation models.ConversationLog `json:"conversation"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Producer Kafka生产者
type Producer struct {
	producer sarama.SyncProducer
	topic    string
}

// NewProducerConfig 生产者配置
func NewProducerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	return config
}

// NewProducer 连接Kafka并创建同步生产者
func NewProducer(brokers []string, topic string) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", brokers), zap.String("topic", topic))
	return NewProducerWithClient(producer, topic), nil
}

// NewProducerWithClient 使用已有的sarama生产者
func NewProducerWithClient(producer sarama.SyncProducer, topic string) *Producer {
	return &Producer{producer: producer, topic: topic}
}

// Topic 目标主题
func (p *Producer) Topic() string {
	return p.topic
}

// PublishConversation 发布对话日志事件，以会话ID为分区键
func (p *Producer) PublishConversation(ctx context.Context, log *models.ConversationLog) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka producer not initialized")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	event := ConversationEvent{
		Type:         EventConversationLogged,
		Conversation: *log,
		Timestamp:    time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode conversation event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(log.SessionID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.Type)},
			{Key: []byte("conversation_id"), Value: []byte(log.ID)},
		},
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		logger.Error("Failed to publish conversation event", zap.String("conversation_id", log.ID), zap.Error(err))
		return fmt.Errorf("failed to publish conversation event: %w", err)
	}

	logger.Debug("Conversation event published",
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.String("conversation_id", log.ID))
	return nil
}

// Close 关闭生产者
func (p *Producer) Close() error {
	if p != nil && p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// ParseConversationEvent 解析对话日志事件
func ParseConversationEvent(data []byte) (*ConversationEvent, error) {
	var event ConversationEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to decode conversation event: %w", err)
	}
	if event.Conversation.ID == "" {
		return nil, fmt.Errorf("conversation event without id")
	}
	return &event, nil
}
