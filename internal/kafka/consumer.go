package kafka

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/csipbllm/backend-go/internal/logger"
	"github.com/csipbllm/backend-go/internal/models"
	"go.uber.org/zap"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConversationWriter 对话日志写入方（对话仓库实现）
type ConversationWriter interface {
	Create(ctx context.Context, log *models.ConversationLog) error
}

// Consumer Kafka消费者组
type Consumer struct {
	consumer sarama.ConsumerGroup
	groupID  string
	topics   []string

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsumerConfig 消费者配置
func NewConsumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0
	return config
}

// NewConsumer 创建消费者组；需调用 Start 开始消费
func NewConsumer(brokers []string, groupID string, topics []string) (*Consumer, error) {
	group, err := sarama.NewConsumerGroup(brokers, groupID, NewConsumerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID),
		zap.Strings("topics", topics))

	return &Consumer{
		consumer: group,
		groupID:  groupID,
		topics:   topics,
		handlers: make(map[string]MessageHandler),
	}, nil
}

// RegisterHandler 注册主题处理器
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()
	logger.Info("Kafka handler registered", zap.String("topic", topic))
}

func (c *Consumer) handler(topic string) (MessageHandler, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.handlers[topic]
	return h, ok
}

// Start 后台消费，直到 ctx 结束或 Close
func (c *Consumer) Start(ctx context.Context) {
	if c == nil || c.consumer == nil {
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(ctx, c.topics, &consumerGroupHandler{consumer: c}); err != nil {
				logger.Error("Kafka consume failed", zap.Error(err))
				select {
				case <-ctx.Done():
				case <-time.After(5 * time.Second):
				}
			}
			if ctx.Err() != nil {
				logger.Info("Kafka consumer stopped")
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()
}

// Close 停止消费并关闭消费者组
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	var err error
	if c.consumer != nil {
		err = c.consumer.Close()
	}
	c.wg.Wait()
	return err
}

// consumerGroupHandler 消费者组处理器
type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim 逐条处理；失败的消息不标记，等待重投递
func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			handler, found := h.consumer.handler(message.Topic)
			if !found {
				logger.Warn("No handler for topic", zap.String("topic", message.Topic))
				session.MarkMessage(message, "")
				continue
			}

			if err := handler(session.Context(), message); err != nil {
				logger.Error("Failed to handle kafka message",
					zap.String("topic", message.Topic),
					zap.Int32("partition", message.Partition),
					zap.Int64("offset", message.Offset),
					zap.Error(err))
				continue
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// PersistConversationHandler 将对话日志事件写入仓库；无法解析的消息直接丢弃
func PersistConversationHandler(writer ConversationWriter) MessageHandler {
	return func(ctx context.Context, message *sarama.ConsumerMessage) error {
		event, err := ParseConversationEvent(message.Value)
		if err != nil {
			logger.Warn("Dropping malformed conversation event",
				zap.Int64("offset", message.Offset),
				zap.Error(err))
			return nil
		}
		if err := writer.Create(ctx, &event.Conversation); err != nil {
			return fmt.Errorf("failed to persist conversation %s: %w", event.Conversation.ID, err)
		}
		return nil
	}
}
