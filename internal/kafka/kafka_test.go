package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/csipbllm/backend-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	created []models.ConversationLog
	err     error
}

func (f *fakeWriter) Create(ctx context.Context, log *models.ConversationLog) error {
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, *log)
	return nil
}

func sampleLog() *models.ConversationLog {
	return &models.ConversationLog{
		ID:          "01HZX3Q7W9N2K4M6P8R0S2T4V6",
		SessionID:   "siswa-1",
		UserMessage: "Apa itu rekursi?",
		RagMode:     "crag_filtered",
		UsedRAG:     true,
		RagSources:  `[{"source":"rekursi.md","score":0.82}]`,
		CreatedAt:   time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC),
	}
}

func TestProducer_PublishConversation(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var event ConversationEvent
		if err := json.Unmarshal(val, &event); err != nil {
			return err
		}
		if event.Type != EventConversationLogged {
			return errors.New("unexpected event type " + event.Type)
		}
		if event.Conversation.SessionID != "siswa-1" {
			return errors.New("unexpected session id")
		}
		return nil
	})

	producer := NewProducerWithClient(mock, "tutor-conversations")
	assert.Equal(t, "tutor-conversations", producer.Topic())
	require.NoError(t, producer.PublishConversation(context.Background(), sampleLog()))
	require.NoError(t, producer.Close())
}

func TestProducer_PublishFailure(t *testing.T) {
	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerWithClient(mock, "tutor-conversations")
	err := producer.PublishConversation(context.Background(), sampleLog())
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_Nil(t *testing.T) {
	var producer *Producer
	assert.Error(t, producer.PublishConversation(context.Background(), sampleLog()))
	assert.NoError(t, producer.Close())
}

func TestParseConversationEvent(t *testing.T) {
	data, err := json.Marshal(ConversationEvent{Type: EventConversationLogged, Conversation: *sampleLog()})
	require.NoError(t, err)

	event, err := ParseConversationEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "Apa itu rekursi?", event.Conversation.UserMessage)

	_, err = ParseConversationEvent([]byte("{not json"))
	assert.Error(t, err)

	_, err = ParseConversationEvent([]byte(`{"type":"conversation.logged","conversation":{}}`))
	assert.Error(t, err)
}

func TestPersistConversationHandler(t *testing.T) {
	data, err := json.Marshal(ConversationEvent{Type: EventConversationLogged, Conversation: *sampleLog()})
	require.NoError(t, err)

	writer := &fakeWriter{}
	handler := PersistConversationHandler(writer)

	require.NoError(t, handler(context.Background(), &sarama.ConsumerMessage{Value: data}))
	require.Len(t, writer.created, 1)
	assert.Equal(t, "01HZX3Q7W9N2K4M6P8R0S2T4V6", writer.created[0].ID)

	// 无法解析的消息被丢弃而不是重试
	require.NoError(t, handler(context.Background(), &sarama.ConsumerMessage{Value: []byte("garbage")}))
	assert.Len(t, writer.created, 1)
}

func TestPersistConversationHandler_WriteError(t *testing.T) {
	data, err := json.Marshal(ConversationEvent{Type: EventConversationLogged, Conversation: *sampleLog()})
	require.NoError(t, err)

	writer := &fakeWriter{err: errors.New("db down")}
	err = PersistConversationHandler(writer)(context.Background(), &sarama.ConsumerMessage{Value: data})
	assert.Error(t, err)
}
