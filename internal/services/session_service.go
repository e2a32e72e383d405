package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	RoleHuman = "human"
	RoleAI    = "ai"
)

const defaultSessionPrefix = "csipb:session:"

// SessionMessage 会话中的一条消息
type SessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore 按会话ID保存对话记忆
type SessionStore interface {
	Append(ctx context.Context, sessionID string, messages ...SessionMessage) error
	Messages(ctx context.Context, sessionID string) ([]SessionMessage, error)
}

// MemorySessionStore 进程内会话记忆
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string][]SessionMessage
}

// NewMemorySessionStore 创建内存会话存储
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string][]SessionMessage)}
}

func (s *MemorySessionStore) Append(ctx context.Context, sessionID string, messages ...SessionMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], messages...)
	return nil
}

func (s *MemorySessionStore) Messages(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.sessions[sessionID]
	out := make([]SessionMessage, len(stored))
	copy(out, stored)
	return out, nil
}

// RedisSessionStore 以Redis列表保存会话，每次写入刷新过期时间
type RedisSessionStore struct {
	redis  *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisSessionStore 创建Redis会话存储
func NewRedisSessionStore(client *redis.Client, prefix string, ttl time.Duration) *RedisSessionStore {
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &RedisSessionStore{redis: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, messages ...SessionMessage) error {
	if s.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}
	if len(messages) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(messages))
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode session message: %w", err)
		}
		values = append(values, data)
	}

	key := s.key(sessionID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session messages: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Messages(ctx context.Context, sessionID string) ([]SessionMessage, error) {
	if s.redis == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := s.redis.LRange(ctx, s.key(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session messages: %w", err)
	}

	messages := make([]SessionMessage, 0, len(raw))
	for _, item := range raw {
		var msg SessionMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// NoHistoryText 会话为空时的历史文本
const NoHistoryText = "Tidak ada riwayat sebelumnya."

// FormatHistory 将会话渲染为提示词中的历史；超长时保留末尾并加省略前缀
func FormatHistory(messages []SessionMessage, maxChars int) string {
	if len(messages) == 0 {
		return NoHistoryText
	}

	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		prefix := "[Riwayat]"
		switch msg.Role {
		case RoleHuman:
			prefix = "[Siswa]"
		case RoleAI:
			prefix = "[Tutor]"
		}
		lines = append(lines, prefix+" "+msg.Content)
	}

	text := strings.Join(lines, "\n")
	runes := []rune(text)
	if maxChars <= 0 || len(runes) <= maxChars {
		return text
	}
	return "...\n" + string(runes[len(runes)-maxChars:])
}
