package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyResponse 模型返回空文本
	ErrEmptyResponse = errors.New("model returned empty response")
	// ErrInvalidJSON 响应体不是合法JSON
	ErrInvalidJSON = errors.New("invalid JSON response")
	// ErrTimeout 单次请求超时
	ErrTimeout = errors.New("ollama request timed out")
	// ErrUnavailable 重试耗尽仍无法连接
	ErrUnavailable = errors.New("ollama unavailable after retries")
)

// APIError Ollama返回的非200、非500响应
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ollama API error %d: %s", e.Status, e.Body)
}

// SentinelFor 将生成错误转换为面向用户的哨兵文本
func SentinelFor(err error) string {
	var apiErr *APIError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyResponse):
		return "[Error] Model tidak mengembalikan jawaban."
	case errors.Is(err, ErrInvalidJSON):
		return "[Error] Respons JSON tidak valid."
	case errors.Is(err, ErrTimeout):
		return "[Error Ollama API] Timeout."
	case errors.As(err, &apiErr):
		return "[Error Ollama API] " + apiErr.Body
	default:
		return "[Error Ollama API] Gagal menghubungi Ollama setelah beberapa percobaan."
	}
}
