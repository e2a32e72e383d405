package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/csipbllm/backend-go/internal/logger"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Generator 单轮文本生成
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options Ollama客户端配置
type Options struct {
	BaseURL      string
	Model        string
	Timeout      time.Duration
	Retries      int
	RetryDelay   time.Duration
	Temperature  float32
	UseOpenAIAPI bool
}

// Client Ollama生成客户端：优先走OpenAI兼容接口，失败后回退原生 /api/generate
type Client struct {
	opts   Options
	http   *http.Client
	openai *openai.Client
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// NewClient 创建Ollama客户端
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = fmt.Sprintf("http://localhost:%d", DefaultPort)
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	if opts.Model == "" {
		opts.Model = "deepseek-r1:8b"
	}
	if opts.Retries <= 0 {
		opts.Retries = 3
	}
	if opts.RetryDelay < 0 {
		opts.RetryDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 1500 * time.Second
	}

	httpClient := &http.Client{Timeout: opts.Timeout}
	c := &Client{opts: opts, http: httpClient}

	if opts.UseOpenAIAPI {
		// Ollama 不校验 key，但客户端要求非空
		cfg := openai.DefaultConfig("ollama")
		cfg.BaseURL = opts.BaseURL + "/v1"
		cfg.HTTPClient = httpClient
		c.openai = openai.NewClientWithConfig(cfg)
	}
	return c
}

// Model 返回模型名
func (c *Client) Model() string {
	return c.opts.Model
}

// BaseURL 返回Ollama地址
func (c *Client) BaseURL() string {
	return c.opts.BaseURL
}

// Generate 发送单条提示词并返回去除首尾空白的回答
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.openai != nil {
		text, err := c.generateChat(ctx, prompt)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("OpenAI-compatible endpoint failed, falling back to native API",
			zap.String("model", c.opts.Model),
			zap.Error(err))
	}
	return c.generateNative(ctx, prompt)
}

func (c *Client) generateChat(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		logger.Debug("Sending prompt via chat completions",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.opts.Retries))

		resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.opts.Model,
			Temperature: c.opts.Temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", ErrEmptyResponse
			}
			text := strings.TrimSpace(resp.Choices[0].Message.Content)
			if text == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		}

		lastErr = err
		logger.Warn("Chat completion attempt failed", zap.Int("attempt", attempt), zap.Error(err))
		if err := sleep(ctx, c.opts.RetryDelay); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) generateNative(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Model: c.opts.Model, Prompt: prompt, Stream: false})
	if err != nil {
		return "", err
	}
	url := c.opts.BaseURL + "/api/generate"

	for attempt := 1; attempt <= c.opts.Retries; attempt++ {
		logger.Debug("Sending prompt via native API",
			zap.Int("attempt", attempt),
			zap.Int("retries", c.opts.Retries))

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if isTimeout(err) {
				logger.Warn("Ollama request timed out", zap.Duration("timeout", c.opts.Timeout))
				return "", ErrTimeout
			}
			logger.Warn("Cannot connect to Ollama, retrying", zap.Int("attempt", attempt), zap.Error(err))
			if err := sleep(ctx, c.opts.RetryDelay); err != nil {
				return "", err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			if isTimeout(readErr) {
				return "", ErrTimeout
			}
			logger.Warn("Failed to read Ollama response", zap.Error(readErr))
			if err := sleep(ctx, c.opts.RetryDelay); err != nil {
				return "", err
			}
			continue
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var decoded interface{}
			if err := json.Unmarshal(body, &decoded); err != nil {
				return "", ErrInvalidJSON
			}
			text := strings.TrimSpace(extractText(decoded))
			if text == "" {
				return "", ErrEmptyResponse
			}
			return text, nil
		case http.StatusInternalServerError:
			logger.Warn("Model not ready yet, retrying", zap.Int("attempt", attempt))
			if err := sleep(ctx, c.opts.RetryDelay); err != nil {
				return "", err
			}
		default:
			snippet := truncate(string(body), 200)
			logger.Warn("Ollama returned error status",
				zap.Int("status", resp.StatusCode),
				zap.String("body", snippet))
			return "", &APIError{Status: resp.StatusCode, Body: snippet}
		}
	}
	return "", ErrUnavailable
}

// extractText 兼容多种响应形态提取文本
func extractText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]interface{}:
		for _, key := range []string{"response", "content", "text"} {
			if s, ok := val[key].(string); ok && s != "" {
				return s
			}
		}
		if msg, ok := val["message"].(map[string]interface{}); ok {
			if s, ok := msg["content"].(string); ok {
				return s
			}
		}
		if choices, ok := val["choices"].([]interface{}); ok && len(choices) > 0 {
			return extractText(choices[0])
		}
		return ""
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if s := extractText(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "")
	default:
		return ""
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
