package knowledge

import (
	"context"
	"strings"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// TextGenerator 文本生成能力（摘要、相关性评分共用）
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

const compressionPromptHeader = "Ringkas teks materi berikut menjadi 2–3 kalimat inti " +
	"yang fokus pada konsep dan langkah penting untuk belajar " +
	"Computational Thinking. Hindari detail yang tidak penting.\n\n"

// Compressor 构建索引时为分块生成摘要，只在预计算阶段调用
type Compressor struct {
	generator  TextGenerator
	inputChars int
}

// NewCompressor 创建分块摘要器；generator 为 nil 时返回 nil
func NewCompressor(generator TextGenerator, inputChars int) *Compressor {
	if generator == nil {
		return nil
	}
	if inputChars <= 0 {
		inputChars = 1200
	}
	return &Compressor{generator: generator, inputChars: inputChars}
}

// Summarize 返回模型摘要；失败或为空时返回 fallback
func (c *Compressor) Summarize(ctx context.Context, chunkText, fallback, label string) string {
	if c == nil {
		return fallback
	}

	prompt := compressionPromptHeader + truncateRunes(chunkText, c.inputChars)
	resp, err := c.generator.Generate(ctx, prompt)
	if err != nil {
		logger.Warn("Chunk compression failed, using truncated text",
			zap.String("chunk", label),
			zap.Error(err))
		return fallback
	}

	summary := strings.TrimSpace(resp)
	if summary == "" {
		return fallback
	}
	return summary
}
