package knowledge

import "strings"

// DefaultChunkSize 默认分块窗口（字符数）
const DefaultChunkSize = 800

// Chunk 表示分块后的文本结构
type Chunk struct {
	Index int
	Text  string
}

// Chunker 定长无重叠文本分块器
type Chunker struct {
	chunkSize int
}

// NewChunker 创建分块器
func NewChunker(chunkSize int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Chunker{chunkSize: chunkSize}
}

// Size 返回窗口大小
func (c *Chunker) Size() int {
	return c.chunkSize
}

// Split 将文本按固定字符窗口切分，不做空白归一化
func (c *Chunker) Split(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	chunks := make([]Chunk, 0, (len(runes)+c.chunkSize-1)/c.chunkSize)
	for start := 0; start < len(runes); start += c.chunkSize {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Text:  string(runes[start:end]),
		})
	}

	return chunks
}
