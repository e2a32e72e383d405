package knowledge

import (
	"fmt"
	"strings"
)

// DefaultSnippetChars 分块摘要/上下文片段的默认字符数
const DefaultSnippetChars = 400

const (
	// NoContextMessage 检索为空时注入提示词的文本
	NoContextMessage = "Tidak ada konteks materi relevan ditemukan."
	// LowConfidenceMessage 评审最高分低于阈值时注入提示词的文本
	LowConfidenceMessage = "Tidak ada konteks materi yang cukup relevan (hasil RAG ber-konfidensi rendah)."
)

// ScoredChunk 经相关性评审后的分块
type ScoredChunk struct {
	RetrievalResult
	JudgeScore float64
}

// assembleSimple 按检索顺序拼接全部分块，来源分数为向量相似度
func assembleSimple(chunks []RetrievalResult, snippetChars int) (string, []Source) {
	if len(chunks) == 0 {
		return NoContextMessage, nil
	}

	sections := make([]string, 0, len(chunks))
	sources := make([]Source, 0, len(chunks))
	for i, c := range chunks {
		text := truncateRunes(summaryOrText(c), snippetChars)
		sections = append(sections, fmt.Sprintf("[Sumber %d - %s]\n%s\n", i+1, sourceName(c.Source), text))
		sources = append(sources, Source{Source: sourceName(c.Source), Score: c.Score})
	}
	return strings.Join(sections, "\n\n"), sources
}

// assembleFiltered 拼接评审保留的分块，并标注评审分数
func assembleFiltered(kept []ScoredChunk, snippetChars int) (string, []Source) {
	sections := make([]string, 0, len(kept))
	sources := make([]Source, 0, len(kept))
	for i, c := range kept {
		text := truncateRunes(summaryOrText(c.RetrievalResult), snippetChars)
		sections = append(sections, fmt.Sprintf("[Sumber %d - %s | skor=%.2f]\n%s\n",
			i+1, sourceName(c.Source), c.JudgeScore, text))
		sources = append(sources, Source{Source: sourceName(c.Source), Score: c.JudgeScore})
	}
	return strings.Join(sections, "\n\n"), sources
}
