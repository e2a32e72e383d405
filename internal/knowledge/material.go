package knowledge

import "unicode/utf8"

// MaterialChunk 材料分块（索引中的最小检索单元）
type MaterialChunk struct {
	Embedding []float32
	Text      string
	Summary   string
	Source    string
	ChunkID   int
}

// RetrievalResult 单次查询的检索结果
type RetrievalResult struct {
	Text    string  `json:"text"`
	Summary string  `json:"summary"`
	Source  string  `json:"source"`
	Score   float64 `json:"score"`
}

// Source 上下文来源与分数
type Source struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// truncateRunes 按字符截断
func truncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

// summaryOrText 优先返回摘要
func summaryOrText(r RetrievalResult) string {
	if r.Summary != "" {
		return r.Summary
	}
	return r.Text
}

func sourceName(source string) string {
	if source == "" {
		return "?"
	}
	return source
}
