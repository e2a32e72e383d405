package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/csipbllm/backend-go/internal/logger"
	"go.uber.org/zap"
)

// RagMode 上下文组装结果标签
type RagMode string

const (
	RagModeNoMaterial     RagMode = "no_material"
	RagModeSimple         RagMode = "simple"
	RagModeLowConfidence  RagMode = "no_rag_low_conf"
	RagModeFiltered       RagMode = "crag_filtered"
	RagModeSimpleFallback RagMode = "simple_fallback"
)

const (
	ModeAccurate = "accurate"
	ModeFast     = "fast"
)

// neutralScore 评审输出无法解析时的默认分数
const neutralScore = 0.5

// CragConfig 相关性评审配置
type CragConfig struct {
	Enabled        bool
	NoRagThreshold float64
	KeepThreshold  float64
	TopK           int
	SnippetChars   int
}

// DefaultCragConfig 返回默认评审配置
func DefaultCragConfig() CragConfig {
	return CragConfig{
		Enabled:        true,
		NoRagThreshold: 0.30,
		KeepThreshold:  0.40,
		TopK:           3,
		SnippetChars:   DefaultSnippetChars,
	}
}

// CragDecision 上下文组装结果
type CragDecision struct {
	Outcome     RagMode
	ContextText string
	UsedRAG     bool
	Sources     []Source
}

// Evaluator CRAG-lite：一次模型调用为全部候选分块打分，再决定是否使用及保留哪些
type Evaluator struct {
	cfg   CragConfig
	judge TextGenerator
}

// NewEvaluator 创建评审器；judge 为 nil 时等同于关闭评审
func NewEvaluator(cfg CragConfig, judge TextGenerator) *Evaluator {
	defaults := DefaultCragConfig()
	if cfg.TopK <= 0 {
		cfg.TopK = defaults.TopK
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = defaults.SnippetChars
	}
	return &Evaluator{cfg: cfg, judge: judge}
}

// Config 返回生效配置
func (e *Evaluator) Config() CragConfig {
	return e.cfg
}

// Assemble 根据模式与评审结果组装上下文；不会返回错误
func (e *Evaluator) Assemble(ctx context.Context, question string, chunks []RetrievalResult, mode string) CragDecision {
	if len(chunks) == 0 {
		return CragDecision{Outcome: RagModeNoMaterial, ContextText: NoContextMessage}
	}

	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeAccurate
	}
	if mode != ModeAccurate || !e.cfg.Enabled || e.judge == nil {
		return e.AssembleSimple(chunks)
	}
	return e.assembleWithJudge(ctx, question, chunks)
}

// AssembleSimple 不经评审直接拼接全部分块
func (e *Evaluator) AssembleSimple(chunks []RetrievalResult) CragDecision {
	if len(chunks) == 0 {
		return CragDecision{Outcome: RagModeNoMaterial, ContextText: NoContextMessage}
	}
	text, sources := assembleSimple(chunks, e.cfg.SnippetChars)
	return CragDecision{
		Outcome:     RagModeSimple,
		ContextText: text,
		UsedRAG:     true,
		Sources:     sources,
	}
}

func (e *Evaluator) assembleWithJudge(ctx context.Context, question string, chunks []RetrievalResult) CragDecision {
	resp, err := e.judge.Generate(ctx, e.judgePrompt(question, chunks))
	if err == nil && strings.HasPrefix(strings.TrimSpace(resp), "[Error") {
		err = fmt.Errorf("judge returned %q", resp)
	}
	if err != nil {
		logger.Warn("Relevance judge failed, using simple context", zap.Error(err))
		return e.AssembleSimple(chunks)
	}

	scores := ParseScores(resp, len(chunks))
	logger.Debug("Relevance judge scores", zap.Float64s("scores", scores))

	maxScore := 0.0
	for i, s := range scores {
		if i == 0 || s > maxScore {
			maxScore = s
		}
	}
	if maxScore < e.cfg.NoRagThreshold {
		return CragDecision{Outcome: RagModeLowConfidence, ContextText: LowConfidenceMessage}
	}

	order := make([]int, len(chunks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	kept := make([]ScoredChunk, 0, e.cfg.TopK)
	for _, idx := range order {
		if scores[idx] < e.cfg.KeepThreshold {
			continue
		}
		kept = append(kept, ScoredChunk{RetrievalResult: chunks[idx], JudgeScore: scores[idx]})
		if len(kept) >= e.cfg.TopK {
			break
		}
	}

	if len(kept) == 0 {
		decision := e.AssembleSimple(chunks)
		decision.Outcome = RagModeSimpleFallback
		return decision
	}

	text, sources := assembleFiltered(kept, e.cfg.SnippetChars)
	return CragDecision{
		Outcome:     RagModeFiltered,
		ContextText: text,
		UsedRAG:     true,
		Sources:     sources,
	}
}

func (e *Evaluator) judgePrompt(question string, chunks []RetrievalResult) string {
	sections := make([]string, 0, len(chunks))
	for i, c := range chunks {
		sections = append(sections, fmt.Sprintf("Chunk %d:\n%s\n", i+1, truncateRunes(summaryOrText(c), e.cfg.SnippetChars)))
	}

	var b strings.Builder
	b.WriteString("Kamu adalah evaluator relevansi materi belajar.\n\n")
	b.WriteString("Pertanyaan siswa:\n")
	b.WriteString(question)
	b.WriteString("\n\n")
	b.WriteString("Berikut beberapa potongan materi (chunk). Nilai seberapa relevan masing-masing chunk " +
		"untuk membantu menjawab pertanyaan di atas, pada skala 0 sampai 1 " +
		"(0 = tidak relevan, 1 = sangat relevan).\n\n")
	b.WriteString("Kembalikan hasil dalam format JSON PERSIS seperti ini (tanpa teks lain):\n")
	b.WriteString(`{"scores": [s1, s2, ...]}` + "\n\n")
	b.WriteString(strings.Join(sections, "\n"))
	return b.String()
}

var scoreObjectPattern = regexp.MustCompile(`(?s)\{.*?\}`)

// ParseScores 从评审输出中提取n个分数；无法解析时全部为0.5
func ParseScores(text string, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	text = strings.TrimSpace(text)

	raw, ok := scoresFromJSON(text)
	if !ok {
		for _, candidate := range scoreObjectPattern.FindAllString(text, -1) {
			if raw, ok = scoresFromJSON(candidate); ok {
				break
			}
		}
	}

	out := make([]float64, n)
	if !ok {
		logger.Warn("Could not parse relevance scores, using neutral score")
		for i := range out {
			out[i] = neutralScore
		}
		return out
	}

	for i := 0; i < n && i < len(raw); i++ {
		out[i] = coerceScore(raw[i])
	}
	return out
}

func scoresFromJSON(text string) ([]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, false
	}
	list, ok := obj["scores"].([]interface{})
	return list, ok
}

func coerceScore(v interface{}) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0
		}
		return f
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		return 0
	}
}
