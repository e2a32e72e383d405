package services

import (
	"regexp"
	"strings"
)

var codePattern = regexp.MustCompile("```[\\s\\S]*?```|(\\bfor\\b|\\bwhile\\b|\\bif\\b|\\bdef\\b|\\bprint\\b|\\breturn\\b|;|=)")

// IsCodeLike 判断文本是否像代码或伪代码
func IsCodeLike(text string) bool {
	return codePattern.MatchString(text)
}

// CognitiveLabel 认知类型标签
func CognitiveLabel(code string) string {
	switch strings.ToLower(code) {
	case "par":
		return "PAR — Practical-Analytical"
	case "tar":
		return "TAR — Theoretical-Analytical"
	default:
		return "Default Cognitive"
	}
}

// CQLabel 学习偏好标签
func CQLabel(code string) string {
	switch strings.ToLower(code) {
	case "p":
		return "Praktis / Project"
	case "t":
		return "Teoretis / Thinking"
	case "a":
		return "Analitis / Abstract"
	default:
		return "Tanpa preferensi khusus"
	}
}

// OppositeCognitive 对照画像的认知类型
func OppositeCognitive(code string) string {
	if strings.ToLower(code) == "par" {
		return "tar"
	}
	return "par"
}

// BalancedCQCompare 优先选择主画像未使用的偏好；全部用过时沿用主画像
func BalancedCQCompare(cq1, cq2 string) (string, string) {
	used := map[string]bool{strings.ToLower(cq1): true, strings.ToLower(cq2): true}

	var remaining []string
	for _, c := range []string{"p", "t", "a"} {
		if !used[c] {
			remaining = append(remaining, c)
		}
	}

	if len(remaining) == 0 {
		if cq1 == "" {
			cq1 = "t"
		}
		if cq2 == "" {
			cq2 = "a"
		}
		return cq1, cq2
	}

	second := cq1
	if second == "" {
		second = remaining[0]
	}
	return remaining[0], second
}

// Profile 学习者画像
type Profile struct {
	Cognitive string
	CQ1       string
	CQ2       string
}

// NormalizeProfile 规范化主画像，非法认知类型回退为 par
func NormalizeProfile(cognitive, cq1, cq2 string) Profile {
	p := Profile{
		Cognitive: strings.ToLower(cognitive),
		CQ1:       strings.ToLower(cq1),
		CQ2:       strings.ToLower(cq2),
	}
	if p.Cognitive != "par" && p.Cognitive != "tar" {
		p.Cognitive = "par"
	}
	if p.CQ1 == "" {
		p.CQ1 = "t"
	}
	if p.CQ2 == "" {
		p.CQ2 = "a"
	}
	return p
}

// CompareProfile 生成对照画像
func (p Profile) CompareProfile() Profile {
	cq1, cq2 := BalancedCQCompare(p.CQ1, p.CQ2)
	return Profile{Cognitive: OppositeCognitive(p.Cognitive), CQ1: cq1, CQ2: cq2}
}

// ProfileLabels 画像的展示标签
type ProfileLabels struct {
	Cognitive string
	CQ1       string
	CQ2       string
}

// Labels 返回画像标签
func (p Profile) Labels() ProfileLabels {
	return ProfileLabels{
		Cognitive: CognitiveLabel(p.Cognitive),
		CQ1:       CQLabel(p.CQ1),
		CQ2:       CQLabel(p.CQ2),
	}
}
