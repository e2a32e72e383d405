package services

import (
	"fmt"
	"strconv"
	"strings"
)

// NoConversationText 对话日志为空时的文本
const NoConversationText = "Belum ada percakapan."

// FormatConversationText 将对话日志渲染为可读文本
func FormatConversationText(entries []ConversationEntry) string {
	if len(entries) == 0 {
		return NoConversationText
	}

	var b strings.Builder
	for i, conv := range entries {
		fmt.Fprintf(&b, "[Percakapan %d]\n", i+1)
		fmt.Fprintf(&b, "Pertanyaan: %s\n", conv.UserMessage)
		fmt.Fprintf(&b, "Cognitive utama: %s (CQ: %s, %s)\n", conv.CognitiveMain, conv.CQ1Main, conv.CQ2Main)
		fmt.Fprintf(&b, "Perbandingan: %s (CQ: %s, %s)\n", conv.CognitiveCompare, conv.CQ1Compare, conv.CQ2Compare)
		fmt.Fprintf(&b, "Jawaban utama:\n%s\n", conv.ReplyMain)
		fmt.Fprintf(&b, "Jawaban perbandingan:\n%s\n", conv.ReplyCompare)
		if conv.FollowupQuestion != "" {
			fmt.Fprintf(&b, "Pertanyaan Lanjutan: %s\n", conv.FollowupQuestion)
		}
		if conv.UsedRAG {
			mode := conv.RagMode
			if mode == "" {
				mode = "simple"
			}
			fmt.Fprintf(&b, "RAG: Ya (mode=%s)\n", mode)
			if len(conv.RagSources) > 0 {
				b.WriteString("Sumber RAG:\n")
				for _, src := range conv.RagSources {
					fmt.Fprintf(&b, "- %s (score=%s)\n", src.Source, strconv.FormatFloat(src.Score, 'f', -1, 64))
				}
			}
		} else {
			b.WriteString("RAG: Tidak digunakan atau tidak relevan.\n")
		}
		b.WriteString(strings.Repeat("-", 60))
		b.WriteString("\n")
	}
	return b.String()
}
