package services

import (
	"fmt"
	"strings"
)

type chatPromptInput struct {
	Question     string
	Main         ProfileLabels
	Compare      ProfileLabels
	HistoryText  string
	ContextText  string
	RagMode      string
	CodeQuestion bool
}

func profileBlock(title string, labels ProfileLabels) string {
	return fmt.Sprintf("%s:\n- Tipe kognitif: %s\n- Preferensi CQ1: %s\n- Preferensi CQ2: %s\n\n",
		title, labels.Cognitive, labels.CQ1, labels.CQ2)
}

func historyBlock(title, historyText string) string {
	return fmt.Sprintf("=== %s ===\n%s\n\n", title, historyText)
}

func ragBlock(ragMode, contextText string) string {
	if ragMode == "" {
		return fmt.Sprintf("=== KONTEN MATERI TERKAIT (RAG) ===\n%s\n\n", contextText)
	}
	return fmt.Sprintf("=== KONTEN MATERI TERKAIT (RAG, mode=%s) ===\n%s\n\n", ragMode, contextText)
}

// buildMainPrompt 主画像回答提示词
func buildMainPrompt(in chatPromptInput) string {
	var b strings.Builder
	if in.CodeQuestion {
		b.WriteString("Kamu adalah tutor Computational Thinking PERSONAL yang adaptif.\n\n")
		b.WriteString(profileBlock("Profil utama siswa", in.Main))
		b.WriteString("Gunakan profil ini untuk mengatur gaya penjelasan: " +
			"PAR → praktis & banyak contoh konkret, " +
			"TAR → konseptual & teoritis sebelum contoh. " +
			"CQ1 memengaruhi cara siswa menyerap konsep, CQ2 memengaruhi cara penjelasan yang disukai.\n\n")
		b.WriteString(historyBlock("RINGKASAN RIWAYAT SEBELUMNYA", in.HistoryText))
		b.WriteString(ragBlock(in.RagMode, in.ContextText))
		b.WriteString("Tugasmu:\n" +
			"1. Pahami pertanyaan/logika/kode berikut.\n" +
			"2. Jelaskan konsep dan strategi penyelesaiannya secara bertahap.\n" +
			"3. Tunjukkan cara berpikir (reasoning) dengan jelas.\n" +
			"4. Berikan jawaban lengkap dan, bila perlu, contoh potongan kode.\n" +
			"5. Jawab dalam BAHASA INDONESIA yang rapi, kecuali pertanyaannya jelas menggunakan bahasa lain.\n\n")
		fmt.Fprintf(&b, "Pertanyaan/logika/kode siswa:\n%s\n", in.Question)
		return b.String()
	}

	b.WriteString("Kamu adalah tutor pembelajaran PERSONAL yang adaptif.\n\n")
	b.WriteString(profileBlock("Profil utama siswa", in.Main))
	b.WriteString("Gunakan profil ini untuk menentukan seimbangnya teori vs contoh, dan seberapa terstruktur jawaban.\n" +
		"PAR → banyak contoh praktis & langkah nyata.\n" +
		"TAR → mulai dari konsep dan kerangka teori, lalu contoh.\n\n")
	b.WriteString(historyBlock("RINGKASAN RIWAYAT SEBELUMNYA", in.HistoryText))
	b.WriteString(ragBlock(in.RagMode, in.ContextText))
	b.WriteString("Tugasmu:\n" +
		"1. Ringkas singkat inti pertanyaan siswa.\n" +
		"2. Jelaskan materi dari dasar → lanjut secara bertahap, sesuai profil kognitif.\n" +
		"3. Gunakan contoh/analogi yang relevan.\n" +
		"4. Akhiri dengan rangkuman poin-poin utama.\n" +
		"5. Jawab dalam BAHASA INDONESIA yang jelas dan sopan, kecuali pertanyaannya jelas menggunakan bahasa lain.\n\n")
	fmt.Fprintf(&b, "Pertanyaan siswa:\n%s\n", in.Question)
	return b.String()
}

// buildComparePrompt 对照画像回答提示词
func buildComparePrompt(in chatPromptInput) string {
	var b strings.Builder
	if in.CodeQuestion {
		b.WriteString("Kamu adalah tutor Computational Thinking VERSI PERBANDINGAN.\n\n")
		b.WriteString(profileBlock("Profil perbandingan", in.Compare))
		b.WriteString(ragBlock(in.RagMode, in.ContextText))
		b.WriteString("Buat versi PENJELASAN ALTERNATIF untuk pertanyaan yang sama. " +
			"Penjelasan harus tetap benar, tetapi gaya berpikir dan cara menyusun penjelasan boleh berbeda " +
			"(lebih teoritis, lebih analitis, atau lebih aplikatif).\n\n")
		fmt.Fprintf(&b, "Pertanyaan/logika/kode siswa:\n%s\n", in.Question)
		return b.String()
	}

	b.WriteString("Kamu adalah tutor VERSI PERBANDINGAN yang memberikan sudut pandang lain.\n\n")
	b.WriteString(profileBlock("Profil perbandingan", in.Compare))
	b.WriteString(ragBlock(in.RagMode, in.ContextText))
	b.WriteString("Buat penjelasan alternatif untuk pertanyaan yang sama. " +
		"Penjelasan harus tetap benar, tapi cara menyusun dan menekankan poin boleh berbeda. " +
		"Jangan hanya mengulang penjelasan utama.\n\n")
	fmt.Fprintf(&b, "Pertanyaan siswa:\n%s\n", in.Question)
	return b.String()
}

// buildChatFollowupPrompt 回答后的追问提示词
func buildChatFollowupPrompt(historyText, replyMain string) string {
	return "Kamu adalah tutor interaktif.\n\n" +
		historyBlock("RINGKASAN RIWAYAT SEBELUMNYA", historyText) +
		"Jawaban penjelasan yang baru saja kamu berikan:\n\n" +
		replyMain + "\n\n" +
		"Buat SATU pertanyaan lanjutan (tepat 1 kalimat) untuk mengajak siswa berpikir lebih dalam. " +
		"Hindari memberi jawaban; fokus pada konsep atau aplikasinya."
}

type evalPromptInput struct {
	Answer        string
	CorrectAnswer string
	HistoryText   string
	ContextText   string
	HintLevel     string
	IsCode        bool
}

// buildEvaluatePrompt 答案评估提示词
func buildEvaluatePrompt(in evalPromptInput) string {
	var b strings.Builder
	if in.IsCode {
		b.WriteString("Kamu adalah tutor Computational Thinking.\n\n")
		b.WriteString(historyBlock("RIWAYAT EVALUASI SEBELUMNYA (ringkas)", in.HistoryText))
		b.WriteString(ragBlock("", in.ContextText))
		b.WriteString("Evaluasi logika, struktur, dan kejelasan kode/pseudocode berikut.\n\n")
		fmt.Fprintf(&b, "Jawaban siswa:\n%s\n\n", in.Answer)
		fmt.Fprintf(&b, "Kunci jawaban (rujukan konsep):\n%s\n\n", in.CorrectAnswer)
		fmt.Fprintf(&b, "Tahap bantuan: %s\n", in.HintLevel)
		b.WriteString("Berikan umpan balik ringkas, fokus ke algoritma & urutan langkah, bukan sekadar sintaks. " +
			"Jika salah, JANGAN memberikan jawaban final — beri petunjuk bertahap.")
		return b.String()
	}

	b.WriteString("Kamu adalah tutor adaptif.\n\n")
	b.WriteString(historyBlock("RIWAYAT EVALUASI SEBELUMNYA (ringkas)", in.HistoryText))
	b.WriteString(ragBlock("", in.ContextText))
	b.WriteString("Evaluasi jawaban siswa berdasarkan kunci jawaban berikut.\n\n")
	fmt.Fprintf(&b, "Jawaban siswa:\n%s\n\n", in.Answer)
	fmt.Fprintf(&b, "Kunci jawaban:\n%s\n\n", in.CorrectAnswer)
	fmt.Fprintf(&b, "Tahap bantuan: %s\n", in.HintLevel)
	b.WriteString("Berikan umpan balik mendidik dan petunjuk bertahap. Jangan bocorkan jawaban final jika salah.")
	return b.String()
}

// buildEvaluateFollowupPrompt 评估后的追问提示词
func buildEvaluateFollowupPrompt(historyText, answer, correctAnswer string, hint HintStage) string {
	return "Kamu adalah tutor interaktif.\n\n" +
		historyBlock("RIWAYAT EVALUASI SEBELUMNYA (ringkas)", historyText) +
		fmt.Sprintf("Jawaban siswa:\n%s\n\n", answer) +
		fmt.Sprintf("Kunci konsep:\n%s\n\n", correctAnswer) +
		fmt.Sprintf("Pada tahap: %s, %s ", hint.Level, hint.FollowupRole) +
		"Tepat 1 kalimat. Jangan berikan jawaban langsung."
}
