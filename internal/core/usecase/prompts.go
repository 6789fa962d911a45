package usecase

import (
	"fmt"
	"strings"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

const (
	promptCodesPerKind    = 3
	promptPublications    = 5
	fallbackCodeDescRunes = 180
	fallbackPubDescRunes  = 200
)

const codeLookupSystemPrompt = `Kamu asisten yang membantu mencari kode KBLI dan KBJI.

KBLI = Klasifikasi Baku Lapangan Usaha Indonesia (5 digit) - untuk usaha/kegiatan
KBJI = Klasifikasi Baku Jabatan Indonesia (4 digit) - untuk pekerjaan/okupasi

Tugas kamu:
- Evaluasi hasil pencarian KBLI/KBJI yang diberikan.
- Jika ada yang kurang tepat, koreksi dan perbaiki deskripsinya.
- Jika ada kekurangan, tambahkan konteks singkat yang relevan.
- Jawaban harus **tertutup**, ringkas, tidak perlu menanyakan ulang.
- Format tetap seperti ini:

Berikut kemungkinan yang paling relevan:

KBLI (usaha/kegiatan):
1. [kode] Nama
   Deskripsi singkat

2. [kode] Nama
   Deskripsi singkat

KBJI (pekerjaan/okupasi):
1. [kode] Nama
   Deskripsi singkat

Singkat, jelas, to the point. Maksimal 3 KBLI dan 3 KBJI dan **jangan bertanya balik kepada pengguna.**`

const publicationSystemPrompt = `Kamu asisten yang membantu menjelaskan data dan publikasi statistik.
Jawab SELALU dalam bahasa Indonesia, ringkas, dan tertutup.

Tugas kamu:
- Evaluasi semua daftar publikasi dan chunk yang diberikan.
- Koreksi, tambahkan penjelasan, atau lengkapi informasi agar bermanfaat.

Jika tidak ada dokumen relevan, BERIKAN penjelasan konsep umum yang akurat
(asal-usul istilah, definisi, contoh), jangan meminta pengguna mengulang.
Sebutkan sumber jika bisa (tanpa link pun tidak apa-apa).`

const naturalSystemPrompt = `Kamu adalah DemakAI 🤖 — asisten AI dari Badan Pusat Statistik (BPS) Kabupaten Demak.

Tugasmu:
• Menjawab pertanyaan pengguna dengan ramah dan jelas, terutama yang berkaitan dengan Klasifikasi usaha (KBLI) dan jabatan (KBJI) dan Publikasi
• Menjelaskan konsep data, statistik, dan ekonomi daerah secara singkat.
• Tidak mengarang data. Jika topiknya bukan statistik, jawab natural seperti teman.

Gunakan bahasa Indonesia yang santai tapi profesional, seolah kamu petugas BPS yang membantu masyarakat memahami data.`

func systemPromptFor(mode domain.Mode) string {
	switch mode {
	case domain.ModeCodeLookup:
		return codeLookupSystemPrompt
	case domain.ModePublication:
		return publicationSystemPrompt
	default:
		return naturalSystemPrompt
	}
}

func emptyContextPrompt(query string) string {
	return fmt.Sprintf("Pertanyaan: %s\n\nTidak ada data yang ditemukan. Beritahu user dengan ramah dan sarankan coba kata kunci lain.", query)
}

func codeUserPrompt(query string, candidates []domain.CodeCandidate) string {
	if len(candidates) == 0 {
		return emptyContextPrompt(query)
	}
	var ctx strings.Builder
	writeCodeSection(&ctx, "KBLI yang relevan:\n", byKind(candidates, domain.KindKBLI), -1)
	writeCodeSection(&ctx, "KBJI yang relevan:\n", byKind(candidates, domain.KindKBJI), -1)

	return fmt.Sprintf(
		"Pertanyaan: %s\n\nData hasil pencarian:\n%s\n\nTolong berikan jawaban yang sudah diperbaiki dan disempurnakan.\nGunakan format seperti contoh dan **jangan bertanya balik**.",
		query, ctx.String(),
	)
}

func publicationUserPrompt(query string, candidates []domain.PublicationCandidate) string {
	if len(candidates) == 0 {
		return emptyContextPrompt(query)
	}
	if len(candidates) > promptPublications {
		candidates = candidates[:promptPublications]
	}
	entries := make([]string, 0, len(candidates))
	for i, c := range candidates {
		entries = append(entries, fmt.Sprintf("%d. %s (%s)\n   %s", i+1, c.Title, c.Year, c.Description))
	}
	return fmt.Sprintf(
		"Pertanyaan: %s\n\nDaftar publikasi hasil pencarian:\n%s\n\nJelaskan secara singkat dan korektif, tambahkan konteks yang relevan bila perlu.\nJawaban harus **tertutup**, langsung, dan tidak memancing percakapan baru.",
		query, strings.Join(entries, "\n\n"),
	)
}

// byKind keeps the first promptCodesPerKind candidates of kind.
func byKind(candidates []domain.CodeCandidate, kind domain.ClassificationKind) []domain.CodeCandidate {
	out := make([]domain.CodeCandidate, 0, promptCodesPerKind)
	for _, c := range candidates {
		if c.Kind != kind {
			continue
		}
		out = append(out, c)
		if len(out) == promptCodesPerKind {
			break
		}
	}
	return out
}

// writeCodeSection renders "n. [code] title\n   desc\n\n" entries. descRunes < 0 keeps the
// description as is, an empty description renders as "-" only when truncating.
func writeCodeSection(b *strings.Builder, header string, items []domain.CodeCandidate, descRunes int) {
	if len(items) == 0 {
		return
	}
	b.WriteString(header)
	for i, item := range items {
		desc := item.Description
		if descRunes >= 0 {
			desc = truncateRunes(desc, descRunes)
			if desc == "" {
				desc = "-"
			}
		}
		fmt.Fprintf(b, "%d. [%s] %s\n   %s\n\n", i+1, item.Code, item.Title, desc)
	}
}
