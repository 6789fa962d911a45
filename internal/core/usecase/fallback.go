package usecase

import (
	"fmt"
	"strings"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

const (
	codeFallbackHint        = "💡 Gunakan kata kunci lain bila hasil kurang sesuai."
	publicationFallbackHint = "💡 Jika data belum muncul lengkap, coba kata kunci lain."
	notFoundSentence        = "Maaf, belum ada data yang cocok dengan pertanyaan kamu."
)

// RenderCodeFallback is the deterministic answer used when the LLM is unavailable.
func RenderCodeFallback(candidates []domain.CodeCandidate) string {
	kbli := byKind(candidates, domain.KindKBLI)
	kbji := byKind(candidates, domain.KindKBJI)
	if len(kbli) == 0 && len(kbji) == 0 {
		return notFoundSentence + "\n\n" + codeFallbackHint
	}

	var b strings.Builder
	b.WriteString("Berikut kemungkinan yang paling relevan:\n\n")
	writeCodeSection(&b, "KBLI (usaha/kegiatan):\n", kbli, fallbackCodeDescRunes)
	writeCodeSection(&b, "KBJI (pekerjaan/okupasi):\n", kbji, fallbackCodeDescRunes)
	b.WriteString(codeFallbackHint)
	return strings.TrimSpace(b.String())
}

func RenderPublicationFallback(candidates []domain.PublicationCandidate) string {
	if len(candidates) == 0 {
		return notFoundSentence + "\n\n" + publicationFallbackHint
	}
	if len(candidates) > promptPublications {
		candidates = candidates[:promptPublications]
	}

	var b strings.Builder
	b.WriteString("📚 Publikasi terkait yang berhasil ditemukan:\n\n")
	for i, c := range candidates {
		year := c.Year
		if year == "" {
			year = "n/a"
		}
		desc := truncateRunes(c.Description, fallbackPubDescRunes)
		if desc == "" {
			desc = "-"
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n   %s\n\n", i+1, c.Title, year, desc)
	}
	b.WriteString(publicationFallbackHint)
	return strings.TrimSpace(b.String())
}
