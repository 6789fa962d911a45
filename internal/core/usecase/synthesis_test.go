package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

func newSynth(chat *chatFake, hist *historyFake) *Synthesizer {
	return NewSynthesizer(chat, hist, nil, SynthesisConfig{ContextWindow: 5, HistoryMax: 10}, nil, discardLogger())
}

func TestSynthesizeCodesPersistsTurnOnSuccess(t *testing.T) {
	chat := &chatFake{reply: "KBLI 82190"}
	hist := newHistoryFake()
	s := newSynth(chat, hist)

	candidates := []domain.CodeCandidate{
		{Code: "82190", Title: "Fotokopi", Description: "jasa fotokopi", Kind: domain.KindKBLI},
		{Code: "4132", Title: "Operator Mesin Fotokopi", Kind: domain.KindKBJI},
	}
	got := s.SynthesizeCodes(context.Background(), "u1", "usaha fotokopi", candidates)
	if got != "KBLI 82190" {
		t.Fatalf("unexpected answer %q", got)
	}
	if hist.count("u1") != 2 {
		t.Fatalf("expected user+assistant turn, got %d entries", hist.count("u1"))
	}
	req := chat.requests[0]
	if req.SystemPrompt != codeLookupSystemPrompt {
		t.Fatalf("code lookup system prompt not used")
	}
	if !strings.Contains(req.UserPrompt, "KBLI yang relevan:\n1. [82190] Fotokopi\n   jasa fotokopi") ||
		!strings.Contains(req.UserPrompt, "KBJI yang relevan:\n1. [4132] Operator Mesin Fotokopi") {
		t.Fatalf("unexpected user prompt:\n%s", req.UserPrompt)
	}
	if hist.entries["u1"][0].Content != "usaha fotokopi" {
		t.Fatalf("raw query must be stored as the user turn")
	}
}

func TestSynthesizeCodesFallbackOnLLMFailure(t *testing.T) {
	hist := newHistoryFake()
	s := newSynth(&chatFake{err: errBoom}, hist)

	candidates := []domain.CodeCandidate{
		{Code: "82190", Title: "Fotokopi", Description: strings.Repeat("a", 300), Kind: domain.KindKBLI},
		{Code: "2341", Title: "Guru", Kind: domain.KindKBJI},
	}
	got := s.SynthesizeCodes(context.Background(), "u1", "fotokopi", candidates)

	want := "Berikut kemungkinan yang paling relevan:\n\n" +
		"KBLI (usaha/kegiatan):\n1. [82190] Fotokopi\n   " + strings.Repeat("a", 180) + "\n\n" +
		"KBJI (pekerjaan/okupasi):\n1. [2341] Guru\n   -\n\n" +
		"💡 Gunakan kata kunci lain bila hasil kurang sesuai."
	if got != want {
		t.Fatalf("fallback mismatch:\n%q\nwant\n%q", got, want)
	}
	if hist.count("u1") != 0 {
		t.Fatalf("fallback answers must not be persisted")
	}
}

func TestCodeFallbackIsDeterministicAndCappedPerKind(t *testing.T) {
	var candidates []domain.CodeCandidate
	for i := 0; i < 5; i++ {
		candidates = append(candidates,
			domain.CodeCandidate{Code: fmt.Sprintf("5630%d", i), Title: fmt.Sprintf("Kafe %d", i), Kind: domain.KindKBLI},
			domain.CodeCandidate{Code: fmt.Sprintf("512%d", i), Title: fmt.Sprintf("Barista %d", i), Kind: domain.KindKBJI},
		)
	}

	first := RenderCodeFallback(candidates)
	if second := RenderCodeFallback(candidates); first != second {
		t.Fatalf("fallback must be deterministic:\n%q\n%q", first, second)
	}
	for _, want := range []string{"3. [56302] Kafe 2", "3. [5122] Barista 2"} {
		if !strings.Contains(first, want) {
			t.Fatalf("fallback missing %q:\n%s", want, first)
		}
	}
	for _, unwanted := range []string{"4. [", "56303", "5123"} {
		if strings.Contains(first, unwanted) {
			t.Fatalf("fallback must list at most three codes per kind, found %q:\n%s", unwanted, first)
		}
	}
}

func TestSynthesizeEmptyCandidatesUsesNotFoundPrompt(t *testing.T) {
	chat := &chatFake{reply: "tidak ketemu"}
	s := newSynth(chat, newHistoryFake())

	s.SynthesizePublications(context.Background(), "u1", "apbd", nil)
	if !strings.Contains(chat.requests[0].UserPrompt, "Tidak ada data yang ditemukan.") {
		t.Fatalf("expected not-found prompt, got %q", chat.requests[0].UserPrompt)
	}

	failing := newSynth(&chatFake{err: errBoom}, newHistoryFake())
	got := failing.SynthesizePublications(context.Background(), "u1", "apbd", nil)
	if got != notFoundSentence+"\n\n"+publicationFallbackHint {
		t.Fatalf("unexpected empty fallback %q", got)
	}
}

func TestPublicationFallbackFormatsYearAndLimit(t *testing.T) {
	candidates := make([]domain.PublicationCandidate, 0, 7)
	for i := 0; i < 7; i++ {
		candidates = append(candidates, domain.PublicationCandidate{Title: "Pub", Description: "isi"})
	}
	candidates[0].Year = "2023"

	got := RenderPublicationFallback(candidates)
	if !strings.HasPrefix(got, "📚 Publikasi terkait yang berhasil ditemukan:\n\n1. Pub (2023)\n   isi\n\n2. Pub (n/a)") {
		t.Fatalf("unexpected fallback prefix %q", got)
	}
	if strings.Contains(got, "6. Pub") {
		t.Fatalf("fallback must list at most five publications")
	}
	if !strings.HasSuffix(got, publicationFallbackHint) {
		t.Fatalf("missing closing hint")
	}
}

func TestNaturalChatWelcomeOnFirstGreeting(t *testing.T) {
	chat := &chatFake{reply: "halo juga"}
	hist := newHistoryFake()
	s := newSynth(chat, hist)

	if got := s.NaturalChat(context.Background(), "u1", "Halo"); got != WelcomeMessage {
		t.Fatalf("expected welcome message, got %q", got)
	}
	if len(chat.requests) != 0 {
		t.Fatalf("welcome must not call the LLM")
	}

	hist.entries["u1"] = []domain.HistoryEntry{{Role: domain.RoleUser, Content: "x"}}
	if got := s.NaturalChat(context.Background(), "u1", "Halo"); got != "halo juga" {
		t.Fatalf("greeting with history must go to the LLM, got %q", got)
	}
	if chat.requests[0].SystemPrompt != naturalSystemPrompt || len(chat.requests[0].History) != 1 {
		t.Fatalf("unexpected natural request %+v", chat.requests[0])
	}
}

func TestNaturalChatFailureReply(t *testing.T) {
	s := newSynth(&chatFake{err: errBoom}, newHistoryFake())
	if got := s.NaturalChat(context.Background(), "u1", "berapa penduduk demak"); got != naturalFailureReply {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestHistoryIsBoundedAndWindowed(t *testing.T) {
	chat := &chatFake{reply: "ok"}
	hist := newHistoryFake()
	s := newSynth(chat, hist)

	for i := 0; i < 8; i++ {
		s.NaturalChat(context.Background(), "u1", "pertanyaan lanjutan")
	}
	if hist.count("u1") != 10 {
		t.Fatalf("history must be trimmed to 10, got %d", hist.count("u1"))
	}
	if last := chat.requests[len(chat.requests)-1]; len(last.History) != 5 {
		t.Fatalf("LLM context must carry 5 entries, got %d", len(last.History))
	}
}
