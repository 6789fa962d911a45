package lexicon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

func TestDefaultLexiconValues(t *testing.T) {
	lex := Default()

	if lex.Thresholds.CodeLookup != 0.45 || lex.Thresholds.Publication != 0.1 {
		t.Fatalf("unexpected thresholds: %+v", lex.Thresholds)
	}
	if lex.Limits.TextSearch != 20 || lex.Limits.TopKBLI != 5 || lex.Limits.TopKBJI != 5 || lex.Limits.TopPublications != 10 {
		t.Fatalf("unexpected limits: %+v", lex.Limits)
	}
	if got := lex.Synonyms("toko"); len(got) != 5 || got[1] != "warung" {
		t.Fatalf("unexpected synonyms for toko: %v", got)
	}
	if lex.Synonyms("tidakada") != nil {
		t.Fatalf("expected nil synonyms for unknown word")
	}
	if !lex.IsStopword("saya") || lex.IsStopword("fotokopi") {
		t.Fatalf("stopword lookup mismatch")
	}
	if packs := lex.TopicPacks(); len(packs) != 9 || packs[0].Topic != "pdrb" {
		t.Fatalf("unexpected topic packs: %+v", packs)
	}
	if lex.Indicator(domain.ModeCodeLookup) != "📋" || lex.Indicator(domain.ModePublication) != "📚" || lex.Indicator(domain.ModeNatural) != "💬" {
		t.Fatalf("unexpected indicators: %v", lex.Indicators)
	}
}

func TestIsGreeting(t *testing.T) {
	lex := Default()
	cases := map[string]bool{
		"Halo kak":           true,
		"selamat pagi":       true,
		"Good evening":       true,
		"p":                  true,
		"assalamualaikum wr": true,
		"pdrb demak 2023":    false,
		"saya mau tanya":     false,
	}
	for text, want := range cases {
		if got := lex.IsGreeting(text); got != want {
			t.Fatalf("IsGreeting(%q)=%v want %v", text, got, want)
		}
	}
}

func TestIsListingQuery(t *testing.T) {
	lex := Default()
	if !lex.IsListingQuery("Apa saja publikasi yang ada?") {
		t.Fatalf("expected listing intent")
	}
	if lex.IsListingQuery("data kemiskinan 2023") {
		t.Fatalf("unexpected listing intent")
	}
}

func TestParseOverrideMergesMapsAndReplacesLists(t *testing.T) {
	lex, err := Parse([]byte("synonyms:\n  sawah: [sawah, ladang]\nstopwords: [foo]\nthresholds:\n  publikasi: 0.3\n"))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := lex.Synonyms("sawah"); len(got) != 2 {
		t.Fatalf("override synonym missing: %v", got)
	}
	if lex.Synonyms("toko") == nil {
		t.Fatalf("default synonyms should survive override")
	}
	if !lex.IsStopword("foo") || lex.IsStopword("saya") {
		t.Fatalf("stopwords should be replaced by override")
	}
	if lex.Thresholds.Publication != 0.3 || lex.Thresholds.CodeLookup != 0.45 {
		t.Fatalf("unexpected thresholds: %+v", lex.Thresholds)
	}
}

func TestParseRejectsInvalidInput(t *testing.T) {
	if _, err := Parse([]byte("greeting_patterns: ['(']\n")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad regexp, got %v", err)
	}
	if _, err := Parse([]byte("stopwords: {a: b}\n")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for bad yaml, got %v", err)
	}
}

func TestStoreReplaceIgnoresNil(t *testing.T) {
	store := NewStore(nil)
	first := store.Current()
	store.Replace(nil)
	if store.Current() != first {
		t.Fatalf("nil replace must keep current lexicon")
	}
}

func TestWatchReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lexicon.yaml")
	if err := os.WriteFile(path, []byte("stopwords: [satu]\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	initial, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	store := NewStore(initial)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, store, nil) }()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := os.WriteFile(path, []byte("stopwords: [dua]\n"), 0o600); err != nil {
			t.Fatalf("rewrite: %v", err)
		}
		if store.Current().IsStopword("dua") {
			cancel()
			if err := <-done; err != nil {
				t.Fatalf("Watch() error = %v", err)
			}
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("lexicon was not reloaded")
}
