package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/muhshi/demakai-bot/internal/core/lexicon"
)

// ExtractKeywords lowercases q, splits on whitespace and keeps the first non-stopword
// tokens that are long enough.
func ExtractKeywords(lex *lexicon.Lexicon, q string) []string {
	limit := lex.Limits.MaxKeywords
	keywords := make([]string, 0, limit)
	for _, word := range strings.Fields(strings.ToLower(q)) {
		if utf8.RuneCountInString(word) < lex.Limits.MinKeywordLen || lex.IsStopword(word) {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == limit {
			break
		}
	}
	return keywords
}

// ExpandLexical adds synonym variants to the keywords of q for text search.
func ExpandLexical(lex *lexicon.Lexicon, q string) string {
	keywords := ExtractKeywords(lex, q)
	seen := make(map[string]struct{}, len(keywords)*3)
	terms := make([]string, 0, len(keywords)*3)
	add := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		terms = append(terms, term)
	}
	for _, kw := range keywords {
		add(kw)
	}
	for _, kw := range keywords {
		for _, variant := range lex.Synonyms(kw) {
			add(variant)
		}
	}
	if len(terms) == 0 {
		return q
	}
	return strings.Join(terms, " ")
}

// ExpandVector builds a bag-of-words query anchored to the statistics domain.
func ExpandVector(lex *lexicon.Lexicon, q string) string {
	lower := strings.ToLower(strings.TrimSpace(q))
	keywords := ExtractKeywords(lex, lower)

	var b strings.Builder
	b.WriteString(strings.Join(keywords, " "))
	b.WriteString(" ")
	b.WriteString(lex.VectorAnchor)
	for _, pack := range lex.TopicPacks() {
		if strings.Contains(lower, pack.Topic) || containsString(keywords, pack.Topic) {
			b.WriteString(" ")
			b.WriteString(pack.Keywords)
		}
	}
	if len(keywords) <= lex.Limits.BoosterMaxKeywords {
		b.WriteString(" ")
		b.WriteString(lex.VectorBooster)
	}
	return strings.TrimSpace(b.String())
}

func containsString(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
