package lexicon

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type TopicPack struct {
	Topic    string `yaml:"topic"`
	Keywords string `yaml:"keywords"`
}

type Thresholds struct {
	CodeLookup  float64 `yaml:"kbli_kbji"`
	Publication float64 `yaml:"publikasi"`
	Relaxed     float64 `yaml:"relaxed"`
	RelaxGuard  float64 `yaml:"relax_guard"`
}

type Limits struct {
	TextSearch         int `yaml:"text_search"`
	TopKBLI            int `yaml:"kbli"`
	TopKBJI            int `yaml:"kbji"`
	TopPublications    int `yaml:"publikasi"`
	MaxKeywords        int `yaml:"max_keywords"`
	MinKeywordLen      int `yaml:"min_keyword_len"`
	BoosterMaxKeywords int `yaml:"booster_max_keywords"`
	DescriptionRunes   int `yaml:"description_runes"`
}

// Lexicon is the static vocabulary used by query expansion and retrieval.
// A loaded Lexicon is never mutated; reloads build a new value.
type Lexicon struct {
	SynonymTable     map[string][]string `yaml:"synonyms"`
	Topics           []TopicPack         `yaml:"topic_packs"`
	Stopwords        []string            `yaml:"stopwords"`
	ListingPhrases   []string            `yaml:"listing_phrases"`
	GreetingPatterns []string            `yaml:"greeting_patterns"`
	Indicators       map[string]string   `yaml:"mode_indicators"`
	VectorAnchor     string              `yaml:"vector_anchor"`
	VectorBooster    string              `yaml:"vector_booster"`
	Thresholds       Thresholds          `yaml:"thresholds"`
	Limits           Limits              `yaml:"limits"`

	stopwords map[string]struct{}
	greetings []*regexp.Regexp
}

// Default returns the embedded lexicon.
func Default() *Lexicon {
	lex, err := Parse(nil)
	if err != nil {
		panic(fmt.Sprintf("embedded lexicon is invalid: %v", err))
	}
	return lex
}

// Parse decodes override on top of the embedded defaults. Maps are merged key by key,
// lists and scalars present in override replace the default value.
func Parse(override []byte) (*Lexicon, error) {
	lex := &Lexicon{}
	if err := yaml.Unmarshal(defaultYAML, lex); err != nil {
		return nil, fmt.Errorf("decode default lexicon: %w", err)
	}
	if len(override) > 0 {
		if err := yaml.Unmarshal(override, lex); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "decode lexicon", err)
		}
	}
	if err := lex.compile(); err != nil {
		return nil, err
	}
	return lex, nil
}

// Load reads an override file. An empty path yields the defaults.
func Load(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon %s: %w", path, err)
	}
	return Parse(raw)
}

func (l *Lexicon) compile() error {
	if l.Limits.TextSearch <= 0 || l.Limits.MaxKeywords <= 0 {
		return domain.WrapError(domain.ErrInvalidInput, "compile lexicon", errors.New("limits must be positive"))
	}
	l.stopwords = make(map[string]struct{}, len(l.Stopwords))
	for _, w := range l.Stopwords {
		l.stopwords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	l.greetings = l.greetings[:0]
	for _, pattern := range l.GreetingPatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return domain.WrapError(domain.ErrInvalidInput, "compile greeting pattern", err)
		}
		l.greetings = append(l.greetings, re)
	}
	return nil
}

func (l *Lexicon) IsStopword(word string) bool {
	_, ok := l.stopwords[word]
	return ok
}

// Synonyms returns the variants of word, or nil when it has no entry.
func (l *Lexicon) Synonyms(word string) []string {
	return l.SynonymTable[word]
}

func (l *Lexicon) TopicPacks() []TopicPack {
	return l.Topics
}

// IsListingQuery reports whether the lowercased query asks for the catalog.
func (l *Lexicon) IsListingQuery(query string) bool {
	q := strings.ToLower(query)
	for _, phrase := range l.ListingPhrases {
		if strings.Contains(q, phrase) {
			return true
		}
	}
	return false
}

func (l *Lexicon) IsGreeting(text string) bool {
	t := strings.TrimSpace(text)
	for _, re := range l.greetings {
		if re.MatchString(t) {
			return true
		}
	}
	return false
}

func (l *Lexicon) Indicator(mode domain.Mode) string {
	if v, ok := l.Indicators[string(mode)]; ok {
		return v
	}
	return l.Indicators[string(domain.ModeNatural)]
}

// Threshold is the minimum cosine similarity for vector hits in mode.
func (l *Lexicon) Threshold(mode domain.Mode) float64 {
	if mode == domain.ModeCodeLookup {
		return l.Thresholds.CodeLookup
	}
	return l.Thresholds.Publication
}
