package chunking

import (
	"strings"
	"unicode"
)

// Splitter cuts text into overlapping windows of ChunkSize runes, preferring to end a
// window on a paragraph, sentence or word boundary in its last quarter.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 900
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap}
}

func (s *Splitter) Split(text string) []string {
	runes := []rune(normalizeSpacing(text))
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	for start := 0; start < len(runes); {
		end := min(start+s.ChunkSize, len(runes))
		if end < len(runes) {
			end = boundary(runes, start+s.ChunkSize*3/4, end)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// boundary returns the best cut in runes[from:to], or to when there is none.
func boundary(runes []rune, from, to int) int {
	best := -1
	rank := 0
	for i := to - 1; i >= from; i-- {
		r := runes[i]
		switch {
		case r == '\n' && i > 0 && runes[i-1] == '\n':
			return i + 1
		case (r == '.' || r == '?' || r == '!') && rank < 2 && i+1 < len(runes) && unicode.IsSpace(runes[i+1]):
			best, rank = i+1, 2
		case unicode.IsSpace(r) && rank < 1:
			best, rank = i+1, 1
		}
	}
	if best < 0 {
		return to
	}
	return best
}

// normalizeSpacing collapses runs of spaces and more than two newlines, which PDF text is full of.
func normalizeSpacing(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var b strings.Builder
	blank := 0
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteByte('\n')
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}
