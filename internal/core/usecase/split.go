package usecase

import (
	"strings"
	"unicode/utf8"
)

// SplitMessage breaks text into parts of at most maxLength runes on line boundaries.
// Lines longer than maxLength are cut into fixed-size pieces.
func SplitMessage(text string, maxLength int) []string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return []string{text}
	}

	parts := make([]string, 0, 2)
	var current strings.Builder
	currentLen := 0
	flush := func() {
		if currentLen == 0 {
			return
		}
		if part := strings.TrimSpace(current.String()); part != "" {
			parts = append(parts, part)
		}
		current.Reset()
		currentLen = 0
	}

	for _, line := range strings.Split(text, "\n") {
		lineLen := utf8.RuneCountInString(line)
		if currentLen+lineLen+1 <= maxLength {
			current.WriteString(line)
			current.WriteByte('\n')
			currentLen += lineLen + 1
			continue
		}

		flush()
		if lineLen > maxLength {
			runes := []rune(line)
			for i := 0; i < len(runes); i += maxLength {
				end := min(i+maxLength, len(runes))
				parts = append(parts, string(runes[i:end]))
			}
			continue
		}
		current.WriteString(line)
		current.WriteByte('\n')
		currentLen = lineLen + 1
	}
	flush()
	return parts
}
