package domain

import "strings"

// Mode is the conversational context a session is in.
type Mode string

const (
	ModeNatural     Mode = "natural"
	ModeCodeLookup  Mode = "kbli_kbji"
	ModePublication Mode = "publikasi"
)

// ParseMode maps a persisted value to a Mode. Unknown values become ModeNatural.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeCodeLookup:
		return ModeCodeLookup
	case ModePublication:
		return ModePublication
	default:
		return ModeNatural
	}
}

// IsLookup reports whether the mode runs retrieval on trigger messages.
func (m Mode) IsLookup() bool {
	return m == ModeCodeLookup || m == ModePublication
}

func (m Mode) String() string {
	return string(m)
}
