package domain

import "time"

type ClassificationKind string

const (
	KindKBLI ClassificationKind = "KBLI"
	KindKBJI ClassificationKind = "KBJI"
)

// ClassificationEntry is a KBLI (5-digit business) or KBJI (4-digit occupation) code.
type ClassificationEntry struct {
	Code        string             `json:"code" validate:"required,numeric,min=4,max=5"`
	Title       string             `json:"title" validate:"required"`
	Description string             `json:"description"`
	Kind        ClassificationKind `json:"kind" validate:"required,oneof=KBLI KBJI"`
}

type DocumentChunk struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

type Document struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Year       string          `json:"year"`
	SourceType string          `json:"source_type"`
	Tags       []string        `json:"tags,omitempty"`
	Chunks     []DocumentChunk `json:"chunks,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

type DocumentMetadata struct {
	Title      string   `json:"title"`
	Year       string   `json:"year"`
	SourceType string   `json:"source_type"`
	Tags       []string `json:"tags,omitempty"`
}

// CodeCandidate is a classification hit handed to answer synthesis.
type CodeCandidate struct {
	Code        string             `json:"code"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Kind        ClassificationKind `json:"kind"`
}

// PublicationCandidate is a chunk hit handed to answer synthesis.
type PublicationCandidate struct {
	Title       string  `json:"title"`
	Year        string  `json:"year"`
	SourceType  string  `json:"source_type"`
	Description string  `json:"description"`
	Similarity  float64 `json:"similarity"`
}
