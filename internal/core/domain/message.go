package domain

import "time"

// InboundMessage is the canonical shape of a user message after transport normalization.
type InboundMessage struct {
	ID         string    `json:"id" validate:"required"`
	UserID     string    `json:"user_id" validate:"required"`
	Text       string    `json:"text" validate:"required"`
	ReceivedAt time.Time `json:"received_at"`
}

type HealthReport struct {
	Available            bool     `json:"available"`
	EmbeddingModel       string   `json:"embedding_model"`
	EmbeddingModelLoaded bool     `json:"embedding_model_loaded"`
	LLMModel             string   `json:"llm_model"`
	LLMModelLoaded       bool     `json:"llm_model_loaded"`
	LLMProvider          string   `json:"llm_provider"`
	Models               []string `json:"models,omitempty"`
	Error                string   `json:"error,omitempty"`
}

type CacheStats struct {
	Size    int     `json:"size"`
	MaxSize int     `json:"max_size"`
	Usage   float64 `json:"usage_percent"`
}

// ChatRequest is one LLM call: system prompt, prior turns, then the user prompt.
type ChatRequest struct {
	SystemPrompt string
	History      []HistoryEntry
	UserPrompt   string
}

// PublicationResult is either a rendered catalog (listing intent) or ranked candidates.
type PublicationResult struct {
	Catalog    string
	IsListing  bool
	Candidates []PublicationCandidate
}

// IngestRequest describes a publication file to load.
type IngestRequest struct {
	Path       string   `validate:"required"`
	Title      string   `validate:"required"`
	Year       string   `validate:"omitempty,numeric,len=4"`
	SourceType string
	Tags       []string
}

// Messages flattens the request into system, history and user entries in that order.
func (r ChatRequest) Messages() []HistoryEntry {
	out := make([]HistoryEntry, 0, len(r.History)+2)
	out = append(out, HistoryEntry{Role: RoleSystem, Content: r.SystemPrompt})
	for _, h := range r.History {
		role := h.Role
		if role == "" {
			role = RoleUser
		}
		out = append(out, HistoryEntry{Role: role, Content: h.Content})
	}
	return append(out, HistoryEntry{Role: RoleUser, Content: r.UserPrompt})
}
