package ports

import (
	"context"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// SessionRepository persists per-user session state.
type SessionRepository interface {
	Get(ctx context.Context, userID string) (*domain.SessionState, error)
	Upsert(ctx context.Context, userID string, patch domain.SessionPatch) error
	SetMode(ctx context.Context, userID string, mode domain.Mode, query *string) error
	ResetMode(ctx context.Context, userID string) error
	IncrementMessageCount(ctx context.Context, userID string) error
	CountActive(ctx context.Context, since time.Time) (int, error)
	DeleteInactive(ctx context.Context, before time.Time) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// HistoryStore keeps the bounded conversation history of a user.
type HistoryStore interface {
	Recent(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error)
	// AppendTurn appends entries and trims to the newest max entries atomically.
	AppendTurn(ctx context.Context, userID string, entries []domain.HistoryEntry, max int) error
	Clear(ctx context.Context, userID string) error
	ClearIdle(ctx context.Context, before time.Time) (int64, error)
}

// StatsReader aggregates store-wide counters.
type StatsReader interface {
	Stats(ctx context.Context, activeSince time.Time) (domain.StoreStats, error)
}

// ClassificationStore searches the KBLI/KBJI reference tables.
type ClassificationStore interface {
	SearchLexical(ctx context.Context, kind domain.ClassificationKind, query string, limit int) ([]domain.ClassificationEntry, error)
	SearchKeywords(ctx context.Context, kind domain.ClassificationKind, keywords []string, limit int) ([]domain.ClassificationEntry, error)
}

// ClassificationWriter loads reference data.
type ClassificationWriter interface {
	UpsertEntries(ctx context.Context, entries []domain.ClassificationEntry) (int, error)
}

// DocumentStore reads publications and their chunks.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	ListMetadata(ctx context.Context) ([]domain.DocumentMetadata, error)
}

// DocumentWriter persists ingested publications.
type DocumentWriter interface {
	SaveDocument(ctx context.Context, doc *domain.Document) error
}

// Embedder turns text into vectors. A nil vector with nil error means no embedding applies.
type Embedder interface {
	Embed(ctx context.Context, text string, mode domain.Mode) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, mode domain.Mode) ([][]float32, error)
	CacheStats() domain.CacheStats
}

// ChatModel is an LLM chat endpoint.
type ChatModel interface {
	Chat(ctx context.Context, req domain.ChatRequest) (string, error)
}

// HealthChecker reports model availability.
type HealthChecker interface {
	Health(ctx context.Context) domain.HealthReport
}

// Notifier pushes an unsolicited message to a user.
type Notifier interface {
	SendMessage(ctx context.Context, userID, text string) error
}

// Messenger is the outbound side of the messaging transport.
type Messenger interface {
	Notifier
	SendTyping(ctx context.Context, userID string) error
}

// InboundQueue carries normalized messages from the webhook to workers.
type InboundQueue interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error
	SubscribeInbound(ctx context.Context, handler func(context.Context, domain.InboundMessage) error) error
}

// RateLimiter decides whether a user may send another message now.
type RateLimiter interface {
	Allow(userID string) bool
}

// TextExtractor extracts plain text from a source file.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Chunker splits text into embeddable chunks.
type Chunker interface {
	Split(text string) []string
}

// BotMetrics records message handling outcomes.
type BotMetrics interface {
	ObserveMessage(mode domain.Mode, outcome string, duration time.Duration)
	ObserveCandidates(mode domain.Mode, count int)
	IncFallback(mode domain.Mode)
	IncRateLimited()
}
