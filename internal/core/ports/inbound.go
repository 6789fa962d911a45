package ports

import (
	"context"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// MessageHandler turns one inbound text into one reply. It never fails: errors become apologies.
type MessageHandler interface {
	HandleMessage(ctx context.Context, userID, text string) string
}

// InboundProcessor handles a queued message end to end, including delivery.
type InboundProcessor interface {
	Process(ctx context.Context, msg domain.InboundMessage) error
}

// CodeRetriever runs the classification lookup path.
type CodeRetriever interface {
	RetrieveCodes(ctx context.Context, query string) []domain.CodeCandidate
}

// PublicationRetriever runs the publication path.
type PublicationRetriever interface {
	RetrievePublications(ctx context.Context, query string) (domain.PublicationResult, error)
}

// PublicationIngestor loads a publication file into the document store.
type PublicationIngestor interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.Document, error)
}
