package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// IngestPublicationUseCase extracts, chunks and embeds a publication file and stores it.
type IngestPublicationUseCase struct {
	repo      ports.DocumentWriter
	extractor ports.TextExtractor
	chunker   ports.Chunker
	embedder  ports.Embedder
}

func NewIngestPublicationUseCase(
	repo ports.DocumentWriter,
	extractor ports.TextExtractor,
	chunker ports.Chunker,
	embedder ports.Embedder,
) *IngestPublicationUseCase {
	return &IngestPublicationUseCase{
		repo:      repo,
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
	}
}

func (uc *IngestPublicationUseCase) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.Document, error) {
	if strings.TrimSpace(req.Path) == "" || strings.TrimSpace(req.Title) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest publication", errors.New("path and title are required"))
	}
	if err := validate.Struct(req); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest publication", err)
	}

	text, err := uc.extractText(ctx, req.Path)
	if err != nil {
		return nil, err
	}

	chunks, err := uc.chunk(text)
	if err != nil {
		return nil, err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	doc := &domain.Document{
		ID:         uuid.NewString(),
		Title:      strings.TrimSpace(req.Title),
		Year:       strings.TrimSpace(req.Year),
		SourceType: strings.TrimSpace(req.SourceType),
		Tags:       req.Tags,
		Chunks:     make([]domain.DocumentChunk, len(chunks)),
		CreatedAt:  time.Now().UTC(),
	}
	for i, chunk := range chunks {
		doc.Chunks[i] = domain.DocumentChunk{Text: chunk, Embedding: vectors[i]}
	}

	if err := uc.repo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("save document: %w", err)
	}
	return doc, nil
}

func (uc *IngestPublicationUseCase) extractText(ctx context.Context, path string) (string, error) {
	text, err := uc.extractor.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

func (uc *IngestPublicationUseCase) chunk(text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *IngestPublicationUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.EmbedBatch(ctx, chunks, domain.ModePublication)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}
