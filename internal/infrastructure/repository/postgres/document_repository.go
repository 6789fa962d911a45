package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// SaveDocument writes the document row and all its chunks in one transaction.
func (r *DocumentRepository) SaveDocument(ctx context.Context, doc *domain.Document) error {
	tagsJSON, err := json.Marshal(nonNilTags(doc.Tags))
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin document tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO documents (id, title, year, source_type, tags, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, doc.ID, doc.Title, doc.Year, doc.SourceType, tagsJSON, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	for i, chunk := range doc.Chunks {
		var embedding any
		if len(chunk.Embedding) > 0 {
			embedding = pgvector.NewVector(chunk.Embedding)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_chunks (document_id, chunk_index, text, embedding)
VALUES ($1,$2,$3,$4)
`, doc.ID, i, chunk.Text, embedding); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document tx: %w", err)
	}
	return nil
}

// ListDocuments returns every document with its chunks in chunk order.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT d.id, d.title, d.year, d.source_type, d.tags, d.created_at, c.text, c.embedding
FROM documents d
LEFT JOIN document_chunks c ON c.document_id = d.id
ORDER BY d.created_at, d.id, c.chunk_index
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Document, 0)
	for rows.Next() {
		var (
			doc       domain.Document
			tagsRaw   []byte
			text      sql.NullString
			embedding sql.Null[pgvector.Vector]
		)
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Year, &doc.SourceType, &tagsRaw, &doc.CreatedAt, &text, &embedding); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != doc.ID {
			if err := json.Unmarshal(tagsRaw, &doc.Tags); err != nil {
				return nil, fmt.Errorf("unmarshal tags: %w", err)
			}
			out = append(out, doc)
		}
		if !text.Valid {
			continue
		}
		chunk := domain.DocumentChunk{Text: text.String}
		if embedding.Valid {
			chunk.Embedding = embedding.V.Slice()
		}
		last := &out[len(out)-1]
		last.Chunks = append(last.Chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) ListMetadata(ctx context.Context) ([]domain.DocumentMetadata, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT title, year, source_type, tags
FROM documents
ORDER BY year DESC, title
`)
	if err != nil {
		return nil, fmt.Errorf("list document metadata: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentMetadata, 0)
	for rows.Next() {
		var meta domain.DocumentMetadata
		var tagsRaw []byte
		if err := rows.Scan(&meta.Title, &meta.Year, &meta.SourceType, &tagsRaw); err != nil {
			return nil, fmt.Errorf("scan document metadata: %w", err)
		}
		if err := json.Unmarshal(tagsRaw, &meta.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags: %w", err)
		}
		out = append(out, meta)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document metadata: %w", err)
	}
	return out, nil
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}
