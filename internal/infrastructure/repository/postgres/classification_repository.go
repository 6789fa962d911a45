package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type ClassificationRepository struct {
	db *sql.DB
}

func NewClassificationRepository(db *sql.DB) *ClassificationRepository {
	return &ClassificationRepository{db: db}
}

// SearchLexical ORs the query terms into a 'simple' tsquery and ranks by ts_rank.
func (r *ClassificationRepository) SearchLexical(ctx context.Context, kind domain.ClassificationKind, query string, limit int) ([]domain.ClassificationEntry, error) {
	tsquery := orTSQuery(query)
	if tsquery == "" || limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT code, title, description, kind
FROM classification_codes
WHERE kind = $1
  AND to_tsvector('simple', title || ' ' || description) @@ to_tsquery('simple', $2)
ORDER BY ts_rank(to_tsvector('simple', title || ' ' || description), to_tsquery('simple', $2)) DESC, code
LIMIT $3
`, string(kind), tsquery, limit)
	if err != nil {
		return nil, fmt.Errorf("search %s lexical: %w", kind, err)
	}
	return scanEntries(rows)
}

// SearchKeywords matches any keyword as a case-insensitive substring of title or description.
func (r *ClassificationRepository) SearchKeywords(ctx context.Context, kind domain.ClassificationKind, keywords []string, limit int) ([]domain.ClassificationEntry, error) {
	if len(keywords) == 0 || limit <= 0 {
		return nil, nil
	}
	args := []any{string(kind)}
	clauses := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		args = append(args, "%"+escapeLike(kw)+"%")
		n := "$" + strconv.Itoa(len(args))
		clauses = append(clauses, "title ILIKE "+n+" OR description ILIKE "+n)
	}
	args = append(args, limit)

	query := `
SELECT code, title, description, kind
FROM classification_codes
WHERE kind = $1 AND (` + strings.Join(clauses, " OR ") + `)
ORDER BY code
LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s keywords: %w", kind, err)
	}
	return scanEntries(rows)
}

// UpsertEntries loads reference rows in one transaction and returns how many were written.
func (r *ClassificationRepository) UpsertEntries(ctx context.Context, entries []domain.ClassificationEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO classification_codes (kind, code, title, description, updated_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (kind, code) DO UPDATE
SET title = EXCLUDED.title, description = EXCLUDED.description, updated_at = now()
`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, string(e.Kind), e.Code, e.Title, e.Description); err != nil {
			return 0, fmt.Errorf("upsert %s %s: %w", e.Kind, e.Code, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert tx: %w", err)
	}
	return len(entries), nil
}

func scanEntries(rows *sql.Rows) ([]domain.ClassificationEntry, error) {
	defer rows.Close()
	out := make([]domain.ClassificationEntry, 0)
	for rows.Next() {
		var e domain.ClassificationEntry
		var kind string
		if err := rows.Scan(&e.Code, &e.Title, &e.Description, &kind); err != nil {
			return nil, fmt.Errorf("scan classification entry: %w", err)
		}
		e.Kind = domain.ClassificationKind(kind)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classification entries: %w", err)
	}
	return out, nil
}

// orTSQuery keeps letter/digit runs of the query and joins them with "|".
func orTSQuery(query string) string {
	terms := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return strings.Join(out, " | ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
