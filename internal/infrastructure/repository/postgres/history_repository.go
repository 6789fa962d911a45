package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Recent returns up to limit entries in chronological order.
func (r *HistoryRepository) Recent(ctx context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT role, content
FROM session_messages
WHERE user_id = $1
ORDER BY id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.HistoryEntry, 0, limit)
	for rows.Next() {
		var e domain.HistoryEntry
		var role string
		if err := rows.Scan(&role, &e.Content); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Role = domain.Role(role)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	// Returned in descending order from SQL; reverse to keep chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendTurn inserts entries and trims the user's history to max inside one transaction.
func (r *HistoryRepository) AppendTurn(ctx context.Context, userID string, entries []domain.HistoryEntry, max int) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin history tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_messages (user_id, role, content, created_at)
VALUES ($1,$2,$3,$4)
`, userID, string(e.Role), e.Content, now); err != nil {
			return fmt.Errorf("append history: %w", err)
		}
	}

	if max > 0 {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM session_messages
WHERE user_id = $1 AND id NOT IN (
	SELECT id FROM session_messages WHERE user_id = $1 ORDER BY id DESC LIMIT $2
)
`, userID, max); err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit history tx: %w", err)
	}
	return nil
}

func (r *HistoryRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM session_messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// ClearIdle drops the histories of users whose newest entry is older than before.
func (r *HistoryRepository) ClearIdle(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
DELETE FROM session_messages
WHERE user_id IN (
	SELECT user_id FROM session_messages GROUP BY user_id HAVING MAX(created_at) < $1
)
`, before)
	if err != nil {
		return 0, fmt.Errorf("clear idle history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
