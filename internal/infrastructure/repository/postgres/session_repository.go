package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Get returns nil without error when the user has no session yet.
func (r *SessionRepository) Get(ctx context.Context, userID string) (*domain.SessionState, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT user_id, phone_number, current_mode, mode_activated_at, last_query, last_message,
       message_count, first_interaction, last_interaction, is_blocked
FROM sessions
WHERE user_id = $1
`, userID)

	var (
		s           domain.SessionState
		mode        string
		activatedAt sql.NullTime
		lastQuery   sql.NullString
	)
	err := row.Scan(&s.UserID, &s.PhoneNumber, &mode, &activatedAt, &lastQuery, &s.LastMessage,
		&s.MessageCount, &s.FirstInteraction, &s.LastInteraction, &s.IsBlocked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	s.CurrentMode = domain.ParseMode(mode)
	if activatedAt.Valid && s.CurrentMode != domain.ModeNatural {
		t := activatedAt.Time
		s.ModeActivatedAt = &t
	}
	if lastQuery.Valid {
		q := lastQuery.String
		s.LastQuery = &q
	}
	return &s, nil
}

// Upsert creates the session on first contact and refreshes the profile fields after.
func (r *SessionRepository) Upsert(ctx context.Context, userID string, patch domain.SessionPatch) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (user_id, phone_number, current_mode, last_message, message_count, first_interaction, last_interaction)
VALUES ($1, $2, 'natural', $3, 0, $4, $4)
ON CONFLICT (user_id) DO UPDATE
SET phone_number = EXCLUDED.phone_number, last_message = EXCLUDED.last_message, last_interaction = EXCLUDED.last_interaction
`, userID, patch.PhoneNumber, patch.LastMessage, r.now())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) SetMode(ctx context.Context, userID string, mode domain.Mode, query *string) error {
	if mode == domain.ModeNatural {
		return r.ResetMode(ctx, userID)
	}
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (user_id, current_mode, mode_activated_at, last_query, first_interaction, last_interaction)
VALUES ($1, $2, $3, $4, $3, $3)
ON CONFLICT (user_id) DO UPDATE
SET current_mode = EXCLUDED.current_mode, mode_activated_at = EXCLUDED.mode_activated_at,
    last_query = EXCLUDED.last_query, last_interaction = EXCLUDED.last_interaction
`, userID, string(mode), now, nullableQuery(query))
	if err != nil {
		return fmt.Errorf("set session mode: %w", err)
	}
	return nil
}

func (r *SessionRepository) ResetMode(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET current_mode = 'natural', mode_activated_at = NULL, last_query = NULL, last_interaction = $2
WHERE user_id = $1
`, userID, r.now())
	if err != nil {
		return fmt.Errorf("reset session mode: %w", err)
	}
	return nil
}

func (r *SessionRepository) IncrementMessageCount(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET message_count = message_count + 1, last_interaction = $2
WHERE user_id = $1
`, userID, r.now())
	if err != nil {
		return fmt.Errorf("increment message count: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.WrapError(domain.ErrNotFound, "increment message count", fmt.Errorf("session %s", userID))
	}
	return nil
}

func (r *SessionRepository) CountActive(ctx context.Context, since time.Time) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE last_interaction >= $1 AND is_blocked = false`, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active sessions: %w", err)
	}
	return n, nil
}

// DeleteInactive never removes blocked sessions, so a block outlives retention.
func (r *SessionRepository) DeleteInactive(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE last_interaction < $1 AND is_blocked = false`, before)
	if err != nil {
		return 0, fmt.Errorf("delete inactive sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (r *SessionRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions`)
	if err != nil {
		return 0, fmt.Errorf("delete sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func nullableQuery(q *string) any {
	if q == nil {
		return nil
	}
	return *q
}
