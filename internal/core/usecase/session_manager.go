package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

const IdleResetNotice = "✨ Karena sudah 15 menit berlalu, kita kembali ke mode natural ya!!, silakan tanya apa saja.. 😊"

// SessionManager reads sessions and applies the idle auto-reset of lookup modes.
type SessionManager struct {
	repo     ports.SessionRepository
	notifier ports.Notifier
	idle     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

func NewSessionManager(repo ports.SessionRepository, notifier ports.Notifier, idle time.Duration, logger *slog.Logger) *SessionManager {
	if idle <= 0 {
		idle = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		repo:     repo,
		notifier: notifier,
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns the session of userID, or nil when none exists. A lookup mode that has
// been active longer than the idle timeout is reset to natural before returning.
func (m *SessionManager) Get(ctx context.Context, userID string) (*domain.SessionState, error) {
	session, err := m.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.IdleExpired(m.now(), m.idle) {
		return session, nil
	}

	if err := m.repo.ResetMode(ctx, userID); err != nil {
		return nil, fmt.Errorf("reset idle session: %w", err)
	}
	m.logger.Info("session_idle_reset", "user_id", userID, "previous_mode", session.CurrentMode)

	if m.notifier != nil {
		if err := m.notifier.SendMessage(ctx, userID, IdleResetNotice); err != nil {
			m.logger.Warn("idle_notice_failed", "user_id", userID, "error", err)
		}
	}

	reset := *session
	reset.CurrentMode = domain.ModeNatural
	reset.ModeActivatedAt = nil
	reset.LastQuery = nil
	return &reset, nil
}

func (m *SessionManager) SetMode(ctx context.Context, userID string, mode domain.Mode, query *string) error {
	if err := m.repo.SetMode(ctx, userID, mode, query); err != nil {
		return fmt.Errorf("set mode: %w", err)
	}
	return nil
}

func (m *SessionManager) ResetMode(ctx context.Context, userID string) error {
	if err := m.repo.ResetMode(ctx, userID); err != nil {
		return fmt.Errorf("reset mode: %w", err)
	}
	return nil
}
