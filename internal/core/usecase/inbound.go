package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

type InboundConfig struct {
	MaxMessageLength int
	PartDelay        time.Duration
	ShowResponseTime bool
}

// InboundProcessor runs one queued message through rate limiting, session touch,
// the bot and outbound delivery.
type InboundProcessor struct {
	handler   ports.MessageHandler
	sessions  ports.SessionRepository
	messenger ports.Messenger
	limiter   ports.RateLimiter
	cfg       InboundConfig
	metrics   ports.BotMetrics
	logger    *slog.Logger
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewInboundProcessor(
	handler ports.MessageHandler,
	sessions ports.SessionRepository,
	messenger ports.Messenger,
	limiter ports.RateLimiter,
	cfg InboundConfig,
	metrics ports.BotMetrics,
	logger *slog.Logger,
) *InboundProcessor {
	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = 4000
	}
	if cfg.PartDelay < 0 {
		cfg.PartDelay = 0
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InboundProcessor{
		handler:   handler,
		sessions:  sessions,
		messenger: messenger,
		limiter:   limiter,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
		sleep:     sleepContext,
	}
}

func (p *InboundProcessor) Process(ctx context.Context, msg domain.InboundMessage) (err error) {
	ctx, span := tracer.Start(ctx, "inbound.process")
	defer func() { finishSpan(span, err) }()

	if p.limiter != nil && !p.limiter.Allow(msg.UserID) {
		p.metrics.IncRateLimited()
		p.logger.Warn("rate_limited", "user_id", msg.UserID)
		if err := p.messenger.SendMessage(ctx, msg.UserID, RateLimitedReply); err != nil {
			return fmt.Errorf("send rate limit notice: %w", err)
		}
		return nil
	}

	if err := p.deliver(ctx, msg); err != nil {
		p.logger.Error("process_message_failed", "user_id", msg.UserID, "message_id", msg.ID, "error", err)
		if sendErr := p.messenger.SendMessage(ctx, msg.UserID, WorkerErrorReply); sendErr != nil {
			p.logger.Error("send_error_notice_failed", "user_id", msg.UserID, "error", sendErr)
		}
		return err
	}
	return nil
}

func (p *InboundProcessor) deliver(ctx context.Context, msg domain.InboundMessage) error {
	patch := domain.SessionPatch{PhoneNumber: msg.UserID, LastMessage: msg.Text}
	if err := p.sessions.Upsert(ctx, msg.UserID, patch); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	if err := p.messenger.SendTyping(ctx, msg.UserID); err != nil {
		p.logger.Warn("typing_indicator_failed", "user_id", msg.UserID, "error", err)
	}

	started := time.Now()
	reply := p.handler.HandleMessage(ctx, msg.UserID, msg.Text)
	if p.cfg.ShowResponseTime {
		reply = fmt.Sprintf("%s\n\n⏱️ (Dijawab dalam %.2f detik)", reply, time.Since(started).Seconds())
	}

	parts := SplitMessage(reply, p.cfg.MaxMessageLength)
	for i, part := range parts {
		if err := p.messenger.SendMessage(ctx, msg.UserID, part); err != nil {
			return fmt.Errorf("send reply part %d/%d: %w", i+1, len(parts), err)
		}
		if i < len(parts)-1 {
			if err := p.sleep(ctx, p.cfg.PartDelay); err != nil {
				return err
			}
		}
	}

	if err := p.sessions.IncrementMessageCount(ctx, msg.UserID); err != nil {
		p.logger.Warn("increment_message_count_failed", "user_id", msg.UserID, "error", err)
	}
	p.logger.Info("reply_sent", "user_id", msg.UserID, "parts", len(parts))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
