package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/lexicon"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

var triggerPattern = regexp.MustCompile(`(?i)^#(kbli|kbji|publikasi)\s*(.*)`)

type BotDependencies struct {
	Sessions  *SessionManager
	Retrieval *RetrievalEngine
	Synth     *Synthesizer
	Stats     ports.StatsReader
	Embedder  ports.Embedder
	Health    ports.HealthChecker
	Lexicon   *lexicon.Store
	Metrics   ports.BotMetrics
	Logger    *slog.Logger
}

// Bot routes every inbound text through the session mode state machine.
type Bot struct {
	sessions  *SessionManager
	retrieval *RetrievalEngine
	synth     *Synthesizer
	stats     ports.StatsReader
	embedder  ports.Embedder
	health    ports.HealthChecker
	lexicon   *lexicon.Store
	metrics   ports.BotMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewBot(deps BotDependencies) *Bot {
	if deps.Lexicon == nil {
		deps.Lexicon = lexicon.NewStore(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Bot{
		sessions:  deps.Sessions,
		retrieval: deps.Retrieval,
		synth:     deps.Synth,
		stats:     deps.Stats,
		embedder:  deps.Embedder,
		health:    deps.Health,
		lexicon:   deps.Lexicon,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}

// HandleMessage never fails; unexpected errors are turned into an apology.
func (b *Bot) HandleMessage(ctx context.Context, userID, text string) string {
	started := b.now()
	ctx, span := tracer.Start(ctx, "bot.handle_message")
	reply, mode, err := b.route(ctx, userID, text)
	span.SetAttributes(modeAttr(mode))
	finishSpan(span, err)
	if err != nil {
		b.logger.Error("handle_message_failed", "user_id", userID, "mode", mode, "error", err)
		b.metrics.ObserveMessage(mode, "error", time.Since(started))
		return apologyFor(err)
	}
	b.metrics.ObserveMessage(mode, "ok", time.Since(started))
	return reply
}

func (b *Bot) route(ctx context.Context, userID, text string) (string, domain.Mode, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return EmptyMessageReply, domain.ModeNatural, nil
	}
	lex := b.lexicon.Current()

	if strings.EqualFold(trimmed, "/home") {
		if err := b.sessions.ResetMode(ctx, userID); err != nil {
			return "", domain.ModeNatural, err
		}
		return homeBanner(lex.Indicator(domain.ModeNatural)), domain.ModeNatural, nil
	}

	if strings.HasPrefix(trimmed, "/") {
		reply, err := b.handleCommand(ctx, userID, trimmed)
		return reply, domain.ModeNatural, err
	}

	if match := triggerPattern.FindStringSubmatch(trimmed); match != nil {
		return b.handleTrigger(ctx, lex, userID, strings.ToLower(match[1]), strings.TrimSpace(match[2]))
	}

	session, err := b.sessions.Get(ctx, userID)
	if err != nil {
		return "", domain.ModeNatural, err
	}
	current := domain.ModeNatural
	var lastQuery *string
	if session != nil {
		current = session.CurrentMode
		lastQuery = session.LastQuery
	}

	if !current.IsLookup() {
		answer := b.synth.NaturalChat(ctx, userID, trimmed)
		return withFooter(lex.Indicator(domain.ModeNatural), answer, domain.ModeNatural), domain.ModeNatural, nil
	}

	if strings.HasPrefix(trimmed, "#") {
		query := strings.TrimSpace(strings.TrimPrefix(trimmed, "#"))
		if query == "" {
			return activationMessage(current, lex.Indicator(current)), current, nil
		}
		answer, err := b.answerLookup(ctx, userID, current, query)
		if err != nil {
			return "", current, err
		}
		// lastQuery keeps the message as typed, "#" included; only retrieval sees the stripped query.
		if err := b.sessions.SetMode(ctx, userID, current, &trimmed); err != nil {
			return "", current, err
		}
		return withFooter(lex.Indicator(current), answer, current), current, nil
	}

	// Plain text inside a lookup mode is a follow-up: chat naturally, keep the mode.
	answer := b.synth.NaturalChat(ctx, userID, trimmed)
	if err := b.sessions.SetMode(ctx, userID, current, lastQuery); err != nil {
		return "", current, err
	}
	return withFooter(lex.Indicator(current), answer, current), current, nil
}

func (b *Bot) handleTrigger(ctx context.Context, lex *lexicon.Lexicon, userID, trigger, query string) (string, domain.Mode, error) {
	mode := domain.ModePublication
	if trigger == "kbli" || trigger == "kbji" {
		mode = domain.ModeCodeLookup
	}

	if query == "" {
		if err := b.sessions.SetMode(ctx, userID, mode, nil); err != nil {
			return "", mode, err
		}
		return activationMessage(mode, lex.Indicator(mode)), mode, nil
	}

	if err := b.sessions.SetMode(ctx, userID, mode, &query); err != nil {
		return "", mode, err
	}
	b.logger.Info("mode_switched", "user_id", userID, "mode", mode)

	answer, err := b.answerLookup(ctx, userID, mode, query)
	if err != nil {
		return "", mode, err
	}
	return withFooter(lex.Indicator(mode), answer, mode), mode, nil
}

func (b *Bot) answerLookup(ctx context.Context, userID string, mode domain.Mode, query string) (string, error) {
	switch mode {
	case domain.ModeCodeLookup:
		candidates := b.retrieval.RetrieveCodes(ctx, query)
		return b.synth.SynthesizeCodes(ctx, userID, query, candidates), nil
	case domain.ModePublication:
		result, err := b.retrieval.RetrievePublications(ctx, query)
		if err != nil {
			return "", fmt.Errorf("retrieve publications: %w", err)
		}
		if result.IsListing {
			return result.Catalog, nil
		}
		return b.synth.SynthesizePublications(ctx, userID, query, result.Candidates), nil
	default:
		return "", domain.WrapError(domain.ErrInvalidInput, "answer lookup", fmt.Errorf("mode %q has no retrieval", mode))
	}
}

type noopMetrics struct{}

func (noopMetrics) ObserveMessage(domain.Mode, string, time.Duration) {}
func (noopMetrics) ObserveCandidates(domain.Mode, int)                {}
func (noopMetrics) IncFallback(domain.Mode)                           {}
func (noopMetrics) IncRateLimited()                                   {}
