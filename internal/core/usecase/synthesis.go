package usecase

import (
	"context"
	"log/slog"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/lexicon"
	"github.com/muhshi/demakai-bot/internal/core/ports"
)

const naturalFailureReply = "Maaf, ada kendala teknis. Coba lagi ya!"

type SynthesisConfig struct {
	ContextWindow int
	HistoryMax    int
}

// Synthesizer turns candidates into a closed answer through the LLM and keeps the
// conversation history. Only successful LLM answers are persisted.
type Synthesizer struct {
	llm     ports.ChatModel
	history ports.HistoryStore
	lexicon *lexicon.Store
	cfg     SynthesisConfig
	metrics ports.BotMetrics
	logger  *slog.Logger
}

func NewSynthesizer(
	llm ports.ChatModel,
	history ports.HistoryStore,
	lex *lexicon.Store,
	cfg SynthesisConfig,
	metrics ports.BotMetrics,
	logger *slog.Logger,
) *Synthesizer {
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = 5
	}
	if cfg.HistoryMax <= 0 {
		cfg.HistoryMax = 10
	}
	if lex == nil {
		lex = lexicon.NewStore(nil)
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		llm:     llm,
		history: history,
		lexicon: lex,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

func (s *Synthesizer) SynthesizeCodes(ctx context.Context, userID, query string, candidates []domain.CodeCandidate) string {
	answer, err := s.ask(ctx, userID, query, systemPromptFor(domain.ModeCodeLookup), codeUserPrompt(query, candidates))
	if err != nil {
		s.logger.Warn("llm_failed_using_fallback", "mode", domain.ModeCodeLookup, "error", err)
		s.metrics.IncFallback(domain.ModeCodeLookup)
		return RenderCodeFallback(candidates)
	}
	return answer
}

func (s *Synthesizer) SynthesizePublications(ctx context.Context, userID, query string, candidates []domain.PublicationCandidate) string {
	answer, err := s.ask(ctx, userID, query, systemPromptFor(domain.ModePublication), publicationUserPrompt(query, candidates))
	if err != nil {
		s.logger.Warn("llm_failed_using_fallback", "mode", domain.ModePublication, "error", err)
		s.metrics.IncFallback(domain.ModePublication)
		return RenderPublicationFallback(candidates)
	}
	return answer
}

// NaturalChat answers free text. The first greeting of a user gets the welcome message
// without an LLM call.
func (s *Synthesizer) NaturalChat(ctx context.Context, userID, text string) string {
	history, err := s.history.Recent(ctx, userID, s.cfg.ContextWindow)
	if err != nil {
		s.logger.Warn("history_read_failed", "user_id", userID, "error", err)
	} else if len(history) == 0 && s.lexicon.Current().IsGreeting(text) {
		return WelcomeMessage
	}

	answer, err := s.complete(ctx, userID, text, naturalSystemPrompt, text, history)
	if err != nil {
		s.logger.Warn("natural_chat_failed", "user_id", userID, "error", err)
		return naturalFailureReply
	}
	return answer
}

func (s *Synthesizer) ask(ctx context.Context, userID, query, system, prompt string) (string, error) {
	history, err := s.history.Recent(ctx, userID, s.cfg.ContextWindow)
	if err != nil {
		s.logger.Warn("history_read_failed", "user_id", userID, "error", err)
		history = nil
	}
	return s.complete(ctx, userID, query, system, prompt, history)
}

func (s *Synthesizer) complete(
	ctx context.Context,
	userID, query, system, prompt string,
	history []domain.HistoryEntry,
) (string, error) {
	llmCtx, span := tracer.Start(ctx, "synthesis.llm_chat")
	answer, err := s.llm.Chat(llmCtx, domain.ChatRequest{
		SystemPrompt: system,
		History:      history,
		UserPrompt:   prompt,
	})
	finishSpan(span, err)
	if err != nil {
		return "", err
	}

	turn := []domain.HistoryEntry{
		{Role: domain.RoleUser, Content: query},
		{Role: domain.RoleAssistant, Content: answer},
	}
	if err := s.history.AppendTurn(ctx, userID, turn, s.cfg.HistoryMax); err != nil {
		s.logger.Warn("history_append_failed", "user_id", userID, "error", err)
	}
	return answer, nil
}

// ClearHistory wipes the conversation history of a user.
func (s *Synthesizer) ClearHistory(ctx context.Context, userID string) error {
	return s.history.Clear(ctx, userID)
}
