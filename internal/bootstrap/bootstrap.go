package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/muhshi/demakai-bot/internal/config"
	"github.com/muhshi/demakai-bot/internal/core/lexicon"
	"github.com/muhshi/demakai-bot/internal/core/ports"
	"github.com/muhshi/demakai-bot/internal/core/usecase"
	"github.com/muhshi/demakai-bot/internal/infrastructure/chunking"
	"github.com/muhshi/demakai-bot/internal/infrastructure/embedding"
	"github.com/muhshi/demakai-bot/internal/infrastructure/extractor"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm/ollama"
	"github.com/muhshi/demakai-bot/internal/infrastructure/messaging/whatsapp"
	"github.com/muhshi/demakai-bot/internal/infrastructure/queue/nats"
	"github.com/muhshi/demakai-bot/internal/infrastructure/ratelimit"
	"github.com/muhshi/demakai-bot/internal/infrastructure/repository/postgres"
	"github.com/muhshi/demakai-bot/internal/infrastructure/repository/redis"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
	"github.com/muhshi/demakai-bot/internal/observability/logging"
	"github.com/muhshi/demakai-bot/internal/observability/metrics"
	"github.com/muhshi/demakai-bot/internal/observability/tracing"
)

// Options select the process-specific parts of the graph.
type Options struct {
	Service string
	// Registerer receives bot and embedding metrics when set.
	Registerer prometheus.Registerer
	// Queue connects to NATS.
	Queue bool
	// Messaging creates the WhatsApp gateway client and uses it for idle notices.
	Messaging bool
	// FileOnlyLogs keeps logs off stdout, for processes that own the terminal.
	FileOnlyLogs bool
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Sessions  ports.SessionRepository
	History   ports.HistoryStore
	Stats     ports.StatsReader
	Codes     *postgres.ClassificationRepository
	Documents *postgres.DocumentRepository
	Embedding *embedding.Service
	Lexicon   *lexicon.Store

	Retrieval *usecase.RetrievalEngine
	Bot       *usecase.Bot
	Ingest    *usecase.IngestPublicationUseCase

	Queue     *nats.Queue
	WhatsApp  *whatsapp.Client
	Inbound   *usecase.InboundProcessor
	Executor  *resilience.Executor
	LLMServed llm.Provider

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (app *App, err error) {
	if opts.Service == "" {
		opts.Service = "demakai"
	}
	logger := logging.New(opts.Service, logging.Options{
		Level:    cfg.LogLevel,
		File:     cfg.LogFile,
		FileOnly: opts.FileOnlyLogs,
	})
	slog.SetDefault(logger)

	app = &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	shutdownTracing, err := tracing.Init(ctx, opts.Service, tracing.Config{
		Enabled:     cfg.OTelEnabled,
		Endpoint:    cfg.OTelEndpoint,
		Insecure:    cfg.OTelInsecure,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	app.closers = append(app.closers, func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracing_shutdown_failed", "error", err)
		}
	})

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.closers = append(app.closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	history, err := app.openHistory(ctx, db)
	if err != nil {
		return nil, err
	}

	lex, err := lexicon.Load(cfg.LexiconPath)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	app.Lexicon = lexicon.NewStore(lex)

	var (
		botMetrics   ports.BotMetrics
		embedMetrics embedding.Metrics
		observer     resilience.Observer
	)
	if opts.Registerer != nil {
		m := metrics.NewBotMetrics(opts.Registerer, opts.Service)
		botMetrics, embedMetrics, observer = m, m, m
	}

	base := resilience.DefaultConfig()
	app.Executor = resilience.NewExecutor(base, logger).WithObserver(observer)
	chatExecutor := resilience.NewExecutor(resilience.ChatPolicy(base), logger).WithObserver(observer)
	embedExecutor := resilience.NewExecutor(resilience.EmbeddingPolicy(base), logger).WithObserver(observer)

	local := ollama.New(ollama.Config{
		BaseURL:      cfg.OllamaURL,
		ChatModel:    cfg.OllamaChatModel,
		EmbedModel:   cfg.OllamaEmbedModel,
		ChatTimeout:  cfg.LLMTimeout,
		EmbedTimeout: cfg.EmbedTimeout,
		Options: ollama.Options{
			Temperature: cfg.LLMTemperature,
			TopP:        cfg.LLMTopP,
			NumPredict:  cfg.LLMMaxTokens,
		},
		Warmup: cfg.OllamaWarmup,
	}, chatExecutor, embedExecutor, logger)

	chat, provider := llm.New(llm.Config{
		BaseURL:     cfg.LLMBaseURL,
		Model:       cfg.LLMModelName(),
		APIKey:      cfg.LLMAPIKey,
		GeminiKeys:  cfg.GeminiAPIKeys,
		Timeout:     cfg.LLMTimeout,
		Temperature: cfg.LLMTemperature,
		TopP:        cfg.LLMTopP,
		MaxTokens:   cfg.LLMMaxTokens,
	}, local, chatExecutor, logger)
	app.LLMServed = provider

	app.Embedding = embedding.NewService(local, embedding.Config{
		Dimension:   cfg.EmbeddingDimension,
		CacheSize:   cfg.EmbedCacheSize,
		CacheTTL:    cfg.EmbedCacheTTL,
		BatchSize:   cfg.EmbedBatchSize,
		BatchDelay:  cfg.EmbedBatchDelay,
		EmbedModel:  cfg.OllamaEmbedModel,
		LLMModel:    cfg.LLMModelName(),
		LLMProvider: string(provider),
	}, embedMetrics, logger)

	sessionRepo := postgres.NewSessionRepository(db)
	app.Sessions = sessionRepo
	app.History = history
	app.Stats = postgres.NewStatsRepository(db)
	app.Codes = postgres.NewClassificationRepository(db)
	app.Documents = postgres.NewDocumentRepository(db)

	var notifier ports.Notifier
	if opts.Messaging {
		app.WhatsApp = whatsapp.NewClient(whatsapp.Config{
			BaseURL:   cfg.WhatsAppURL,
			SessionID: cfg.WhatsAppSessionID,
			Timeout:   cfg.WhatsAppTimeout,
		}, app.Executor, logger)
		notifier = app.WhatsApp
	}

	app.Retrieval = usecase.NewRetrievalEngine(app.Codes, app.Documents, app.Embedding, app.Lexicon, botMetrics, logger)
	synth := usecase.NewSynthesizer(chat, history, app.Lexicon, usecase.SynthesisConfig{
		ContextWindow: cfg.LLMContextWindow,
		HistoryMax:    cfg.HistoryMax,
	}, botMetrics, logger)
	app.Bot = usecase.NewBot(usecase.BotDependencies{
		Sessions:  usecase.NewSessionManager(sessionRepo, notifier, cfg.SessionIdleTimeout, logger),
		Retrieval: app.Retrieval,
		Synth:     synth,
		Stats:     app.Stats,
		Embedder:  app.Embedding,
		Health:    app.Embedding,
		Lexicon:   app.Lexicon,
		Metrics:   botMetrics,
		Logger:    logger,
	})
	app.Ingest = usecase.NewIngestPublicationUseCase(
		app.Documents,
		extractor.New(),
		chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		app.Embedding,
	)

	if opts.Queue {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			HandlerTimeout:     cfg.NATSHandlerTimeout,
			ResilienceExecutor: resilience.NewExecutor(resilience.PublishPolicy(base), logger).WithObserver(observer),
			Logger:             logger,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.Queue = queue
		app.closers = append(app.closers, queue.Close)
	}

	if app.WhatsApp != nil {
		app.Inbound = usecase.NewInboundProcessor(
			app.Bot,
			sessionRepo,
			app.WhatsApp,
			ratelimit.NewPerUser(cfg.UserRateLimitMessages, cfg.UserRateLimitWindow),
			usecase.InboundConfig{
				MaxMessageLength: cfg.MaxMessageLength,
				PartDelay:        cfg.MessagePartDelay,
				ShowResponseTime: cfg.ShowResponseTime,
			},
			botMetrics,
			logger,
		)
	}

	logger.Info("bootstrap_complete",
		"llm_provider", provider,
		"history_backend", cfg.HistoryBackend,
		"queue", opts.Queue,
		"messaging", opts.Messaging,
	)
	return app, nil
}

func (a *App) openHistory(ctx context.Context, db *sql.DB) (ports.HistoryStore, error) {
	if a.Config.HistoryBackend != "redis" {
		return postgres.NewHistoryRepository(db), nil
	}
	client, err := redis.Open(ctx, a.Config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return redis.NewHistoryStore(client, a.Config.HistoryIdle), nil
}

// WatchLexicon hot-reloads the override lexicon until ctx is done. Without
// LEXICON_PATH it returns at once.
func (a *App) WatchLexicon(ctx context.Context) {
	if a.Config.LexiconPath == "" {
		return
	}
	go func() {
		if err := lexicon.Watch(ctx, a.Config.LexiconPath, a.Lexicon, a.Logger); err != nil {
			a.Logger.Warn("lexicon_watch_stopped", "error", err)
		}
	}()
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
