package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// Upstream is the raw embedding endpoint plus its model listing.
type Upstream interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Models(ctx context.Context) ([]string, error)
}

// Metrics receives cache and upstream outcomes. Optional.
type Metrics interface {
	ObserveEmbeddingCache(hit bool)
	IncUpstreamError(component string)
}

type Config struct {
	Dimension     int
	CacheSize     int
	CacheTTL      time.Duration
	MaxInputRunes int
	BatchSize     int
	BatchDelay    time.Duration
	EmbedModel    string
	LLMModel      string
	LLMProvider   string
}

func (c Config) withDefaults() Config {
	if c.Dimension <= 0 {
		c.Dimension = 1024
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 1000
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 24 * time.Hour
	}
	if c.MaxInputRunes <= 0 {
		c.MaxInputRunes = 2000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 5
	}
	if c.BatchDelay < 0 {
		c.BatchDelay = 0
	}
	if c.LLMProvider == "" {
		c.LLMProvider = "ollama"
	}
	return c
}

// Service embeds normalized text through a cache. It implements ports.Embedder and ports.HealthChecker.
type Service struct {
	upstream Upstream
	cache    *vectorCache
	cfg      Config
	metrics  Metrics
	logger   *slog.Logger
	sleep    func(context.Context, time.Duration) error
}

func NewService(upstream Upstream, cfg Config, metrics Metrics, logger *slog.Logger) *Service {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		upstream: upstream,
		cache:    newVectorCache(cfg.CacheSize, cfg.CacheTTL),
		cfg:      cfg,
		metrics:  metrics,
		logger:   logger,
		sleep:    sleepContext,
	}
}

// Normalize lowercases, collapses whitespace and truncates to maxRunes.
func Normalize(text string, maxRunes int) string {
	out := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if maxRunes > 0 {
		if r := []rune(out); len(r) > maxRunes {
			out = string(r[:maxRunes])
		}
	}
	return out
}

// Embed returns nil for code lookup, which never uses vectors.
func (s *Service) Embed(ctx context.Context, text string, mode domain.Mode) ([]float32, error) {
	if mode == domain.ModeCodeLookup {
		return nil, nil
	}
	normalized := Normalize(text, s.cfg.MaxInputRunes)
	if normalized == "" {
		return make([]float32, s.cfg.Dimension), nil
	}

	key := CacheKey(normalized)
	if vec, ok := s.cache.get(key); ok {
		s.observeCache(true)
		return vec, nil
	}
	s.observeCache(false)

	vec, err := s.upstream.Embed(ctx, normalized)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncUpstreamError("embedding")
		}
		return nil, fmt.Errorf("embed text: %w", err)
	}
	s.cache.set(key, vec)
	return vec, nil
}

// EmbedBatch embeds texts in groups, concurrently within a group, pausing between groups.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, mode domain.Mode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if mode == domain.ModeCodeLookup {
		return out, nil
	}

	for start := 0; start < len(texts); start += s.cfg.BatchSize {
		if start > 0 {
			if err := s.sleep(ctx, s.cfg.BatchDelay); err != nil {
				return nil, err
			}
		}
		end := min(start+s.cfg.BatchSize, len(texts))
		errs := make([]error, end-start)

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i], errs[i-start] = s.Embed(ctx, texts[i], mode)
			}(i)
		}
		wg.Wait()

		if err := errors.Join(errs...); err != nil {
			return nil, err
		}
		s.logger.Debug("embedding_batch_done", "done", end, "total", len(texts))
	}
	return out, nil
}

func (s *Service) CacheStats() domain.CacheStats {
	size := s.cache.size()
	return domain.CacheStats{
		Size:    size,
		MaxSize: s.cfg.CacheSize,
		Usage:   float64(size) / float64(s.cfg.CacheSize) * 100,
	}
}

// Health lists local models and reports whether the configured ones are pulled.
func (s *Service) Health(ctx context.Context) domain.HealthReport {
	report := domain.HealthReport{
		EmbeddingModel: s.cfg.EmbedModel,
		LLMModel:       s.cfg.LLMModel,
		LLMProvider:    s.cfg.LLMProvider,
	}
	models, err := s.upstream.Models(ctx)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Available = true
	report.Models = models
	report.EmbeddingModelLoaded = hasModel(models, s.cfg.EmbedModel)
	if s.cfg.LLMProvider == "ollama" {
		report.LLMModelLoaded = hasModel(models, s.cfg.LLMModel)
	} else {
		report.LLMModelLoaded = true
	}
	return report
}

func (s *Service) observeCache(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveEmbeddingCache(hit)
	}
}

// hasModel matches "bge-m3" against "bge-m3:latest".
func hasModel(models []string, want string) bool {
	if want == "" {
		return false
	}
	for _, name := range models {
		if name == want || strings.HasPrefix(name, want+":") {
			return true
		}
	}
	return false
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
