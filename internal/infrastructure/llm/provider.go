package llm

import (
	"log/slog"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/ports"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm/gemini"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm/ollama"
	"github.com/muhshi/demakai-bot/internal/infrastructure/llm/openai"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

type Config struct {
	BaseURL     string
	Model       string
	APIKey      string
	GeminiKeys  []string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// DetectProvider picks the chat provider from the configured base URL.
func DetectProvider(baseURL string) Provider {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "generativelanguage.googleapis.com"):
		return ProviderGemini
	case strings.Contains(u, "openai.com"), strings.Contains(u, "groq"):
		return ProviderOpenAI
	default:
		return ProviderOllama
	}
}

// New returns the chat model for cfg. Ollama reuses the given local client.
func New(cfg Config, local *ollama.Client, executor *resilience.Executor, logger *slog.Logger) (ports.ChatModel, Provider) {
	provider := DetectProvider(cfg.BaseURL)
	switch provider {
	case ProviderGemini:
		keys := cfg.GeminiKeys
		if len(keys) == 0 && cfg.APIKey != "" {
			keys = []string{cfg.APIKey}
		}
		return gemini.New(gemini.Config{
			BaseURL:     cfg.BaseURL,
			APIKeys:     keys,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		}, logger), provider
	case ProviderOpenAI:
		return openai.New(openai.Config{
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Timeout:     cfg.Timeout,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			MaxTokens:   cfg.MaxTokens,
		}, executor), provider
	default:
		return local, provider
	}
}
