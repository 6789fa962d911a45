package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/httpjson"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Client talks to any OpenAI-compatible chat completions endpoint (OpenAI, Groq).
type Client struct {
	http     *httpjson.Client
	cfg      Config
	executor *resilience.Executor
}

func New(cfg Config, executor *resilience.Executor) *Client {
	client := httpjson.New("openai", cfg.BaseURL, cfg.Timeout)
	if cfg.APIKey != "" {
		client = client.WithHeader("Authorization", "Bearer "+cfg.APIKey)
	}
	return &Client{http: client, cfg: cfg, executor: executor}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	entries := req.Messages()
	payload := completionRequest{
		Model:       c.cfg.Model,
		Messages:    make([]message, 0, len(entries)),
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
		MaxTokens:   c.cfg.MaxTokens,
	}
	for _, e := range entries {
		payload.Messages = append(payload.Messages, message{Role: string(e.Role), Content: e.Content})
	}

	answer, err := resilience.Do(ctx, c.executor, "openai_chat", func(ctx context.Context) (string, error) {
		var out completionResponse
		if err := c.http.PostJSON(ctx, "/chat/completions", payload, &out, "chat_completions"); err != nil {
			return "", err
		}
		if len(out.Choices) == 0 {
			return "", fmt.Errorf("openai chat: response has no choices")
		}
		return strings.TrimSpace(out.Choices[0].Message.Content), nil
	}, httpjson.Classify)
	if err != nil {
		return "", httpjson.WrapTemporaryIfNeeded("openai chat", err)
	}
	return answer, nil
}

func (c *Client) Model() string { return c.cfg.Model }
