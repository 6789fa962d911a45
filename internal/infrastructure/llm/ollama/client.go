package ollama

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/httpjson"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

type Options struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type Config struct {
	BaseURL      string
	ChatModel    string
	EmbedModel   string
	ChatTimeout  time.Duration
	EmbedTimeout time.Duration
	Options      Options
	Warmup       bool
}

type Client struct {
	chatHTTP      *httpjson.Client
	embedHTTP     *httpjson.Client
	tagsHTTP      *httpjson.Client
	chatModel     string
	embedModel    string
	options       Options
	warmup        bool
	chatExecutor  *resilience.Executor
	embedExecutor *resilience.Executor
	logger        *slog.Logger
}

func New(cfg Config, chatExecutor, embedExecutor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.ChatTimeout <= 0 {
		cfg.ChatTimeout = 240 * time.Second
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		chatHTTP:      httpjson.New("ollama", cfg.BaseURL, cfg.ChatTimeout),
		embedHTTP:     httpjson.New("ollama", cfg.BaseURL, cfg.EmbedTimeout),
		tagsHTTP:      httpjson.New("ollama", cfg.BaseURL, 5*time.Second),
		chatModel:     cfg.ChatModel,
		embedModel:    cfg.EmbedModel,
		options:       cfg.Options,
		warmup:        cfg.Warmup,
		chatExecutor:  chatExecutor,
		embedExecutor: embedExecutor,
		logger:        logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  Options       `json:"options"`
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if c.warmup {
		c.warmupModel(ctx)
	}

	payload := chatRequest{
		Model:    c.chatModel,
		Messages: toMessages(req),
		Stream:   false,
		Options:  c.options,
	}
	answer, err := resilience.Do(ctx, c.chatExecutor, "ollama_chat", func(ctx context.Context) (string, error) {
		var response struct {
			Message chatMessage `json:"message"`
		}
		if err := c.chatHTTP.PostJSON(ctx, "/api/chat", payload, &response, "chat"); err != nil {
			return "", err
		}
		return strings.TrimSpace(response.Message.Content), nil
	}, httpjson.Classify)
	if err != nil {
		return "", httpjson.WrapTemporaryIfNeeded("ollama chat", err)
	}
	return answer, nil
}

// warmupModel asks for a single token so the model is resident before the real call.
func (c *Client) warmupModel(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	payload := map[string]any{
		"model":   c.chatModel,
		"prompt":  "ok",
		"stream":  false,
		"options": map[string]int{"num_predict": 1},
	}
	if err := c.chatHTTP.PostJSON(ctx, "/api/generate", payload, nil, "warmup"); err != nil {
		c.logger.Debug("ollama_warmup_failed", "model", c.chatModel, "error", err)
	}
}

// Embed returns the embedding of an already normalized text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model":  c.embedModel,
		"prompt": text,
	}
	vector, err := resilience.Do(ctx, c.embedExecutor, "ollama_embed", func(ctx context.Context) ([]float32, error) {
		var response struct {
			Embedding []float32 `json:"embedding"`
		}
		if err := c.embedHTTP.PostJSON(ctx, "/api/embeddings", request, &response, "embed"); err != nil {
			return nil, err
		}
		if len(response.Embedding) == 0 {
			return nil, &httpjson.StatusError{Service: "ollama", Operation: "embed", StatusCode: 502, Status: "502 Bad Gateway", Body: "invalid response: empty embedding"}
		}
		return response.Embedding, nil
	}, httpjson.Classify)
	if err != nil {
		return nil, httpjson.WrapTemporaryIfNeeded("ollama embed", err)
	}
	return vector, nil
}

// Models lists the names of the locally available models.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	var response struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.tagsHTTP.GetJSON(ctx, "/api/tags", &response, "tags"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(response.Models))
	for _, m := range response.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) ChatModelName() string  { return c.chatModel }
func (c *Client) EmbedModelName() string { return c.embedModel }

func toMessages(req domain.ChatRequest) []chatMessage {
	entries := req.Messages()
	out := make([]chatMessage, 0, len(entries))
	for _, e := range entries {
		out = append(out, chatMessage{Role: string(e.Role), Content: e.Content})
	}
	return out
}
