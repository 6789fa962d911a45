package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/httpjson"
)

var ErrNoAPIKey = errors.New("gemini: no api key configured")

type Config struct {
	BaseURL     string
	APIKeys     []string
	Model       string
	Timeout     time.Duration
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Client calls generateContent, moving to the next key when one is out of quota.
type Client struct {
	keys   []*httpjson.Client
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	keys := make([]*httpjson.Client, 0, len(cfg.APIKeys))
	for _, key := range cfg.APIKeys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys = append(keys, httpjson.New("gemini", cfg.BaseURL, cfg.Timeout).WithHeader("x-goog-api-key", key))
	}
	return &Client{keys: keys, cfg: cfg, logger: logger}
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (c *Client) Chat(ctx context.Context, req domain.ChatRequest) (string, error) {
	if len(c.keys) == 0 {
		return "", domain.WrapError(domain.ErrUnauthorized, "gemini chat", ErrNoAPIKey)
	}
	payload := buildRequest(req, c.cfg)
	path := "/models/" + c.cfg.Model + ":generateContent"

	var lastErr error
	for i, client := range c.keys {
		var out generateResponse
		err := client.PostJSON(ctx, path, payload, &out, "generate_content")
		if err == nil {
			return extractText(out)
		}
		lastErr = err
		if !isQuotaStatus(httpjson.StatusCode(err)) {
			return "", httpjson.WrapTemporaryIfNeeded("gemini chat", err)
		}
		c.logger.Warn("gemini_key_rotated", "key_index", i, "status", httpjson.StatusCode(err))
	}
	return "", httpjson.WrapTemporaryIfNeeded("gemini chat", lastErr)
}

func (c *Client) Model() string { return c.cfg.Model }

func isQuotaStatus(code int) bool {
	return code == http.StatusPaymentRequired || code == http.StatusForbidden || code == http.StatusTooManyRequests
}

func buildRequest(req domain.ChatRequest, cfg Config) generateRequest {
	out := generateRequest{
		GenerationConfig: generationConfig{
			Temperature:     cfg.Temperature,
			TopP:            cfg.TopP,
			MaxOutputTokens: cfg.MaxTokens,
		},
	}
	for _, e := range req.Messages() {
		switch e.Role {
		case domain.RoleSystem:
			out.SystemInstruction = &content{Parts: []part{{Text: e.Content}}}
		case domain.RoleAssistant:
			out.Contents = append(out.Contents, content{Role: "model", Parts: []part{{Text: e.Content}}})
		default:
			out.Contents = append(out.Contents, content{Role: "user", Parts: []part{{Text: e.Content}}})
		}
	}
	return out
}

func extractText(resp generateResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini chat: response has no candidates")
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return strings.TrimSpace(b.String()), nil
}
