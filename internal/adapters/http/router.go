package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/muhshi/demakai-bot/internal/config"
	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/core/ports"
	"github.com/muhshi/demakai-bot/internal/core/usecase"
	"github.com/muhshi/demakai-bot/internal/infrastructure/messaging/whatsapp"
	"github.com/muhshi/demakai-bot/internal/observability/metrics"
)

const (
	maxBodyBytes    = 1 << 20
	backpressureMax = 250 * time.Millisecond
)

// InboundPublisher queues normalized webhook messages for the worker.
type InboundPublisher interface {
	PublishInbound(ctx context.Context, msg domain.InboundMessage) error
}

type Router struct {
	cfg       config.Config
	publisher InboundPublisher
	chat      ports.MessageHandler
	health    ports.HealthChecker
	metrics   *metrics.HTTPServerMetrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewRouter(
	cfg config.Config,
	publisher InboundPublisher,
	chat ports.MessageHandler,
	health ports.HealthChecker,
	httpMetrics *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:       cfg,
		publisher: publisher,
		chat:      chat,
		health:    health,
		metrics:   httpMetrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /health", rt.modelHealth)
	mux.HandleFunc("POST /webhook", rt.webhook)
	mux.HandleFunc("POST /v1/chat", rt.chatMessage)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureMax)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) modelHealth(w http.ResponseWriter, r *http.Request) {
	if rt.health == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "health checker not configured"})
		return
	}
	report := rt.health.Health(r.Context())
	status := http.StatusOK
	if !report.Available {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (rt *Router) webhook(w http.ResponseWriter, r *http.Request) {
	var event whatsapp.WebhookEvent
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&event); err != nil {
		rt.recordWebhook("invalid")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid payload"})
		return
	}

	msg, disposition, err := whatsapp.NormalizeWebhook(&event, rt.now())
	if err != nil {
		rt.logger.Warn("webhook_rejected", "request_id", requestIDFromContext(r.Context()), "error", err)
		rt.recordWebhook("invalid")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": webhookErrorText(err)})
		return
	}
	if disposition != whatsapp.Received {
		rt.recordWebhook(string(disposition))
		writeJSON(w, http.StatusOK, map[string]string{"status": string(disposition)})
		return
	}

	if err := rt.publisher.PublishInbound(r.Context(), msg); err != nil {
		rt.logger.Error("webhook_publish_failed", "user_id", msg.UserID, "message_id", msg.ID, "error", err)
		if rt.metrics != nil {
			rt.metrics.IncPublishFailure()
		}
		status := mapErrorToHTTPStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, map[string]string{"error": "Internal server error"})
		return
	}

	rt.recordWebhook(string(whatsapp.Received))
	rt.logger.Info("webhook_received", "user_id", msg.UserID, "message_id", msg.ID)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(whatsapp.Received)})
}

type chatRequest struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

type chatResponse struct {
	Reply string   `json:"reply"`
	Parts []string `json:"parts"`
}

// chatMessage runs the bot synchronously. It backs integrations that are not WhatsApp.
func (rt *Router) chatMessage(w http.ResponseWriter, r *http.Request) {
	if rt.cfg.APIChatKey != "" && !isAuthorizedBearerHeader(r.Header.Get("Authorization"), rt.cfg.APIChatKey) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if err := validateChatRequest(req); err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	reply := rt.chat.HandleMessage(r.Context(), strings.TrimSpace(req.UserID), req.Message)
	writeJSON(w, http.StatusOK, chatResponse{
		Reply: reply,
		Parts: usecase.SplitMessage(reply, rt.cfg.MaxMessageLength),
	})
}

func validateChatRequest(req chatRequest) error {
	if strings.TrimSpace(req.UserID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("user_id is required"))
	}
	if strings.TrimSpace(req.Message) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "chat", errors.New("message is required"))
	}
	return nil
}

func (rt *Router) recordWebhook(disposition string) {
	if rt.metrics != nil {
		rt.metrics.RecordWebhook(disposition)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
