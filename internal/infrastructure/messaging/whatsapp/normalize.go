package whatsapp

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

// Disposition is what the webhook endpoint should do with an event.
type Disposition string

const (
	Received          Disposition = "received"
	Ignored           Disposition = "ignored"
	IgnoredOwnMessage Disposition = "ignored_own_message"
)

var (
	ErrInvalidPayload = errors.New("invalid payload")
	ErrNoMessageData  = errors.New("no message data")
	ErrMissingFields  = errors.New("missing from/text")
)

// WebhookEvent is the gateway webhook body. Gateway versions differ in which fields they fill.
type WebhookEvent struct {
	Type    string          `json:"type"`
	Message *WebhookMessage `json:"message,omitempty"`
	Data    *WebhookMessage `json:"data,omitempty"`
}

type WebhookMessage struct {
	ID           string `json:"id,omitempty"`
	FromMe       bool   `json:"fromMe,omitempty"`
	From         string `json:"from,omitempty"`
	RemoteJid    string `json:"remoteJid,omitempty"`
	Text         string `json:"text,omitempty"`
	Body         string `json:"body,omitempty"`
	Conversation string `json:"conversation,omitempty"`
}

// Group chats are not served.
const groupSuffix = "@g.us"

var validate = validator.New(validator.WithRequiredStructEnabled())

// NormalizeWebhook maps a webhook event to a canonical inbound message. A non-nil error
// wraps domain.ErrInvalidInput and means the payload must be rejected.
func NormalizeWebhook(event *WebhookEvent, now time.Time) (domain.InboundMessage, Disposition, error) {
	if event == nil || event.Type == "" {
		return domain.InboundMessage{}, "", domain.WrapError(domain.ErrInvalidInput, "normalize webhook", ErrInvalidPayload)
	}
	if event.Type != "message" {
		return domain.InboundMessage{}, Ignored, nil
	}

	m := event.Message
	if m == nil {
		m = event.Data
	}
	if m == nil {
		return domain.InboundMessage{}, "", domain.WrapError(domain.ErrInvalidInput, "normalize webhook", ErrNoMessageData)
	}
	if m.FromMe {
		return domain.InboundMessage{}, IgnoredOwnMessage, nil
	}
	if strings.HasSuffix(firstNonEmpty(m.From, m.RemoteJid), groupSuffix) {
		return domain.InboundMessage{}, Ignored, nil
	}

	msg := domain.InboundMessage{
		ID:         firstNonEmpty(m.ID, uuid.NewString()),
		UserID:     firstNonEmpty(m.From, m.RemoteJid),
		Text:       firstNonEmpty(m.Text, m.Body, m.Conversation),
		ReceivedAt: now.UTC(),
	}
	if err := validate.Struct(msg); err != nil {
		return domain.InboundMessage{}, "", domain.WrapError(domain.ErrInvalidInput, "normalize webhook", errors.Join(ErrMissingFields, err))
	}
	return msg, Received, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
