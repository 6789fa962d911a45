package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/muhshi/demakai-bot/internal/infrastructure/httpjson"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

const (
	StateOpen     = "open"
	StateNotFound = "not_found"

	jidSuffix = "@s.whatsapp.net"
)

var ErrConnectionTimeout = errors.New("whatsapp: connection timeout, QR code not scanned")

type Config struct {
	BaseURL   string
	SessionID string
	Timeout   time.Duration
}

// Client drives one session of a Baileys HTTP gateway. It implements ports.Messenger.
type Client struct {
	send      *httpjson.Client
	control   *httpjson.Client
	sessionID string
	executor  *resilience.Executor
	logger    *slog.Logger
	ready     atomic.Bool
}

func NewClient(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.SessionID == "" {
		cfg.SessionID = "demak-bot"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		send:      httpjson.New("whatsapp", cfg.BaseURL, cfg.Timeout),
		control:   httpjson.New("whatsapp", cfg.BaseURL, 5*time.Second),
		sessionID: cfg.SessionID,
		executor:  executor,
		logger:    logger,
	}
}

func (c *Client) sessionPath(suffix string) string {
	return "/session/" + url.PathEscape(c.sessionID) + suffix
}

// Ready reports whether the last status check saw an open session.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Status returns the gateway session state; an unknown session is StateNotFound.
func (c *Client) Status(ctx context.Context) (string, error) {
	var out struct {
		State string `json:"state"`
	}
	if err := c.control.GetJSON(ctx, c.sessionPath("/status"), &out, "session_status"); err != nil {
		if httpjson.StatusCode(err) == http.StatusNotFound {
			return StateNotFound, nil
		}
		return "", err
	}
	return out.State, nil
}

// StartSession asks the gateway to create the session. An existing session is not an error.
func (c *Client) StartSession(ctx context.Context) error {
	payload := map[string]any{
		"sessionId": c.sessionID,
		"options":   map[string]bool{"printQRInTerminal": true},
	}
	err := c.send.PostJSON(ctx, "/session/start", payload, nil, "session_start")
	if err != nil && httpjson.StatusCode(err) != http.StatusConflict {
		return err
	}
	if err != nil {
		c.logger.Info("whatsapp_session_exists", "session_id", c.sessionID)
		return nil
	}
	c.logger.Info("whatsapp_session_started", "session_id", c.sessionID, "hint", "scan the QR code to connect")
	return nil
}

type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = 2 * time.Second
	}
	if p.Timeout <= 0 {
		p.Timeout = 60 * time.Second
	}
	return p
}

// WaitForConnection polls the session status until it is open, the timeout passes or ctx ends.
func (c *Client) WaitForConnection(ctx context.Context, poll PollConfig) error {
	poll = poll.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, poll.Timeout)
	defer cancel()

	attempts := int(poll.Timeout / poll.Interval)
	for attempt := 1; attempt <= max(attempts, 1); attempt++ {
		state, err := c.Status(ctx)
		switch {
		case err != nil:
			c.logger.Warn("whatsapp_status_failed", "attempt", attempt, "error", err)
		case state == StateOpen:
			c.ready.Store(true)
			return nil
		default:
			c.logger.Info("whatsapp_waiting", "state", state, "attempt", attempt)
		}

		timer := time.NewTimer(poll.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrConnectionTimeout
			}
			return ctx.Err()
		case <-timer.C:
		}
	}
	return ErrConnectionTimeout
}

// Initialize makes sure the session exists and is connected.
func (c *Client) Initialize(ctx context.Context, poll PollConfig) error {
	state, err := c.Status(ctx)
	if err != nil {
		return fmt.Errorf("whatsapp status: %w", err)
	}
	if state == StateOpen {
		c.ready.Store(true)
		c.logger.Info("whatsapp_session_active", "session_id", c.sessionID)
		return nil
	}
	if err := c.StartSession(ctx); err != nil {
		return fmt.Errorf("whatsapp start session: %w", err)
	}
	if err := c.WaitForConnection(ctx, poll); err != nil {
		return err
	}
	c.logger.Info("whatsapp_session_initialized", "session_id", c.sessionID)
	return nil
}

// SendMessage delivers text to a user id or JID.
func (c *Client) SendMessage(ctx context.Context, to, text string) error {
	payload := map[string]string{"to": phoneNumber(to), "text": text}
	err := c.executor.Execute(ctx, "whatsapp_send", func(ctx context.Context) error {
		return c.send.PostJSON(ctx, c.sessionPath("/send-message"), payload, nil, "send_message")
	}, httpjson.Classify)
	if err != nil {
		return httpjson.WrapTemporaryIfNeeded("whatsapp send", err)
	}
	return nil
}

// SendTyping shows the composing presence. Callers treat failures as non-critical.
func (c *Client) SendTyping(ctx context.Context, to string) error {
	payload := map[string]string{"to": phoneNumber(to), "presence": "composing"}
	return c.control.PostJSON(ctx, c.sessionPath("/send-presence"), payload, nil, "send_presence")
}

// SetupWebhook subscribes webhookURL to message events.
func (c *Client) SetupWebhook(ctx context.Context, webhookURL string) error {
	payload := map[string]any{"url": webhookURL, "events": []string{"message"}}
	if err := c.control.PostJSON(ctx, c.sessionPath("/webhook"), payload, nil, "setup_webhook"); err != nil {
		return err
	}
	c.logger.Info("whatsapp_webhook_configured", "url", webhookURL)
	return nil
}

func (c *Client) DeleteSession(ctx context.Context) error {
	if err := c.control.Do(ctx, http.MethodDelete, c.sessionPath(""), nil, nil, "delete_session"); err != nil {
		return err
	}
	c.ready.Store(false)
	return nil
}

func phoneNumber(to string) string {
	return strings.Replace(to, jidSuffix, "", 1)
}
