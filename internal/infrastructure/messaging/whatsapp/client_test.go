package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

func TestSendMessageStripsJID(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/demak-bot/send-message", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, nil)
	require.NoError(t, client.SendMessage(context.Background(), "628123@s.whatsapp.net", "halo"))
	assert.Equal(t, map[string]string{"to": "628123", "text": "halo"}, got)
}

func TestSendTypingUsesComposingPresence(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/session/s1/send-presence", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, SessionID: "s1"}, nil, nil)
	require.NoError(t, client.SendTyping(context.Background(), "628"))
	assert.Equal(t, "composing", got["presence"])
}

func TestStatusNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	state, err := NewClient(Config{BaseURL: server.URL}, nil, nil).Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, state)
}

func TestStartSessionToleratesConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exists", http.StatusConflict)
	}))
	defer server.Close()

	assert.NoError(t, NewClient(Config{BaseURL: server.URL}, nil, nil).StartSession(context.Background()))
}

func TestInitializeWaitsForOpenSession(t *testing.T) {
	var polls atomic.Int32
	var started atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/start":
			started.Store(true)
		case "/session/demak-bot/status":
			state := "connecting"
			if polls.Add(1) >= 3 {
				state = StateOpen
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"state": state})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, nil)
	err := client.Initialize(context.Background(), PollConfig{Interval: time.Millisecond, Timeout: time.Second})
	require.NoError(t, err)
	assert.True(t, started.Load())
	assert.True(t, client.Ready())
}

func TestWaitForConnectionIsBounded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"connecting"}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, nil)
	err := client.WaitForConnection(context.Background(), PollConfig{Interval: 5 * time.Millisecond, Timeout: 30 * time.Millisecond})
	assert.ErrorIs(t, err, ErrConnectionTimeout)
	assert.False(t, client.Ready())
}

func TestWaitForConnectionHonoursCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"state":"connecting"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewClient(Config{BaseURL: server.URL}, nil, nil).WaitForConnection(ctx, PollConfig{Interval: time.Second, Timeout: time.Minute})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestMonitorReconnectsDroppedSession(t *testing.T) {
	var statusCalls atomic.Int32
	var starts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/session/start":
			starts.Add(1)
		default:
			n := statusCalls.Add(1)
			state := StateOpen
			if n == 1 {
				state = "close"
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"state": state})
		}
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil, nil)
	client.ready.Store(true)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	client.Monitor(ctx, MonitorConfig{Interval: 10 * time.Millisecond, ReconnectDelay: time.Millisecond, Poll: PollConfig{Interval: time.Millisecond, Timeout: 100 * time.Millisecond}})

	assert.True(t, client.Ready())
	assert.GreaterOrEqual(t, statusCalls.Load(), int32(2))
	assert.Zero(t, starts.Load(), "an open status on reconnect needs no new session")
}

func TestNormalizeWebhook(t *testing.T) {
	now := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		event       *WebhookEvent
		disposition Disposition
		wantErr     error
		user, text  string
	}{
		{name: "no type", event: &WebhookEvent{}, wantErr: ErrInvalidPayload},
		{name: "nil", event: nil, wantErr: ErrInvalidPayload},
		{name: "status event", event: &WebhookEvent{Type: "connection.update"}, disposition: Ignored},
		{name: "no message", event: &WebhookEvent{Type: "message"}, wantErr: ErrNoMessageData},
		{name: "own message", event: &WebhookEvent{Type: "message", Message: &WebhookMessage{FromMe: true, From: "x", Text: "y"}}, disposition: IgnoredOwnMessage},
		{name: "group chat", event: &WebhookEvent{Type: "message", Message: &WebhookMessage{From: "1203@g.us", Text: "halo"}}, disposition: Ignored},
		{name: "missing text", event: &WebhookEvent{Type: "message", Message: &WebhookMessage{From: "628"}}, wantErr: ErrMissingFields},
		{name: "message shape", event: &WebhookEvent{Type: "message", Message: &WebhookMessage{From: "628@s.whatsapp.net", Text: "halo"}}, disposition: Received, user: "628@s.whatsapp.net", text: "halo"},
		{name: "data shape", event: &WebhookEvent{Type: "message", Data: &WebhookMessage{RemoteJid: "629", Conversation: "#kbli kopi"}}, disposition: Received, user: "629", text: "#kbli kopi"},
		{name: "body field", event: &WebhookEvent{Type: "message", Data: &WebhookMessage{From: "630", Body: "pdrb"}}, disposition: Received, user: "630", text: "pdrb"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, disposition, err := NormalizeWebhook(tc.event, now)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tc.wantErr)
				assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.disposition, disposition)
			if disposition == Received {
				assert.Equal(t, tc.user, msg.UserID)
				assert.Equal(t, tc.text, msg.Text)
				assert.NotEmpty(t, msg.ID)
				assert.Equal(t, now, msg.ReceivedAt)
			}
		})
	}
}
