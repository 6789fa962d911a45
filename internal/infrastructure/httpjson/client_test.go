package httpjson

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

func TestPostJSONSendsHeadersAndDecodes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer k" || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("missing headers: %v", r.Header)
		}
		_, _ = w.Write([]byte(`{"value":"ok"}`))
	}))
	defer server.Close()

	client := New("test", server.URL+"/", time.Second).WithHeader("Authorization", "Bearer k")
	var out struct {
		Value string `json:"value"`
	}
	if err := client.PostJSON(context.Background(), "/x", map[string]string{"a": "b"}, &out, "call"); err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	if out.Value != "ok" {
		t.Fatalf("unexpected decode %+v", out)
	}
}

func TestStatusErrorCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	err := New("ollama", server.URL, time.Second).GetJSON(context.Background(), "/api/tags", nil, "tags")
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected body in error, got %v", err)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Fatalf("unexpected status %d", StatusCode(err))
	}
	if !Classify(err).Retryable {
		t.Fatalf("502 must be retryable")
	}
	if wrapped := WrapTemporaryIfNeeded("tags", err); !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", wrapped)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
		record    bool
	}{
		{name: "bad request", err: &StatusError{StatusCode: 400}, retryable: false, record: false},
		{name: "not found", err: &StatusError{StatusCode: 404}, retryable: false, record: false},
		{name: "rate limited", err: &StatusError{StatusCode: 429}, retryable: true, record: true},
		{name: "canceled", err: context.Canceled, retryable: false, record: false},
		{name: "reset", err: errors.New("read: connection reset by peer"), retryable: true, record: true},
		{name: "other", err: errors.New("weird"), retryable: false, record: true},
		{name: "exhausted", err: fmt.Errorf("x: %w", resilience.ErrRetriesExhausted), retryable: false, record: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.err)
			if got.Retryable != tc.retryable || got.RecordFailure != tc.record {
				t.Fatalf("Classify()=%+v", got)
			}
		})
	}
}
