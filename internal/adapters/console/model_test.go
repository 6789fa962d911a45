package console

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type handlerFake struct {
	calls []string
}

func (h *handlerFake) HandleMessage(_ context.Context, userID, text string) string {
	h.calls = append(h.calls, userID+":"+text)
	return "📋 Mode KBLI/KBJI aktif"
}

func sized(m Model) Model {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func TestEnterSendsMessageAndRendersReplyWithTiming(t *testing.T) {
	h := &handlerFake{}
	m := sized(New(context.Background(), h, "console"))
	tick := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		tick = tick.Add(750 * time.Millisecond)
		return tick
	}

	m.input.SetValue("  #kbli  ")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if cmd == nil || !m.pending {
		t.Fatalf("expected pending request and a command")
	}
	if m.input.Value() != "" {
		t.Fatalf("input must be cleared, got %q", m.input.Value())
	}

	reply := m.ask("#kbli")().(replyMsg)
	if len(h.calls) != 1 || h.calls[0] != "console:#kbli" {
		t.Fatalf("unexpected handler calls %v", h.calls)
	}

	next, _ = m.Update(reply)
	m = next.(Model)
	if m.pending {
		t.Fatalf("reply must clear pending")
	}
	last := m.transcript[len(m.transcript)-1]
	if last.who != fromBot || !strings.Contains(last.text, "⏱️ (Dijawab dalam 0.75 detik)") {
		t.Fatalf("unexpected bot turn %+v", last)
	}
	if !strings.Contains(m.View(), "DemakAI console") {
		t.Fatalf("view missing header")
	}
}

func TestEnterIgnoredWhileBlankOrPending(t *testing.T) {
	m := sized(New(context.Background(), &handlerFake{}, "console"))

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || len(next.(Model).transcript) != 0 {
		t.Fatalf("blank input must not send")
	}

	m.pending = true
	m.input.SetValue("halo")
	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil || len(next.(Model).transcript) != 0 {
		t.Fatalf("second message must wait for the reply")
	}
}

func TestCtrlCQuits(t *testing.T) {
	m := New(context.Background(), &handlerFake{}, "console")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
