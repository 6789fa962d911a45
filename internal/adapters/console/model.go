package console

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muhshi/demakai-bot/internal/core/ports"
)

type speaker int

const (
	fromUser speaker = iota
	fromBot
)

type turn struct {
	who  speaker
	text string
}

type replyMsg struct {
	text    string
	elapsed time.Duration
}

// Model is a local chat console over the bot core. It plays the WhatsApp user.
type Model struct {
	ctx        context.Context
	handler    ports.MessageHandler
	userID     string
	input      textinput.Model
	viewport   viewport.Model
	spinner    spinner.Model
	transcript []turn
	pending    bool
	ready      bool
	status     string
	now        func() time.Time
}

func New(ctx context.Context, handler ports.MessageHandler, userID string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ketik pesan, #kbli kopi, #publikasi pdrb, /help"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		handler:  handler,
		userID:   userID,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		status:   "Siap. Ctrl+C untuk keluar.",
		now:      time.Now,
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		// header, status and one input line
		reserved := 3 + ih + th
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.pending {
				return m, nil
			}
			m.input.Reset()
			m.transcript = append(m.transcript, turn{who: fromUser, text: text})
			m.pending = true
			m.status = "DemakAI sedang mengetik..."
			m.refresh()
			return m, tea.Batch(m.spinner.Tick, m.ask(text))
		}

	case replyMsg:
		m.pending = false
		m.transcript = append(m.transcript, turn{
			who:  fromBot,
			text: fmt.Sprintf("%s\n\n⏱️ (Dijawab dalam %.2f detik)", msg.text, msg.elapsed.Seconds()),
		})
		m.status = "Siap."
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var inputCmd, viewCmd tea.Cmd
	m.input, inputCmd = m.input.Update(msg)
	// pgup/pgdown and the mouse wheel scroll the transcript
	m.viewport, viewCmd = m.viewport.Update(msg)
	return m, tea.Batch(inputCmd, viewCmd)
}

func (m Model) ask(text string) tea.Cmd {
	return func() tea.Msg {
		started := m.now()
		reply := m.handler.HandleMessage(m.ctx, m.userID, text)
		return replyMsg{text: reply, elapsed: m.now().Sub(started)}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("DemakAI console") + "  " + mutedStyle.Render(m.userID)
	status := statusStyle.Render(m.status)
	if m.pending {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" +
		transcriptStyle.Render(m.viewport.View()) + "\n" +
		inputStyle.Render(m.input.View()) + "\n" +
		status
}

func (m Model) renderTranscript() string {
	if len(m.transcript) == 0 {
		return mutedStyle.Render("Belum ada percakapan.")
	}
	width := max(20, m.viewport.Width-2)
	var b strings.Builder
	for i, t := range m.transcript {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch t.who {
		case fromUser:
			b.WriteString(userStyle.Width(width).Render("Kamu: " + t.text))
		default:
			b.WriteString(botStyle.Width(width).Render(t.text))
		}
	}
	return b.String()
}

var (
	headerStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	botStyle        = lipgloss.NewStyle()
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
