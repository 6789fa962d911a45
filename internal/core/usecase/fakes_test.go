package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sessionRepoFake struct {
	mu        sync.Mutex
	sessions  map[string]*domain.SessionState
	getErr    error
	setErr    error
	resets    int
	increment int
	now       func() time.Time
}

func newSessionRepoFake() *sessionRepoFake {
	return &sessionRepoFake{sessions: map[string]*domain.SessionState{}, now: time.Now}
}

func (f *sessionRepoFake) Get(_ context.Context, userID string) (*domain.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.sessions[userID]
	if !ok {
		return nil, nil
	}
	copyState := *s
	return &copyState, nil
}

func (f *sessionRepoFake) ensure(userID string) *domain.SessionState {
	s, ok := f.sessions[userID]
	if !ok {
		now := f.now()
		s = &domain.SessionState{UserID: userID, CurrentMode: domain.ModeNatural, FirstInteraction: now}
		f.sessions[userID] = s
	}
	s.LastInteraction = f.now()
	return s
}

func (f *sessionRepoFake) Upsert(_ context.Context, userID string, patch domain.SessionPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.ensure(userID)
	s.PhoneNumber = patch.PhoneNumber
	s.LastMessage = patch.LastMessage
	return nil
}

func (f *sessionRepoFake) SetMode(_ context.Context, userID string, mode domain.Mode, query *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	s := f.ensure(userID)
	now := f.now()
	s.CurrentMode = mode
	s.ModeActivatedAt = &now
	s.LastQuery = query
	return nil
}

func (f *sessionRepoFake) ResetMode(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	s := f.ensure(userID)
	s.CurrentMode = domain.ModeNatural
	s.ModeActivatedAt = nil
	s.LastQuery = nil
	return nil
}

func (f *sessionRepoFake) IncrementMessageCount(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.increment++
	f.ensure(userID).MessageCount++
	return nil
}

func (f *sessionRepoFake) CountActive(context.Context, time.Time) (int, error) { return len(f.sessions), nil }
func (f *sessionRepoFake) DeleteInactive(context.Context, time.Time) (int64, error) {
	return 0, nil
}
func (f *sessionRepoFake) DeleteAll(context.Context) (int64, error) { return 0, nil }

type historyFake struct {
	mu        sync.Mutex
	entries   map[string][]domain.HistoryEntry
	appendErr error
}

func newHistoryFake() *historyFake {
	return &historyFake{entries: map[string][]domain.HistoryEntry{}}
}

func (f *historyFake) Recent(_ context.Context, userID string, limit int) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.entries[userID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]domain.HistoryEntry(nil), all...), nil
}

func (f *historyFake) AppendTurn(_ context.Context, userID string, entries []domain.HistoryEntry, max int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	all := append(f.entries[userID], entries...)
	if len(all) > max {
		all = all[len(all)-max:]
	}
	f.entries[userID] = all
	return nil
}

func (f *historyFake) Clear(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, userID)
	return nil
}

func (f *historyFake) ClearIdle(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *historyFake) count(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries[userID])
}

type classificationFake struct {
	lexical      map[domain.ClassificationKind][]domain.ClassificationEntry
	keywords     map[domain.ClassificationKind][]domain.ClassificationEntry
	lexicalErr   error
	lexicalCalls []string
	keywordCalls [][]string
}

func (f *classificationFake) SearchLexical(_ context.Context, kind domain.ClassificationKind, query string, _ int) ([]domain.ClassificationEntry, error) {
	f.lexicalCalls = append(f.lexicalCalls, query)
	if f.lexicalErr != nil {
		return nil, f.lexicalErr
	}
	return f.lexical[kind], nil
}

func (f *classificationFake) SearchKeywords(_ context.Context, kind domain.ClassificationKind, keywords []string, _ int) ([]domain.ClassificationEntry, error) {
	f.keywordCalls = append(f.keywordCalls, keywords)
	return f.keywords[kind], nil
}

type documentFake struct {
	docs    []domain.Document
	metas   []domain.DocumentMetadata
	listErr error
}

func (f *documentFake) ListDocuments(context.Context) ([]domain.Document, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.docs, nil
}

func (f *documentFake) ListMetadata(context.Context) ([]domain.DocumentMetadata, error) {
	return f.metas, nil
}

type embedderFake struct {
	vector []float32
	err    error
	calls  []string
}

func (f *embedderFake) Embed(_ context.Context, text string, mode domain.Mode) ([]float32, error) {
	if mode == domain.ModeCodeLookup {
		return nil, nil
	}
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *embedderFake) EmbedBatch(_ context.Context, texts []string, _ domain.Mode) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, nil
}

func (f *embedderFake) CacheStats() domain.CacheStats {
	return domain.CacheStats{Size: 10, MaxSize: 1000, Usage: 1}
}

type chatFake struct {
	reply    string
	err      error
	requests []domain.ChatRequest
}

func (f *chatFake) Chat(_ context.Context, req domain.ChatRequest) (string, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type messengerFake struct {
	mu      sync.Mutex
	sent    []string
	typing  int
	sendErr error
}

func (f *messengerFake) SendMessage(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, text)
	return nil
}

func (f *messengerFake) SendTyping(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

type statsFake struct {
	stats domain.StoreStats
	err   error
}

func (f *statsFake) Stats(context.Context, time.Time) (domain.StoreStats, error) {
	return f.stats, f.err
}

type healthFake struct {
	report domain.HealthReport
}

func (f *healthFake) Health(context.Context) domain.HealthReport { return f.report }

type handlerFake struct {
	reply string
	texts []string
}

func (f *handlerFake) HandleMessage(_ context.Context, _ string, text string) string {
	f.texts = append(f.texts, text)
	return f.reply
}

type limiterFake struct {
	allow bool
}

func (f limiterFake) Allow(string) bool { return f.allow }

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, string) (string, error) {
	return f.text, f.err
}

type chunkerFake struct{}

func (chunkerFake) Split(text string) []string {
	return strings.Fields(text)
}

type documentWriterFake struct {
	saved *domain.Document
	err   error
}

func (f *documentWriterFake) SaveDocument(_ context.Context, doc *domain.Document) error {
	if f.err != nil {
		return f.err
	}
	f.saved = doc
	return nil
}

var errBoom = errors.New("boom")
