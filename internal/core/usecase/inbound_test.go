package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type metricsRecorder struct {
	noopMetrics
	rateLimited int
}

func (m *metricsRecorder) IncRateLimited() { m.rateLimited++ }

func newProcessor(handler *handlerFake, sessions *sessionRepoFake, messenger *messengerFake, allow bool, cfg InboundConfig, metrics *metricsRecorder) *InboundProcessor {
	p := NewInboundProcessor(handler, sessions, messenger, limiterFake{allow: allow}, cfg, metrics, discardLogger())
	p.sleep = func(context.Context, time.Duration) error { return nil }
	return p
}

func TestProcessDeliversReplyAndCountsMessage(t *testing.T) {
	handler := &handlerFake{reply: "balasan"}
	sessions := newSessionRepoFake()
	messenger := &messengerFake{}
	p := newProcessor(handler, sessions, messenger, true, InboundConfig{}, &metricsRecorder{})

	err := p.Process(context.Background(), domain.InboundMessage{ID: "m1", UserID: "628123", Text: "halo"})

	require.NoError(t, err)
	assert.Equal(t, []string{"balasan"}, messenger.sent)
	assert.Equal(t, 1, messenger.typing)
	assert.Equal(t, 1, sessions.increment)
	s, _ := sessions.Get(context.Background(), "628123")
	require.NotNil(t, s)
	assert.Equal(t, "halo", s.LastMessage)
}

func TestProcessSplitsLongReplies(t *testing.T) {
	handler := &handlerFake{reply: strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)}
	messenger := &messengerFake{}
	p := newProcessor(handler, newSessionRepoFake(), messenger, true, InboundConfig{MaxMessageLength: 10}, &metricsRecorder{})

	require.NoError(t, p.Process(context.Background(), domain.InboundMessage{UserID: "u", Text: "x"}))
	assert.Equal(t, []string{"aaaaaaaa", "bbbbbbbb"}, messenger.sent)
}

func TestProcessRateLimited(t *testing.T) {
	handler := &handlerFake{reply: "tidak dipakai"}
	messenger := &messengerFake{}
	metrics := &metricsRecorder{}
	p := newProcessor(handler, newSessionRepoFake(), messenger, false, InboundConfig{}, metrics)

	require.NoError(t, p.Process(context.Background(), domain.InboundMessage{UserID: "u", Text: "x"}))
	assert.Equal(t, []string{RateLimitedReply}, messenger.sent)
	assert.Empty(t, handler.texts)
	assert.Equal(t, 1, metrics.rateLimited)
}

func TestProcessSendFailureReturnsError(t *testing.T) {
	messenger := &messengerFake{sendErr: errBoom}
	p := newProcessor(&handlerFake{reply: "x"}, newSessionRepoFake(), messenger, true, InboundConfig{}, &metricsRecorder{})

	err := p.Process(context.Background(), domain.InboundMessage{UserID: "u", Text: "x"})
	assert.ErrorIs(t, err, errBoom)
}

func TestProcessResponseTimeFooter(t *testing.T) {
	messenger := &messengerFake{}
	p := newProcessor(&handlerFake{reply: "ok"}, newSessionRepoFake(), messenger, true, InboundConfig{ShowResponseTime: true}, &metricsRecorder{})

	require.NoError(t, p.Process(context.Background(), domain.InboundMessage{UserID: "u", Text: "x"}))
	require.Len(t, messenger.sent, 1)
	assert.Regexp(t, `^ok\n\n⏱️ \(Dijawab dalam \d+\.\d{2} detik\)$`, messenger.sent[0])
}

func TestIngestPublication(t *testing.T) {
	writer := &documentWriterFake{}
	uc := NewIngestPublicationUseCase(writer, &extractorFake{text: "satu dua tiga"}, chunkerFake{}, &embedderFake{vector: []float32{0.5}})

	doc, err := uc.Ingest(context.Background(), domain.IngestRequest{Path: "a.pdf", Title: " Demak Dalam Angka ", Year: "2023", Tags: []string{"umum"}})

	require.NoError(t, err)
	assert.Same(t, doc, writer.saved)
	assert.Equal(t, "Demak Dalam Angka", doc.Title)
	require.Len(t, doc.Chunks, 3)
	assert.Equal(t, []float32{0.5}, doc.Chunks[2].Embedding)
	assert.NotEmpty(t, doc.ID)
}

func TestIngestPublicationErrors(t *testing.T) {
	ctx := context.Background()

	uc := NewIngestPublicationUseCase(&documentWriterFake{}, &extractorFake{}, chunkerFake{}, &embedderFake{})
	_, err := uc.Ingest(ctx, domain.IngestRequest{Path: "a.pdf"})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))

	_, err = uc.Ingest(ctx, domain.IngestRequest{Path: "a.pdf", Title: "T"})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), "empty text must be invalid input")

	_, err = uc.Ingest(ctx, domain.IngestRequest{Path: "a.pdf", Title: "T", Year: "23"})
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), "two-digit year must be rejected")

	uc = NewIngestPublicationUseCase(&documentWriterFake{}, &extractorFake{text: "isi"}, chunkerFake{}, &embedderFake{err: errBoom})
	_, err = uc.Ingest(ctx, domain.IngestRequest{Path: "a.pdf", Title: "T"})
	assert.ErrorIs(t, err, errBoom)

	uc = NewIngestPublicationUseCase(&documentWriterFake{err: errBoom}, &extractorFake{text: "isi"}, chunkerFake{}, &embedderFake{})
	_, err = uc.Ingest(ctx, domain.IngestRequest{Path: "a.pdf", Title: "T"})
	assert.ErrorIs(t, err, errBoom)
}
