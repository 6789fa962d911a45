package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

const workerGroup = "demakai-workers"

// Queue carries inbound WhatsApp messages from the webhook to the worker pool.
type Queue struct {
	conn           *nats.Conn
	subject        string
	executor       *resilience.Executor
	handlerTimeout time.Duration
	logger         *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	HandlerTimeout       time.Duration
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handlerTimeout := options.HandlerTimeout
	if handlerTimeout <= 0 {
		handlerTimeout = 5 * time.Minute
	}

	conn, err := nats.Connect(
		url,
		nats.Name("demakai-bot"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:           conn,
		subject:        subject,
		executor:       options.ResilienceExecutor,
		handlerTimeout: handlerTimeout,
		logger:         logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Connected reports whether the connection is currently usable.
func (q *Queue) Connected() bool {
	return q.conn != nil && q.conn.IsConnected()
}

func (q *Queue) PublishInbound(ctx context.Context, msg domain.InboundMessage) error {
	payload, err := encodeInbound(msg)
	if err != nil {
		return err
	}
	err = q.executor.Execute(ctx, "nats_publish", func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyNATSError)
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeInbound joins the worker queue group and blocks until ctx is done, then drains.
func (q *Queue) SubscribeInbound(ctx context.Context, handler func(context.Context, domain.InboundMessage) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(m *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}
		msg, err := decodeInbound(m.Data)
		if err != nil {
			q.logger.Warn("inbound_decode_failed", "error", err, "bytes", len(m.Data))
			return
		}

		handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
		defer cancel()
		if err := handler(handlerCtx, msg); err != nil {
			q.logger.Error("inbound_handler_failed", "message_id", msg.ID, "user_id", msg.UserID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func encodeInbound(msg domain.InboundMessage) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode inbound message: %w", err)
	}
	return payload, nil
}

func decodeInbound(data []byte) (domain.InboundMessage, error) {
	var msg domain.InboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, domain.WrapError(domain.ErrInvalidInput, "decode inbound message", err)
	}
	if msg.UserID == "" {
		return msg, domain.WrapError(domain.ErrInvalidInput, "decode inbound message", errors.New("missing user_id"))
	}
	return msg, nil
}
