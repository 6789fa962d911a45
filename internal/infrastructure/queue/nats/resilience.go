package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/muhshi/demakai-bot/internal/core/domain"
	"github.com/muhshi/demakai-bot/internal/infrastructure/resilience"
)

// connectionErrors are the publish failures worth another attempt: the client is
// between servers and buffers or reconnects shortly.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrConnectionReconnecting,
	nats.ErrDisconnected,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{}
	}
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// wrapTemporaryIfNeeded marks failures the webhook caller may retry, so the API
// answers 503 instead of 500.
func wrapTemporaryIfNeeded(err error) error {
	switch {
	case err == nil, domain.IsKind(err, domain.ErrTemporary):
		return err
	case classifyNATSError(err).Retryable, resilience.IsCircuitOpen(err), errors.Is(err, resilience.ErrRetriesExhausted):
		return domain.WrapError(domain.ErrTemporary, "publish inbound", err)
	default:
		return err
	}
}
