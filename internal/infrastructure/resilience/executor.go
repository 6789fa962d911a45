package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

type ErrorClassification struct {
	Retryable bool
	// RecordFailure counts the error against the operation's breaker.
	RecordFailure bool
}

type ErrorClassifier func(err error) ErrorClassification

// ErrRetriesExhausted marks a retryable failure that kept failing on every attempt.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Observer receives retry and breaker events, typically a metrics sink.
type Observer interface {
	ObserveRetry(operation string)
	ObserveBreakerState(operation string, open bool)
}

// Executor runs upstream calls (Ollama, LLM providers, the WhatsApp gateway, NATS)
// with bounded retries and one circuit breaker per operation name.
// A nil *Executor runs the callback exactly once.
type Executor struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewExecutor(cfg Config, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:      cfg.normalize(),
		logger:   logger,
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

// WithObserver attaches o and returns e. Call before first use.
func (e *Executor) WithObserver(o Observer) *Executor {
	if e != nil {
		e.observer = o
	}
	return e
}

func (e *Executor) Execute(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	if fn == nil {
		return errors.New("resilience: nil callback")
	}
	if e == nil {
		return fn(ctx)
	}
	operation = strings.TrimSpace(operation)
	if operation == "" {
		operation = "unknown"
	}
	if classifier == nil {
		classifier = failFast
	}

	run := func() error { return e.retry(ctx, operation, fn, classifier) }
	if !e.cfg.BreakerEnabled {
		return run()
	}
	_, err := e.breaker(operation, classifier).Execute(func() (struct{}, error) {
		return struct{}{}, run()
	})
	return err
}

// Do is Execute for callbacks that produce a value.
func Do[T any](ctx context.Context, e *Executor, operation string, fn func(context.Context) (T, error), classifier ErrorClassifier) (T, error) {
	var out T
	err := e.Execute(ctx, operation, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err == nil {
			out = v
		}
		return err
	}, classifier)
	return out, err
}

func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error, classifier ErrorClassifier) error {
	delays := newBackoff(e.cfg)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil || !classifier(err).Retryable {
			return err
		}
		if attempt >= e.cfg.RetryMaxAttempts {
			if attempt == 1 {
				return err
			}
			return fmt.Errorf("%s failed after %d attempts: %w: %w", operation, attempt, ErrRetriesExhausted, err)
		}

		wait := delays.next()
		e.logger.Warn("upstream_retry",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.cfg.RetryMaxAttempts,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
		if e.observer != nil {
			e.observer.ObserveRetry(operation)
		}
		if !sleep(ctx, wait) {
			return err
		}
	}
}

type backoff struct {
	current    time.Duration
	max        time.Duration
	multiplier float64
}

func newBackoff(cfg Config) *backoff {
	return &backoff{current: cfg.RetryInitialBackoff, max: cfg.RetryMaxBackoff, multiplier: cfg.RetryMultiplier}
}

func (b *backoff) next() time.Duration {
	wait := min(b.current, b.max)
	b.current = min(time.Duration(float64(b.current)*b.multiplier), b.max)
	return wait
}

// sleep reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (e *Executor) breaker(operation string, classifier ErrorClassifier) *gobreaker.CircuitBreaker[struct{}] {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cb, ok := e.breakers[operation]; ok {
		return cb
	}

	cfg := e.cfg
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.BreakerHalfOpenMaxCalls,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= cfg.BreakerMinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classifier(err).RecordFailure
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if e.observer != nil {
				e.observer.ObserveBreakerState(name, to == gobreaker.StateOpen)
			}
		},
	})
	e.breakers[operation] = cb
	return cb
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func failFast(error) ErrorClassification {
	return ErrorClassification{RecordFailure: true}
}
