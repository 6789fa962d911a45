package resilience

import "time"

// Config is the retry and breaker policy of one upstream.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled bool
	// BreakerMinRequests is the sample size before the failure ratio is evaluated.
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig is used for gateway calls and anything without a dedicated policy.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     800 * time.Millisecond,
		RetryMultiplier:     2,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// EmbeddingPolicy waits 1s then 2s between three attempts.
func EmbeddingPolicy(base Config) Config {
	return base.withRetry(3, time.Second, 4*time.Second, 2)
}

// ChatPolicy allows two retries 1.5s apart. LLM calls are slow, so the breaker
// opens after fewer samples.
func ChatPolicy(base Config) Config {
	out := base.withRetry(3, 1500*time.Millisecond, 1500*time.Millisecond, 1)
	out.BreakerMinRequests = 5
	out.BreakerOpenTimeout = time.Minute
	return out
}

// PublishPolicy retries queue publishes quickly; the webhook caller is waiting.
func PublishPolicy(base Config) Config {
	return base.withRetry(3, 50*time.Millisecond, 200*time.Millisecond, 2)
}

func (c Config) withRetry(attempts int, initial, max time.Duration, multiplier float64) Config {
	c.RetryMaxAttempts = attempts
	c.RetryInitialBackoff = initial
	c.RetryMaxBackoff = max
	c.RetryMultiplier = multiplier
	return c
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.RetryMaxAttempts <= 0 {
		c.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if c.RetryInitialBackoff <= 0 {
		c.RetryInitialBackoff = def.RetryInitialBackoff
	}
	c.RetryMaxBackoff = max(c.RetryMaxBackoff, c.RetryInitialBackoff)
	if c.RetryMultiplier < 1 {
		c.RetryMultiplier = def.RetryMultiplier
	}
	if c.BreakerMinRequests == 0 {
		c.BreakerMinRequests = def.BreakerMinRequests
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		c.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if c.BreakerHalfOpenMaxCalls == 0 {
		c.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}
	return c
}
