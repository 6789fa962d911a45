package whatsapp

import (
	"context"
	"time"
)

type MonitorConfig struct {
	Interval       time.Duration
	MaxReconnects  int
	ReconnectDelay time.Duration
	Poll           PollConfig
}

func (m MonitorConfig) withDefaults() MonitorConfig {
	if m.Interval <= 0 {
		m.Interval = 30 * time.Second
	}
	if m.MaxReconnects <= 0 {
		m.MaxReconnects = 5
	}
	if m.ReconnectDelay <= 0 {
		m.ReconnectDelay = 5 * time.Second
	}
	return m
}

// Monitor checks the session every interval and reconnects a dropped session with a
// bounded number of attempts. It returns when ctx is done.
func (c *Client) Monitor(ctx context.Context, cfg MonitorConfig) {
	cfg = cfg.withDefaults()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		state, err := c.Status(ctx)
		if err != nil {
			c.logger.Error("whatsapp_health_check_failed", "error", err)
			continue
		}
		if state == StateOpen {
			c.ready.Store(true)
			continue
		}
		if !c.ready.Swap(false) {
			continue
		}
		c.logger.Warn("whatsapp_disconnected", "state", state)
		if !c.reconnect(ctx, cfg) {
			c.logger.Error("whatsapp_reconnect_exhausted", "attempts", cfg.MaxReconnects, "hint", "manual intervention needed")
		}
	}
}

func (c *Client) reconnect(ctx context.Context, cfg MonitorConfig) bool {
	delay := cfg.ReconnectDelay
	for attempt := 1; attempt <= cfg.MaxReconnects; attempt++ {
		c.logger.Info("whatsapp_reconnect_attempt", "attempt", attempt, "max_attempts", cfg.MaxReconnects)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}

		err := c.Initialize(ctx, cfg.Poll)
		if err == nil {
			return true
		}
		c.logger.Warn("whatsapp_reconnect_failed", "attempt", attempt, "error", err)
		delay *= 2
	}
	return false
}
