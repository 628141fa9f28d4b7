package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ReconnectConfig bounds the supervision loop's retry behavior.
type ReconnectConfig struct {
	// MaxRetries is how many failed attempts are tolerated before the
	// error is surfaced to the caller.
	MaxRetries int
	// RetryDelay is the delay before the first retry; it doubles per
	// attempt.
	RetryDelay time.Duration
	// MaxRetryDelay caps the doubling.
	MaxRetryDelay time.Duration
}

// DefaultReconnectConfig retries five times over roughly half a minute:
// 1s, 2s, 4s, 8s, 16s.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		MaxRetries:    5,
		RetryDelay:    1 * time.Second,
		MaxRetryDelay: 30 * time.Second,
	}
}

// ConnectFunc makes one connection attempt.
type ConnectFunc func(ctx context.Context) error

// RunWithReconnect drives connect until it succeeds, the retry budget
// runs out, or the context ends. Each failure is logged with its
// category and counted into attempts when non-nil.
func RunWithReconnect(ctx context.Context, connect ConnectFunc, cfg ReconnectConfig, attempts *uint32) error {
	for retry := 0; ; {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := connect(ctx)
		if err == nil {
			slog.Info("transport: connected", "after_retries", retry)
			return nil
		}

		retry++
		if attempts != nil {
			atomic.AddUint32(attempts, 1)
		}
		if retry > cfg.MaxRetries {
			return fmt.Errorf("transport: giving up after %d attempts: %w", cfg.MaxRetries, err)
		}

		delay := backoffDelay(retry, cfg)
		slog.Warn("transport: connect failed, retrying",
			"error", err,
			"category", Classify(err).String(),
			"attempt", retry,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// backoffDelay is RetryDelay doubled per attempt, capped at
// MaxRetryDelay.
func backoffDelay(attempt int, cfg ReconnectConfig) time.Duration {
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if delay > cfg.MaxRetryDelay {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
