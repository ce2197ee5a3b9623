package collector

import (
	"context"
	"log/slog"
	"time"
)

// retry calls fn up to attempts times with exponential backoff starting at
// baseDelay. It returns nil on the first success, or the last error. Context
// cancellation stops further attempts.
func retry(ctx context.Context, attempts int, baseDelay time.Duration, label string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	delay := baseDelay
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		if i == attempts-1 {
			break
		}
		slog.Debug("attempt failed, retrying", "what", label, "attempt", i+1, "of", attempts, "backoff", delay, "error", err)
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
