package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/briefcast/briefcast/internal/logger"
)

type Config struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // double the delay after each failed attempt
}

// WithRetry runs fn until it succeeds or MaxAttempts is reached. The wait
// between attempts respects context cancellation.
func WithRetry(ctx context.Context, cfg Config, fn func() error) error {
	delay := cfg.Delay

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if attempt == cfg.MaxAttempts {
			return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, err)
		}

		logger.Debug("retrying after error",
			"attempt", attempt,
			"max_attempts", cfg.MaxAttempts,
			"delay", delay.String(),
			"error", err.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if cfg.Backoff {
			delay *= 2
		}
	}

	return nil
}
