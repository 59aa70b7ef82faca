package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Backoff selects how the inter-attempt delay grows.
type Backoff int

const (
	// BackoffFixed waits InitialDelay between every attempt.
	BackoffFixed Backoff = iota
	// BackoffLinear waits attempt*InitialDelay before attempt N+1.
	BackoffLinear
)

// Config holds retry configuration.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Backoff      Backoff
	Logger       *zap.Logger
}

// FixedDelay is the profile used against a confirmed-working intermediary:
// a handful of attempts with a constant pause between them.
func FixedDelay(attempts int, delay time.Duration) Config {
	return Config{MaxAttempts: attempts, InitialDelay: delay, Backoff: BackoffFixed, Logger: zap.NewNop()}
}

// LinearBackoff is the fallback-sweep profile: the pause grows with each
// failed attempt to give a struggling intermediary room to recover.
func LinearBackoff(attempts int, unit time.Duration) Config {
	return Config{MaxAttempts: attempts, InitialDelay: unit, Backoff: BackoffLinear, Logger: zap.NewNop()}
}

// Do runs fn up to MaxAttempts times, sleeping per the backoff profile
// between failures. The last error is returned once attempts are spent.
// Context cancellation wins over any pending sleep.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Int("max_attempts", cfg.MaxAttempts))
			}
			return nil
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.delay(attempt)
		logger.Warn("operation failed, retrying",
			zap.Error(lastErr),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("delay", delay))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

func (c Config) delay(attempt int) time.Duration {
	switch c.Backoff {
	case BackoffLinear:
		return time.Duration(attempt) * c.InitialDelay
	default:
		return c.InitialDelay
	}
}
