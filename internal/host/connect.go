package host

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/droneedit/droneedit-agent/internal/logging"
)

// ConnectOptions bounds the connection retry loop.
type ConnectOptions struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Logger      *slog.Logger
}

// Connect establishes a session. Each attempt acquires the bridge and then
// the session; a failure in either step consumes the attempt and waits
// RetryDelay before the next one (never after the last). A nil entry point
// fails immediately with ErrHostUnavailable.
func Connect(ctx context.Context, entry EntryPoint, opts ConnectOptions) (*Session, error) {
	logger := logging.OrDiscard(opts.Logger)
	if entry == nil {
		logger.Error("host entry point not available, not retrying")
		return nil, ErrHostUnavailable
	}

	attempts := opts.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		session, err := connectOnce(ctx, entry)
		if err == nil {
			logger.Info("host session established",
				"attempt", attempt,
				"product", session.Product,
				"version", session.Version,
			)
			return session, nil
		}
		lastErr = err
		logger.Warn("host connection attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)

		if attempt == attempts {
			break
		}
		if err := sleep(ctx, opts.RetryDelay); err != nil {
			return nil, err
		}
	}

	logging.Critical(logger, "could not connect to host", "attempts", attempts, "error", lastErr)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrConnectionExhausted, attempts, lastErr)
}

func connectOnce(ctx context.Context, entry EntryPoint) (*Session, error) {
	bridge, err := entry.AcquireBridge(ctx)
	if err != nil {
		return nil, err
	}
	return bridge.AcquireSession(ctx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
