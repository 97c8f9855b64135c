package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Func defines the function signature for a retryable operation.
type Func func(ctx context.Context) error

// permanentError stops retrying immediately
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// afterError asks for a specific delay before the next attempt
type afterError struct {
	err   error
	delay time.Duration
}

func (e *afterError) Error() string { return e.err.Error() }
func (e *afterError) Unwrap() error { return e.err }

// After marks err as retryable after delay, e.g. from a Retry-After header
func After(delay time.Duration, err error) error {
	if err == nil {
		return nil
	}
	return &afterError{err: err, delay: delay}
}

// Execute performs an operation with bounded exponential backoff.
func Execute(ctx context.Context, cfg *Config, logger *zap.Logger, op Func) error {
	// If no retry configuration is provided, just execute the operation
	if cfg == nil || !cfg.Enable {
		return unwrapMarkers(op(ctx))
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid retry configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	multiplier := cfg.Multiplier
	if multiplier == 0 {
		multiplier = 2
	}

	delay := cfg.Interval
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		var after *afterError
		if errors.As(err, &after) && after.delay > 0 {
			wait = after.delay
		}
		if cfg.MaxInterval > 0 && wait > cfg.MaxInterval {
			wait = cfg.MaxInterval
		}

		logger.Debug("Retrying operation",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted: %w", errors.Join(ctx.Err(), unwrapMarkers(lastErr)))
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * multiplier)
	}

	return fmt.Errorf("operation failed after %d attempts: %w", cfg.MaxAttempts, unwrapMarkers(lastErr))
}

func unwrapMarkers(err error) error {
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err
	}
	var after *afterError
	if errors.As(err, &after) {
		return after.err
	}
	return err
}
