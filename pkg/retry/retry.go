package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

var (
	// ErrInvalidMaxAttempts is returned when a policy allows no attempts.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)

// Backoff yields the delay to wait after a failed attempt (1-based).
type Backoff interface {
	Delay(attempt int) time.Duration
}

type constant time.Duration

// Constant waits the same delay between every attempt.
func Constant(d time.Duration) Backoff {
	return constant(d)
}

func (c constant) Delay(int) time.Duration {
	return time.Duration(c)
}

type exponential struct {
	base time.Duration
	max  time.Duration
}

// Exponential doubles base after each attempt, capped at max when max > 0.
func Exponential(base, max time.Duration) Backoff {
	return exponential{base: base, max: max}
}

func (e exponential) Delay(attempt int) time.Duration {
	delay := e.base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if e.max > 0 && delay >= e.max {
			return e.max
		}
	}
	return delay
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes how an operation is retried.
type Policy struct {
	MaxAttempts int
	Backoff     Backoff
	Sleep       SleepFunc
	Logger      *slog.Logger
}

// Do runs op until it succeeds, returns a permanent error, or MaxAttempts is
// exhausted. The error of the last attempt is returned.
func (p Policy) Do(ctx context.Context, op func(attempt int) error) error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(attempt)
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if attempt == p.MaxAttempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.Delay(attempt)
		}
		logger.Warn("attempt failed, retrying",
			"attempt", attempt, "maxAttempts", p.MaxAttempts, "delay", delay, "err", lastErr)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Sleep waits for d with context awareness.
func Sleep(ctx context.Context, d time.Duration) error {
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

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
