// Package retry runs an operation with bounded attempts and backoff.
// Errors wrapped with Permanent stop the loop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/audience-segments/internal/pkg/logger"
)

// ErrMaxAttempts is returned, wrapping the last error, once every attempt failed.
var ErrMaxAttempts = errors.New("max attempts exceeded")

// Policy controls the retry loop. A Multiplier of 0 or 1 gives a fixed delay.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// Fixed returns a policy with a constant delay between attempts.
func Fixed(attempts int, delay time.Duration) Policy {
	return Policy{Attempts: attempts, Delay: delay}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do calls op until it succeeds, returns a permanent error, ctx is done or
// the policy runs out of attempts. Permanent errors are returned unwrapped.
func Do(ctx context.Context, p Policy, name string, op func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	delay := p.Delay

	var err error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == p.Attempts {
			break
		}

		logger.Info("retrying after failure", "op", name, "attempt", attempt, "max_attempts", p.Attempts, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		if p.Multiplier > 1 {
			delay = time.Duration(float64(delay) * p.Multiplier)
			if p.MaxDelay > 0 && delay > p.MaxDelay {
				delay = p.MaxDelay
			}
		}
	}

	logger.Error("giving up", "op", name, "attempts", p.Attempts, "error", err)
	return fmt.Errorf("%w after %d attempts: %w", ErrMaxAttempts, p.Attempts, err)
}
