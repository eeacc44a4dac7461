// Package retry runs an operation under a bounded exponential backoff policy.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 2 * time.Second
	DefaultMultiplier  = 2.0
)

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Multiplier:  DefaultMultiplier,
	}
}

// Delay is the wait after failed attempt n (1-based): BaseDelay * Multiplier^n.
// With the default policy that is 4s after the first failure and 8s after the second.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(mult, float64(attempt)))
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Do calls fn until it succeeds, returns a Permanent error, the context is done
// or the policy runs out of attempts. It returns the number of attempts made and
// the last error.
func (p Policy) Do(ctx context.Context, clk clockwork.Clock, fn func(ctx context.Context, attempt int) error) (int, error) {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	max := p.attempts()
	var lastErr error
	for attempt := 1; attempt <= max; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, errors.Join(lastErr, err)
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return attempt, nil
		}

		var perm *permanentError
		if errors.As(lastErr, &perm) {
			return attempt, perm.err
		}

		if attempt == max {
			break
		}

		select {
		case <-ctx.Done():
			return attempt, errors.Join(lastErr, ctx.Err())
		case <-clk.After(p.Delay(attempt)):
		}
	}

	return max, lastErr
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}
