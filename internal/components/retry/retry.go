// Package retry runs a fallible operation under a bounded exponential backoff schedule.
// It knows nothing about what the operation does, so it can wrap HTTP calls as well as
// anything else that fails transiently.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how many times an operation is attempted and how long to wait
// between attempts. Unset attempts, intervals and multiplier fall back to DefaultPolicy.
type Policy struct {
	// MaxAttempts counts the first attempt, so 6 means 1 attempt + 5 retries.
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// RandomizationFactor jitters every wait by +/- the given fraction.
	RandomizationFactor float64
}

// DefaultPolicy waits a randomized 1s, 2s, 4s... up to 60s between attempts
// and gives up after 6 attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:         6,
		InitialInterval:     time.Second,
		MaxInterval:         time.Minute,
		Multiplier:          2,
		RandomizationFactor: 0.5,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.InitialInterval <= 0 {
		p.InitialInterval = def.InitialInterval
	}
	if p.MaxInterval <= 0 {
		p.MaxInterval = def.MaxInterval
	}
	if p.Multiplier < 1 {
		p.Multiplier = def.Multiplier
	}
	if p.RandomizationFactor < 0 || p.RandomizationFactor > 1 {
		p.RandomizationFactor = def.RandomizationFactor
	}
	return p
}

func (p Policy) schedule(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.Multiplier = p.Multiplier
	eb.RandomizationFactor = p.RandomizationFactor
	// attempts are bounded by count, not by elapsed time
	eb.MaxElapsedTime = 0

	return backoff.WithContext(
		backoff.WithMaxRetries(eb, uint64(p.MaxAttempts-1)),
		ctx,
	)
}

// ExhaustedRetriesError is returned when every attempt allowed by a Policy failed.
// It wraps the error of the last attempt.
type ExhaustedRetriesError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %s", e.Attempts, e.Err.Error())
}

func (e *ExhaustedRetriesError) Unwrap() error {
	return e.Err
}

// Notify is called after a failed attempt that will be retried, with the
// 1-based number of the attempt that failed and the wait before the next one.
type Notify func(attempt int, err error, wait time.Duration)

// Do calls op until it succeeds, the policy runs out of attempts or ctx is done.
//
// Every error returned by op is retried. When all attempts fail, an
// *ExhaustedRetriesError wrapping the last error is returned. When ctx is done,
// the context's error is returned and no further attempt is made.
func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error), notify Notify) (T, error) {
	policy = policy.withDefaults()

	attempts := 0
	res, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempts++
			return op(ctx)
		},
		policy.schedule(ctx),
		func(err error, wait time.Duration) {
			if notify != nil {
				notify(attempts, err, wait)
			}
		},
	)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, &ExhaustedRetriesError{Attempts: attempts, Err: err}
}
