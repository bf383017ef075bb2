package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/m-mizutani/goerr/v2"
)

// ErrExhausted is returned when every attempt failed with a retryable error.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy is the shared retry policy for oracle calls.
type Policy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int

	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64

	// Jitter is the randomization factor applied to each interval (0 disables it).
	Jitter float64

	// Retryable decides whether a failed attempt is tried again. Nil retries every error.
	Retryable func(error) bool
}

// DefaultPolicy retries up to 5 attempts starting at 1s, doubling up to 30s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.2,
	}
}

// Validate checks that the policy can be executed.
func (p Policy) Validate() error {
	eb := goerr.NewBuilder(goerr.V("policy", p))
	if p.MaxAttempts < 1 {
		return eb.New("MaxAttempts must be at least 1")
	}
	if p.InitialInterval < 0 || p.MaxInterval < p.InitialInterval {
		return eb.New("invalid backoff interval")
	}
	if p.Multiplier < 1.0 {
		return eb.New("Multiplier must be at least 1.0")
	}
	return nil
}

// NotifyFunc observes a failed attempt before the next wait.
type NotifyFunc func(err error, attempt int, wait time.Duration)

type config struct {
	notify NotifyFunc
}

type Option func(*config)

// WithNotify registers a callback invoked after every retryable failure that will be retried.
func WithNotify(fn NotifyFunc) Option {
	return func(c *config) {
		c.notify = fn
	}
}

// Do runs op until it succeeds, fails with a non-retryable error, or the policy is exhausted.
// Non-retryable errors are returned as is. Exhaustion wraps the last error with ErrExhausted.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error), options ...Option) (T, error) {
	var zero T
	if err := p.Validate(); err != nil {
		return zero, err
	}

	cfg := &config{}
	for _, opt := range options {
		opt(cfg)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter

	var (
		attempt   int
		lastErr   error
		permanent bool
	)

	operation := func() (T, error) {
		attempt++
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if ctx.Err() != nil || (p.Retryable != nil && !p.Retryable(err)) {
			permanent = true
			return zero, backoff.Permanent(err)
		}
		return zero, err
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(p.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	}
	if cfg.notify != nil {
		retryOpts = append(retryOpts, backoff.WithNotify(func(err error, wait time.Duration) {
			cfg.notify(err, attempt, wait)
		}))
	}

	v, err := backoff.Retry(ctx, operation, retryOpts...)
	if err == nil {
		return v, nil
	}

	if permanent {
		return zero, lastErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return zero, goerr.Wrap(ctxErr, "retry interrupted", goerr.V("attempts", attempt))
	}
	if lastErr == nil {
		lastErr = err
	}
	return zero, goerr.Wrap(errors.Join(ErrExhausted, lastErr), "all attempts failed",
		goerr.V("attempts", attempt),
		goerr.V("max_attempts", p.MaxAttempts),
	)
}
