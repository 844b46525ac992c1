package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds retries of raw store I/O.
type RetryPolicy struct {
	MaxTries        uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy retries five times starting at 20ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxTries:        5,
		InitialInterval: 20 * time.Millisecond,
		MaxInterval:     500 * time.Millisecond,
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error { return backoff.Permanent(err) }

// Retry runs op until it succeeds, returns a permanent error, or the policy
// is exhausted. Exhaustion is reported wrapped in ErrStoreFatal.
//
// Only idempotent I/O belongs in op. Transforms passed to UpdateRaw must
// never be retried because they may commit nested updates.
func Retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	if p.MaxTries == 0 {
		p = DefaultRetryPolicy()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	permanent := false
	v, err := backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			permanent = true
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(p.MaxTries),
	)
	if err != nil && !permanent && ctx.Err() == nil {
		return v, fmt.Errorf("%w: %w", ErrStoreFatal, err)
	}
	return v, err
}
