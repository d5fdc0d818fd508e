package service

import (
	"context"
	"errors"
	"time"
)

// ReadRetry bounds retries of idempotent reads. Writes are never retried
// through it.
type ReadRetry struct {
	MaxRetries int
	Backoff    time.Duration
}

func (r ReadRetry) do(ctx context.Context, fn func(context.Context) error) error {
	delay := r.Backoff
	var err error
	for attempt := 0; ; attempt++ {
		err = storeError(fn(ctx))
		if err == nil || !errors.Is(err, ErrStoreUnavailable) || attempt >= r.MaxRetries {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(delay):
		}
		delay *= 2
	}
}
