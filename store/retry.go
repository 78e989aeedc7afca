package store

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

// RunWithRetry calls attempt until it succeeds, fails with an error other
// than ErrConcurrentModification, or cfg.MaxAttempts is reached. Between
// attempts it sleeps for a jittered exponential backoff derived from
// cfg.RetryBaseDelay. Exhaustion returns an *ExhaustedError.
func RunWithRetry(ctx context.Context, cfg Config, attempt func(ctx context.Context) error) error {
	cfg.Validate()

	var lastErr error
	for i := 0; i < cfg.MaxAttempts; i++ {
		if i > 0 {
			if err := sleep(ctx, backoff(cfg.RetryBaseDelay, i)); err != nil {
				return err
			}
		}
		if cfg.Observer != nil {
			cfg.Observer.TxAttempt()
		}

		err := attempt(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrConcurrentModification) {
			return err
		}
		if cfg.Observer != nil {
			cfg.Observer.TxConflict()
		}
		lastErr = err
	}

	if cfg.Observer != nil {
		cfg.Observer.TxExhausted()
	}
	return &ExhaustedError{Attempts: cfg.MaxAttempts, Err: lastErr}
}

// backoff returns a delay in [d/2, d) where d = base * 2^(retry-1).
func backoff(base time.Duration, retry int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << (retry - 1)
	if d <= 0 || d > time.Second {
		d = time.Second
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
