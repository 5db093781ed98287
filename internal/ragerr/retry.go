package ragerr

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryConfig configures exponential-backoff retry for writer_contention
// (spec §7: "Caller retries with backoff").
type RetryConfig struct {
	// MaxElapsed bounds total retry time; zero means backoff's default (15m).
	MaxElapsed time.Duration

	// MaxRetries bounds the attempt count regardless of elapsed time. 0 means
	// unbounded (still capped by MaxElapsed).
	MaxRetries uint64
}

// DefaultRetryConfig returns sensible defaults: a handful of attempts over a
// few seconds, enough to ride out a sibling session's commit.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxRetries: 5}
}

// Retry runs fn with exponential backoff until it succeeds, the context is
// canceled, or the retry budget is exhausted. Only meant for retryable
// kinds (writer_contention, wal_full); callers should not wrap arbitrary
// operations in Retry since non-retryable errors are surfaced immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	bo := backoff.NewExponentialBackOff()
	if cfg.MaxElapsed > 0 {
		bo.MaxElapsedTime = cfg.MaxElapsed
	}

	var policy backoff.BackOff = backoff.WithContext(bo, ctx)
	if cfg.MaxRetries > 0 {
		policy = backoff.WithMaxRetries(policy, cfg.MaxRetries)
	}

	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
