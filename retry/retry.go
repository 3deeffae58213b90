/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package retry provides exponential-backoff retry for remote reads that
// may observe stale state immediately after a write.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config bounds the retry loop. A zero MaxAttempts disables retries
// entirely: the operation runs once.
type Config struct {
	// MaxAttempts is the number of retries after the first try.
	MaxAttempts int
	// BaseBackoff is the initial wait between attempts.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// MaxJitter is the random slack added to each wait.
	MaxJitter time.Duration
}

// normalize clamps negative values to zero so a hand-built Config can
// never make Do misbehave: no retries, no waits.
func (c Config) normalize() Config {
	c.MaxAttempts = max(c.MaxAttempts, 0)
	c.BaseBackoff = max(c.BaseBackoff, 0)
	c.MaxBackoff = max(c.MaxBackoff, 0)
	c.MaxJitter = max(c.MaxJitter, 0)
	return c
}

// DefaultConfig suits read-after-write verification, where the remote
// usually converges within a second or two.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  5 * time.Second,
		MaxJitter:   250 * time.Millisecond,
	}
}

// Do executes fn with exponential backoff, retrying only errors the
// shouldRetry predicate accepts.
func Do[T any](ctx context.Context, cfg Config, operation string, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	cfg = cfg.normalize()

	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxAttempts; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}

		if !shouldRetry(lastErr) {
			return result, lastErr
		}

		if attempt >= cfg.MaxAttempts {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)

		var jitter time.Duration
		if cfg.MaxJitter > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter)))
			if err == nil {
				jitter = time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_attempts", cfg.MaxAttempts).
			With("backoff", backoff+jitter).
			With("error", lastErr.Error()).
			Warn("Transient failure, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}

	return result, fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.MaxAttempts+1, lastErr)
}
