/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package retry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/octoplane/octoplane/retry"
)

func testConfig() retry.Config {
	return retry.Config{
		MaxAttempts: 3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func alwaysRetry(err error) bool {
	return err != nil
}

func TestDo_Success(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	result, err := retry.Do(context.Background(), testConfig(), "read", alwaysRetry, func() (string, error) {
		attempts.Add(1)
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" {
		t.Fatalf("expected result %q, got %q", "ok", result)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_SuccessAfterRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	stale := errors.New("content not yet visible")

	result, err := retry.Do(context.Background(), testConfig(), "read", alwaysRetry, func() (int, error) {
		n := attempts.Add(1)
		if n < 3 {
			return 0, stale
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != 42 {
		t.Fatalf("expected 42, got %d", result)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	hard := errors.New("401 unauthorized")

	_, err := retry.Do(context.Background(), testConfig(), "read", func(error) bool { return false }, func() (string, error) {
		attempts.Add(1)
		return "", hard
	})
	if !errors.Is(err, hard) {
		t.Fatalf("expected %v, got %v", hard, err)
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	stale := errors.New("still stale")

	_, err := retry.Do(context.Background(), testConfig(), "verify", alwaysRetry, func() (string, error) {
		attempts.Add(1)
		return "", stale
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !errors.Is(err, stale) {
		t.Fatalf("expected wrapped %v, got %v", stale, err)
	}
	if got := attempts.Load(); got != 4 {
		t.Fatalf("expected 4 attempts, got %d", got)
	}
}

func TestDo_ZeroAttemptsRunsOnce(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	cfg := testConfig()
	cfg.MaxAttempts = 0

	_, err := retry.Do(context.Background(), cfg, "read", alwaysRetry, func() (string, error) {
		attempts.Add(1)
		return "", errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := attempts.Load(); got != 1 {
		t.Fatalf("expected 1 attempt, got %d", got)
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := retry.Do(ctx, testConfig(), "read", alwaysRetry, func() (string, error) {
		return "", errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNegativeConfigRunsOnce(t *testing.T) {
	t.Parallel()
	attempts := 0
	_, err := retry.Do(context.Background(), retry.Config{MaxAttempts: -3, BaseBackoff: -time.Second},
		"read", alwaysRetry, func() (string, error) {
			attempts++
			return "", errors.New("still stale")
		})
	if err == nil {
		t.Fatal("expected exhaustion error")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (negative config clamps to no retries)", attempts)
	}
}
