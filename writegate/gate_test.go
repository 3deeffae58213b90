/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package writegate

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestGateDefaultsClosed(t *testing.T) {
	g := New()

	if g.Allowed() {
		t.Fatal("new gate should be closed")
	}

	err := g.Ensure("acme/widgets@main")
	if err == nil {
		t.Fatal("expected error from closed gate")
	}

	var wna *WriteNotAllowedError
	if !errors.As(err, &wna) {
		t.Fatalf("expected *WriteNotAllowedError, got %T", err)
	}
	if wna.Scope != "acme/widgets@main" {
		t.Fatalf("scope = %q, want %q", wna.Scope, "acme/widgets@main")
	}
	if !strings.Contains(err.Error(), "acme/widgets@main") {
		t.Fatalf("error message should carry scope: %q", err.Error())
	}
}

func TestGateToggle(t *testing.T) {
	g := New()

	g.SetAllowed(true)
	if !g.Allowed() {
		t.Fatal("gate should be open")
	}
	if err := g.Ensure("anything"); err != nil {
		t.Fatalf("Ensure on open gate: %v", err)
	}

	// Idempotent.
	g.SetAllowed(true)
	if !g.Allowed() {
		t.Fatal("gate should still be open")
	}

	g.SetAllowed(false)
	if g.Allowed() {
		t.Fatal("gate should be closed again")
	}
	if err := g.Ensure("anything"); err == nil {
		t.Fatal("Ensure on closed gate should fail")
	}
}

func TestGateConcurrentReads(t *testing.T) {
	g := New()
	g.SetAllowed(true)

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				if err := g.Ensure("concurrent"); err != nil {
					t.Errorf("Ensure: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()
}
