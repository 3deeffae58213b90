/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package writegate

import (
	"fmt"
	"sync/atomic"
)

// Gate guards mutating operations behind an explicit authorization flag.
// The zero value is a closed gate. A single Gate is constructed per process
// and injected into every component that mutates state, keeping the shared
// flag visible rather than hiding it behind a package global.
type Gate struct {
	allowed atomic.Bool
}

// New returns a closed Gate.
func New() *Gate {
	return &Gate{}
}

// SetAllowed flips the authorization flag. It is idempotent and is the only
// mutator of gate state.
func (g *Gate) SetAllowed(approved bool) {
	g.allowed.Store(approved)
}

// Allowed reports the current state of the flag.
func (g *Gate) Allowed() bool {
	return g.allowed.Load()
}

// Ensure returns a *WriteNotAllowedError when the gate is closed. The scope
// names what was about to be mutated (e.g. "owner/repo@branch") so the error
// is actionable without further context.
func (g *Gate) Ensure(scope string) error {
	if g.allowed.Load() {
		return nil
	}
	return &WriteNotAllowedError{Scope: scope}
}

// WriteNotAllowedError indicates a mutating operation ran while the gate was
// closed. It is always recoverable: the caller can authorize writes and
// retry.
type WriteNotAllowedError struct {
	// Scope describes the mutation that was refused.
	Scope string
}

func (e *WriteNotAllowedError) Error() string {
	return fmt.Sprintf("write actions are not authorized (attempted: %s)", e.Scope)
}
