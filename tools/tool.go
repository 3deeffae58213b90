/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import "context"

// SideEffect classifies what a tool touches. Every tool must declare one
// explicitly; the zero value is rejected at registration.
type SideEffect int

const (
	// SideEffectUnspecified is the invalid zero value.
	SideEffectUnspecified SideEffect = iota
	// ReadOnly tools observe state without changing anything.
	ReadOnly
	// LocalMutation tools change process-local state (the gate, a
	// workspace clone) but never the remote.
	LocalMutation
	// RemoteMutation tools commit, branch, or open pull requests.
	RemoteMutation
)

func (s SideEffect) String() string {
	switch s {
	case ReadOnly:
		return "read-only"
	case LocalMutation:
		return "local-mutation"
	case RemoteMutation:
		return "remote-mutation"
	default:
		return "unspecified"
	}
}

// Call is a provider-independent tool invocation.
type Call struct {
	ID   string
	Name string
	Args map[string]any
}

// Handler executes one tool call and returns a response map. Errors are
// reported in-band under the "error" key so they reach the model rather
// than aborting the serving loop.
type Handler func(ctx context.Context, call Call) map[string]any

// Definition describes one tool: its schema, side-effect class, and
// handler. Input holds a pointer to the typed parameter struct the input
// schema is derived from; nil means the tool takes no arguments.
type Definition struct {
	Name        string
	Description string
	SideEffect  SideEffect
	Input       any
	Handler     Handler
}
