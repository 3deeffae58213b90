/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/octoplane/octoplane/tools/params"
	"github.com/octoplane/octoplane/tooltrace"
	"github.com/octoplane/octoplane/writegate"
)

// Registry holds the tool set served to the assistant. Registration
// validates each definition once; dispatch then runs handlers under the
// invocation trace.
type Registry struct {
	gate     *writegate.Gate
	recorder *tooltrace.Recorder

	mu    sync.RWMutex
	tools map[string]Definition
	order []string
}

// NewRegistry builds an empty registry. The gate is required for any
// remote-mutation tool to register.
func NewRegistry(gate *writegate.Gate, recorder *tooltrace.Recorder) *Registry {
	return &Registry{
		gate:     gate,
		recorder: recorder,
		tools:    map[string]Definition{},
	}
}

// Register adds a tool. Names must be unique, the side-effect class must
// be declared, and remote-mutation tools require a wired gate.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("tool name is required")
	}
	if def.Handler == nil {
		return fmt.Errorf("tool %s has no handler", def.Name)
	}
	switch def.SideEffect {
	case ReadOnly, LocalMutation, RemoteMutation:
	default:
		return fmt.Errorf("tool %s does not declare a side-effect class", def.Name)
	}
	if def.SideEffect == RemoteMutation && r.gate == nil {
		return fmt.Errorf("tool %s mutates the remote but the registry has no write gate", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// Get looks up a tool by name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// Definitions returns the registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name])
	}
	return defs
}

// Dispatch runs one tool call under the invocation trace. Unknown tools
// and handler failures come back as in-band error responses.
func (r *Registry) Dispatch(ctx context.Context, call Call) map[string]any {
	def, ok := r.Get(call.Name)
	if !ok {
		return params.Error("unknown tool %q", call.Name)
	}

	ctx, inv := r.recorder.Start(ctx, call.Name, def.SideEffect.String(), call.Args)
	resp := def.Handler(ctx, call)

	var err error
	if msg, ok := resp["error"].(string); ok && msg != "" {
		err = errors.New(msg)
	}
	inv.Complete(responseSize(resp), err)
	return resp
}

func responseSize(resp map[string]any) int {
	raw, err := json.Marshal(resp)
	if err != nil {
		return 0
	}
	return len(raw)
}
