/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"testing"

	"github.com/octoplane/octoplane/tooltrace"
	"github.com/octoplane/octoplane/writegate"
)

func noopHandler(_ context.Context, _ Call) map[string]any {
	return map[string]any{"ok": true}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(writegate.New(), tooltrace.NewRecorder(context.Background()))
}

func TestRegisterValidation(t *testing.T) {
	r := newTestRegistry(t)

	if err := r.Register(Definition{Name: "", SideEffect: ReadOnly, Handler: noopHandler}); err == nil {
		t.Error("nameless tool accepted")
	}
	if err := r.Register(Definition{Name: "no_handler", SideEffect: ReadOnly}); err == nil {
		t.Error("handlerless tool accepted")
	}
	if err := r.Register(Definition{Name: "no_class", Handler: noopHandler}); err == nil {
		t.Error("tool without a side-effect class accepted")
	}

	if err := r.Register(Definition{Name: "ok", SideEffect: ReadOnly, Handler: noopHandler}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(Definition{Name: "ok", SideEffect: ReadOnly, Handler: noopHandler}); err == nil {
		t.Error("duplicate name accepted")
	}
}

func TestRegisterRemoteMutationNeedsGate(t *testing.T) {
	r := NewRegistry(nil, tooltrace.NewRecorder(context.Background()))

	err := r.Register(Definition{Name: "mutator", SideEffect: RemoteMutation, Handler: noopHandler})
	if err == nil {
		t.Fatal("remote-mutation tool registered without a gate")
	}

	if err := r.Register(Definition{Name: "reader", SideEffect: ReadOnly, Handler: noopHandler}); err != nil {
		t.Fatalf("read-only tool rejected: %v", err)
	}
}

func TestDispatch(t *testing.T) {
	r := newTestRegistry(t)

	var gotArgs map[string]any
	if err := r.Register(Definition{
		Name:       "echo",
		SideEffect: ReadOnly,
		Handler: func(_ context.Context, call Call) map[string]any {
			gotArgs = call.Args
			return map[string]any{"echoed": call.Args["value"]}
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	resp := r.Dispatch(context.Background(), Call{ID: "1", Name: "echo", Args: map[string]any{"value": "hi"}})
	if resp["echoed"] != "hi" {
		t.Errorf("resp = %v", resp)
	}
	if gotArgs["value"] != "hi" {
		t.Errorf("handler args = %v", gotArgs)
	}

	resp = r.Dispatch(context.Background(), Call{ID: "2", Name: "nonesuch"})
	if resp["error"] == nil {
		t.Errorf("unknown tool resp = %v, want error", resp)
	}
}

func TestDefinitionsOrder(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(Definition{Name: name, SideEffect: ReadOnly, Handler: noopHandler}); err != nil {
			t.Fatalf("Register %s: %v", name, err)
		}
	}
	defs := r.Definitions()
	if len(defs) != 3 || defs[0].Name != "c" || defs[1].Name != "a" || defs[2].Name != "b" {
		t.Errorf("definitions out of registration order: %v", defs)
	}
}

func TestSideEffectString(t *testing.T) {
	cases := map[SideEffect]string{
		SideEffectUnspecified: "unspecified",
		ReadOnly:              "read-only",
		LocalMutation:         "local-mutation",
		RemoteMutation:        "remote-mutation",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", s, got, want)
		}
	}
}
