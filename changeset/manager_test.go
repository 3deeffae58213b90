/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package changeset_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/octoplane/octoplane/changeset"
	"github.com/octoplane/octoplane/commitflow"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
	"github.com/octoplane/octoplane/remote/remotetest"
	"github.com/octoplane/octoplane/retry"
	"github.com/octoplane/octoplane/textpatch"
	"github.com/octoplane/octoplane/writegate"
)

var (
	controller = refs.Repository{Owner: "octoplane", Name: "octoplane"}
	demo       = refs.Repository{Owner: "octoplane", Name: "demo"}
)

func newManager(t *testing.T, fake *remotetest.Fake, open bool) *changeset.Manager {
	t.Helper()
	resolver, err := refs.NewResolver(controller, "refactor")
	if err != nil {
		t.Fatalf("NewResolver() = %v", err)
	}
	gate := writegate.New()
	gate.SetAllowed(open)
	flow := commitflow.New(gate, resolver, fake, commitflow.WithVerifyRetry(retry.Config{
		MaxAttempts: 1,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  time.Millisecond,
	}))
	return changeset.New(gate, resolver, fake, flow)
}

func TestApplyOpensPullRequest(t *testing.T) {
	fake := remotetest.NewFake()
	fake.Seed("main", "config.yaml", "A\nB\nC\n")
	m := newManager(t, fake, true)

	changes := []changeset.FileChange{
		{Path: "docs/new.md", Content: "fresh\n"},
		{Path: "config.yaml", Patch: "@@ -1,3 +1,3 @@\n A\n-B\n+B2\n C\n"},
		{Path: "notes.txt", Content: "notes\n"},
	}

	result, err := m.Apply(context.Background(), demo, "main", "feature", changes, "Batch update", "Three files.")
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if len(result.Commits) != 3 {
		t.Fatalf("commits = %d, want 3", len(result.Commits))
	}
	if result.Failed != nil {
		t.Fatalf("Failed = %+v, want nil", result.Failed)
	}
	if result.PullRequest == nil {
		t.Fatal("PullRequest nil, want one opened")
	}
	if len(fake.PROpens) != 1 {
		t.Fatalf("pr opens = %d, want 1", len(fake.PROpens))
	}
	if pr := fake.PROpens[0]; pr.Head != "feature" || pr.Base != "main" || pr.Title != "Batch update" {
		t.Errorf("pr = %+v", pr)
	}
	if got := fake.ContentAt("feature", "config.yaml"); got != "A\nB2\nC\n" {
		t.Errorf("patched content = %q", got)
	}
	if got := fake.ContentAt("main", "config.yaml"); got != "A\nB\nC\n" {
		t.Errorf("base branch changed: %q", got)
	}
}

func TestApplyStopsOnFirstFailure(t *testing.T) {
	fake := remotetest.NewFake()
	fake.Seed("main", "config.yaml", "A\nX\nC\n")
	m := newManager(t, fake, true)

	changes := []changeset.FileChange{
		{Path: "docs/new.md", Content: "fresh\n"},
		{Path: "config.yaml", Patch: "@@ -1,3 +1,3 @@\n A\n-B\n+B2\n C\n"},
		{Path: "notes.txt", Content: "never written\n"},
	}

	result, err := m.Apply(context.Background(), demo, "main", "feature", changes, "Batch", "")
	if err == nil {
		t.Fatal("Apply() = nil error, want failure")
	}
	var mismatch *textpatch.MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want *textpatch.MismatchError", err)
	}
	if result == nil {
		t.Fatal("result nil, want partial result")
	}
	if len(result.Commits) != 1 {
		t.Errorf("commits = %d, want 1 before the failure", len(result.Commits))
	}
	if result.Failed == nil || result.Failed.Index != 1 || result.Failed.Path != "config.yaml" {
		t.Errorf("Failed = %+v, want index 1 config.yaml", result.Failed)
	}
	if result.PullRequest != nil {
		t.Error("PullRequest set on partial failure")
	}
	if len(fake.PROpens) != 0 {
		t.Errorf("pr opens = %d, want 0", len(fake.PROpens))
	}
	if got := fake.ContentAt("feature", "notes.txt"); got != "" {
		t.Errorf("change after the failure was committed: %q", got)
	}
}

func TestApplyPreflightCatchesMissingPatchTarget(t *testing.T) {
	fake := remotetest.NewFake()
	m := newManager(t, fake, true)

	changes := []changeset.FileChange{
		{Path: "docs/new.md", Content: "fresh\n"},
		{Path: "ghost.yaml", Patch: "@@ -1 +1 @@\n-a\n+b\n"},
	}

	result, err := m.Apply(context.Background(), demo, "main", "feature", changes, "Batch", "")
	if !remote.IsNotFound(err) {
		t.Fatalf("Apply() = %v, want not-found", err)
	}
	if result.Failed == nil || result.Failed.Index != 1 {
		t.Errorf("Failed = %+v, want index 1", result.Failed)
	}
	if len(fake.Writes) != 0 {
		t.Errorf("writes = %d, want 0 when preflight fails", len(fake.Writes))
	}
}

func TestApplyGateClosed(t *testing.T) {
	fake := remotetest.NewFake()
	m := newManager(t, fake, false)

	_, err := m.Apply(context.Background(), demo, "main", "feature", []changeset.FileChange{
		{Path: "a.txt", Content: "a\n"},
	}, "Batch", "")
	var denied *writegate.WriteNotAllowedError
	if !errors.As(err, &denied) {
		t.Fatalf("Apply() = %v, want *writegate.WriteNotAllowedError", err)
	}
	if len(fake.Ensured) != 0 {
		t.Errorf("branches ensured = %v, want none", fake.Ensured)
	}
	if len(fake.Writes) != 0 {
		t.Errorf("writes = %d, want 0", len(fake.Writes))
	}
}

func TestApplyReusesOpenPullRequest(t *testing.T) {
	fake := remotetest.NewFake()
	fake.Existing = &remote.PullRequest{Number: 42, URL: "https://github.com/octoplane/demo/pull/42"}
	m := newManager(t, fake, true)

	result, err := m.Apply(context.Background(), demo, "main", "feature", []changeset.FileChange{
		{Path: "a.txt", Content: "a\n"},
	}, "Batch", "")
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if result.PullRequest.Number != 42 {
		t.Errorf("PR = %+v, want the existing #42", result.PullRequest)
	}
	if len(fake.PROpens) != 0 {
		t.Errorf("pr opens = %d, want 0 when reusing", len(fake.PROpens))
	}
}

func TestApplyValidation(t *testing.T) {
	fake := remotetest.NewFake()
	m := newManager(t, fake, true)
	ctx := context.Background()

	if _, err := m.Apply(ctx, demo, "main", "feature", nil, "t", ""); err == nil {
		t.Error("empty batch accepted")
	}
	if _, err := m.Apply(ctx, demo, "main", "", []changeset.FileChange{{Path: "a", Content: "x"}}, "t", ""); err == nil {
		t.Error("empty branch accepted")
	}
	if _, err := m.Apply(ctx, demo, "main", "main", []changeset.FileChange{{Path: "a", Content: "x"}}, "t", ""); err == nil {
		t.Error("branch equal to base accepted")
	}
	if _, err := m.Apply(ctx, demo, "main", "feature", []changeset.FileChange{{Content: "x"}}, "t", ""); err == nil {
		t.Error("change without path accepted")
	}
}

func TestApplyControllerBaseSubstitution(t *testing.T) {
	fake := remotetest.NewFake()
	fake.Seed("refactor", "README.md", "draft\n")
	m := newManager(t, fake, true)

	result, err := m.Apply(context.Background(), controller, "", "feature", []changeset.FileChange{
		{Path: "README.md", Content: "final\n"},
	}, "Promote", "")
	if err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if result.PullRequest == nil {
		t.Fatal("PullRequest nil")
	}
	if pr := fake.PROpens[0]; pr.Base != "refactor" {
		t.Errorf("pr base = %q, want refactor", pr.Base)
	}
	// The new branch starts from the working branch's state.
	if got := fake.ContentAt("feature", "README.md"); got != "final\n" {
		t.Errorf("content = %q", got)
	}
}

func TestApplyRejectsHeadThatResolvesElsewhere(t *testing.T) {
	fake := remotetest.NewFake()
	fake.Seed("refactor", "README.md", "draft\n")
	m := newManager(t, fake, true)

	// On the controller repository "main" resolves to the working
	// branch, so commits would land on "refactor" while the pull
	// request claimed "main" as its head.
	_, err := m.Apply(context.Background(), controller, "refactor", "main", []changeset.FileChange{
		{Path: "README.md", Content: "final\n"},
	}, "Promote", "")
	if err == nil {
		t.Fatal("Apply() = nil, want head rejection")
	}
	if !strings.Contains(err.Error(), `resolves to "refactor"`) {
		t.Errorf("err = %v", err)
	}
	if len(fake.Ensured) != 0 || len(fake.Writes) != 0 || len(fake.PROpens) != 0 {
		t.Errorf("side effects = %d ensured, %d writes, %d prs; want none",
			len(fake.Ensured), len(fake.Writes), len(fake.PROpens))
	}
	if got := fake.ContentAt("refactor", "README.md"); got != "draft\n" {
		t.Errorf("working branch content = %q, want untouched draft", got)
	}
}
