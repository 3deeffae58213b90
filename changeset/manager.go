/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package changeset commits a batch of file changes to a dedicated branch
// and opens a pull request once every change has been verified.
//
// The run is a one-way state machine: pending, branch-ensured,
// committing, all-committed, pr-opened. The first failing change stops
// the run; commits already on the branch stay there, and no pull request
// is opened for a partial batch.
package changeset

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/octoplane/octoplane/commitflow"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
	"github.com/octoplane/octoplane/writegate"
	"golang.org/x/sync/errgroup"
)

// FileChange is one entry in a batch. A non-empty Patch selects patch
// mode; otherwise Content replaces the file wholesale.
type FileChange struct {
	Path    string
	Content string
	Patch   string
}

// FailedChange reports the first change that could not be committed.
type FailedChange struct {
	// Index is the zero-based position in the batch.
	Index int
	Path  string
	Err   error
}

// Result reports a batch run. On success PullRequest and Commits are set.
// On partial failure Commits holds the changes that landed before the
// failure, Failed identifies the failing change, and PullRequest is nil.
type Result struct {
	PullRequest *remote.PullRequest
	Commits     []*commitflow.CommitResult
	Failed      *FailedChange
}

// Manager orchestrates branch creation, per-file commits, and the pull
// request.
type Manager struct {
	gate     *writegate.Gate
	resolver *refs.Resolver
	store    remote.Store
	flow     *commitflow.Orchestrator
}

// New builds a Manager sharing the same gate, resolver, and store as the
// commit orchestrator it drives.
func New(gate *writegate.Gate, resolver *refs.Resolver, store remote.Store, flow *commitflow.Orchestrator) *Manager {
	return &Manager{gate: gate, resolver: resolver, store: store, flow: flow}
}

// Apply commits changes to branch (created from base if needed) and opens
// a pull request from branch into base. On partial failure both the
// Result and the error are non-nil so callers see the commits that landed.
func (m *Manager) Apply(ctx context.Context, repo refs.Repository, base, branch string, changes []FileChange, title, body string) (*Result, error) {
	if len(changes) == 0 {
		return nil, errors.New("no changes to apply")
	}
	if branch == "" {
		return nil, errors.New("branch name is required")
	}
	for i, c := range changes {
		if c.Path == "" {
			return nil, fmt.Errorf("change %d has no path", i)
		}
	}

	if err := m.gate.Ensure(fmt.Sprintf("open pull request on %s", repo)); err != nil {
		return nil, err
	}

	baseRef := m.resolver.EffectiveRef(repo, base)
	if branch == baseRef {
		return nil, fmt.Errorf("branch %q must differ from base %q", branch, baseRef)
	}
	// The head must resolve to itself, or the per-file commits would be
	// redirected onto another branch while the pull request is opened
	// from this one.
	if resolved := m.resolver.EffectiveRef(repo, branch); resolved != branch {
		return nil, fmt.Errorf("branch %q resolves to %q and cannot be a pull request head", branch, resolved)
	}

	log := clog.FromContext(ctx).With("repo", repo.String()).With("branch", branch).With("base", baseRef)
	log.With("state", "pending").Infof("Applying %d changes", len(changes))

	created, err := m.store.EnsureBranch(ctx, repo, branch, baseRef)
	if err != nil {
		return nil, fmt.Errorf("ensuring branch %s: %w", branch, err)
	}
	log.With("state", "branch-ensured").Infof("Branch ready (created=%t)", created)

	if failed := m.preflightPatches(ctx, repo, branch, changes); failed != nil {
		log.With("state", "failed").Errorf("Preflight failed for %s: %v", failed.Path, failed.Err)
		return &Result{Failed: failed},
			fmt.Errorf("preflight read of %s (change %d of %d): %w", failed.Path, failed.Index+1, len(changes), failed.Err)
	}

	result := &Result{}
	for i, change := range changes {
		log.With("state", "committing").Infof("Committing %s (%d of %d)", change.Path, i+1, len(changes))

		var commit *commitflow.CommitResult
		var err error
		if change.Patch != "" {
			commit, err = m.flow.ApplyPatch(ctx, repo, change.Path, branch, change.Patch, "")
		} else {
			commit, err = m.flow.ApplyTextUpdate(ctx, repo, change.Path, branch, change.Content, "")
		}
		if err != nil {
			result.Failed = &FailedChange{Index: i, Path: change.Path, Err: err}
			log.With("state", "failed").Errorf("Change %s failed: %v", change.Path, err)
			return result, fmt.Errorf("applying %s (change %d of %d): %w", change.Path, i+1, len(changes), err)
		}
		result.Commits = append(result.Commits, commit)
	}
	log.With("state", "all-committed").Infof("All %d changes verified", len(changes))

	pr, err := m.store.FindOpenPullRequest(ctx, repo, branch, baseRef)
	if err != nil {
		return result, fmt.Errorf("looking up open pull request for %s: %w", branch, err)
	}
	if pr == nil {
		pr, err = m.store.OpenPullRequest(ctx, repo, branch, baseRef, title, body)
		if err != nil {
			return result, fmt.Errorf("opening pull request for %s: %w", branch, err)
		}
	} else {
		log.Infof("Reusing open PR #%d", pr.Number)
	}
	result.PullRequest = pr
	log.With("state", "pr-opened").Infof("PR #%d: %s", pr.Number, pr.URL)

	return result, nil
}

// preflightPatches confirms every patch-mode target exists on the branch
// before any commit is attempted. Contents are discarded; each commit
// still reads fresh.
func (m *Manager) preflightPatches(ctx context.Context, repo refs.Repository, branch string, changes []FileChange) *FailedChange {
	g, ctx := errgroup.WithContext(ctx)
	readErrs := make([]error, len(changes))
	for i, change := range changes {
		if change.Patch == "" {
			continue
		}
		g.Go(func() error {
			_, err := m.store.Read(ctx, repo, change.Path, branch)
			readErrs[i] = err
			return nil
		})
	}
	// Goroutines record their errors instead of returning them, so the
	// reported failure is the lowest-index one rather than whichever
	// read lost the race.
	_ = g.Wait()

	for i, err := range readErrs {
		if err != nil {
			return &FailedChange{Index: i, Path: changes[i].Path, Err: err}
		}
	}
	return nil
}
