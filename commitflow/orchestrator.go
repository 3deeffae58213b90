/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package commitflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
	"github.com/octoplane/octoplane/retry"
	"github.com/octoplane/octoplane/textpatch"
	"github.com/octoplane/octoplane/writegate"
)

// CommitResult reports one verified commit. Every field is populated from
// the post-commit re-read of the file, not from the write response.
type CommitResult struct {
	Path string
	// Ref is the effective branch the commit landed on.
	Ref string
	// SHABefore is empty when the commit created the file.
	SHABefore string
	SHAAfter  string
	// Content is the file content observed after the commit.
	Content string
	// Diff is an informational unified diff from the prior content to the
	// observed content.
	Diff string
}

// VerificationError indicates a commit landed but the re-read content does
// not match what was intended.
type VerificationError struct {
	Path     string
	Ref      string
	Intended string
	Observed string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verification failed: %s at %s does not match the intended content after commit", e.Path, e.Ref)
}

// errStaleRead marks a verification read that succeeded but returned
// content other than what was just written. The remote may simply not have
// converged yet, so it is retryable.
var errStaleRead = errors.New("observed content does not match intended content")

// Orchestrator coordinates gate, ref resolution, and the remote store into
// verified single-file commits.
type Orchestrator struct {
	gate     *writegate.Gate
	resolver *refs.Resolver
	store    remote.Store
	verify   retry.Config
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithVerifyRetry overrides the retry policy for post-commit verification
// reads.
func WithVerifyRetry(cfg retry.Config) Option {
	return func(o *Orchestrator) {
		o.verify = cfg
	}
}

// New builds an Orchestrator over the given collaborators.
func New(gate *writegate.Gate, resolver *refs.Resolver, store remote.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		gate:     gate,
		resolver: resolver,
		store:    store,
		verify:   retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ApplyTextUpdate commits newText to path, creating the file when it does
// not exist. An empty message selects a default by create-vs-update.
func (o *Orchestrator) ApplyTextUpdate(ctx context.Context, repo refs.Repository, path, ref, newText, message string) (*CommitResult, error) {
	branch := o.resolver.EffectiveRef(repo, ref)

	if err := o.gate.Ensure(fmt.Sprintf("update %s:%s", repo, path)); err != nil {
		return nil, err
	}

	var before string
	var priorSHA string
	snap, err := o.store.Read(ctx, repo, path, branch)
	switch {
	case err == nil:
		before = string(snap.Content)
		priorSHA = snap.SHA
	case remote.IsNotFound(err):
		// New file: commit with no prior SHA.
	default:
		return nil, fmt.Errorf("reading %s at %s: %w", path, branch, err)
	}

	if message == "" {
		if priorSHA == "" {
			message = fmt.Sprintf("Create %s", path)
		} else {
			message = fmt.Sprintf("Update %s", path)
		}
	}

	return o.commitAndVerify(ctx, repo, path, branch, before, newText, message, priorSHA)
}

// ApplyPatch applies a unified diff to path and commits the result. The
// file must already exist; a read miss is a hard failure. Patch mismatches
// propagate as *textpatch.MismatchError.
func (o *Orchestrator) ApplyPatch(ctx context.Context, repo refs.Repository, path, ref, patch, message string) (*CommitResult, error) {
	branch := o.resolver.EffectiveRef(repo, ref)

	if err := o.gate.Ensure(fmt.Sprintf("patch %s:%s", repo, path)); err != nil {
		return nil, err
	}

	snap, err := o.store.Read(ctx, repo, path, branch)
	if err != nil {
		return nil, fmt.Errorf("reading %s at %s: %w", path, branch, err)
	}
	before := string(snap.Content)

	updated, err := textpatch.Apply(before, patch)
	if err != nil {
		return nil, err
	}

	if message == "" {
		message = fmt.Sprintf("Update %s", path)
	}

	return o.commitAndVerify(ctx, repo, path, branch, before, updated, message, snap.SHA)
}

// commitAndVerify writes intended content and confirms it landed by
// re-reading the path. Only the verification read retries; the write does
// not.
func (o *Orchestrator) commitAndVerify(ctx context.Context, repo refs.Repository, path, branch, before, intended, message, priorSHA string) (*CommitResult, error) {
	log := clog.FromContext(ctx)

	if _, err := o.store.Write(ctx, repo, path, branch, []byte(intended), message, priorSHA); err != nil {
		return nil, fmt.Errorf("committing %s to %s: %w", path, branch, err)
	}

	observed, err := retry.Do(ctx, o.verify, "verify "+path, func(err error) bool {
		return errors.Is(err, errStaleRead) || remote.IsNotFound(err)
	}, func() (*remote.FileSnapshot, error) {
		snap, err := o.store.Read(ctx, repo, path, branch)
		if err != nil {
			return nil, err
		}
		if string(snap.Content) != intended {
			return snap, errStaleRead
		}
		return snap, nil
	})
	if err != nil {
		if errors.Is(err, errStaleRead) {
			verr := &VerificationError{Path: path, Ref: branch, Intended: intended}
			if observed != nil {
				verr.Observed = string(observed.Content)
			}
			return nil, verr
		}
		return nil, fmt.Errorf("verifying %s at %s: %w", path, branch, err)
	}

	diff, err := textpatch.Unified(path, before, string(observed.Content))
	if err != nil {
		return nil, fmt.Errorf("diffing %s: %w", path, err)
	}

	log.Infof("Committed %s to %s on %s (sha %s)", path, branch, repo, observed.SHA)

	return &CommitResult{
		Path:      path,
		Ref:       branch,
		SHABefore: priorSHA,
		SHAAfter:  observed.SHA,
		Content:   string(observed.Content),
		Diff:      diff,
	}, nil
}
