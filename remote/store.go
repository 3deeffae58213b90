/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"context"

	"github.com/octoplane/octoplane/refs"
)

// FileSnapshot is the state of one file at one ref at one point in time.
// Snapshots are fetched fresh before every mutating operation and never
// cached across a commit step.
type FileSnapshot struct {
	Path    string
	Content []byte
	// SHA is the content digest reported by the store. Empty means the
	// file does not exist yet.
	SHA string
}

// PullRequest identifies an opened (or found) pull request.
type PullRequest struct {
	Number int
	URL    string
}

// Store is the remote repository collaborator. Implementations return
// *NotFoundError for missing files and *APIError for transport-level
// failures; they never retry on the caller's behalf.
type Store interface {
	// Read fetches the file at path on ref.
	Read(ctx context.Context, repo refs.Repository, path, ref string) (*FileSnapshot, error)

	// Write commits content to path on branch. An empty priorSHA means
	// "create"; otherwise the write updates the blob identified by
	// priorSHA. Returns the new content SHA as reported by the write
	// response (callers verify via an independent Read).
	Write(ctx context.Context, repo refs.Repository, path, branch string, content []byte, message, priorSHA string) (string, error)

	// EnsureBranch creates branch from fromRef if it does not already
	// exist. Reports whether the branch was created by this call.
	EnsureBranch(ctx context.Context, repo refs.Repository, branch, fromRef string) (created bool, err error)

	// FindOpenPullRequest returns the open pull request from head into
	// base, or nil when none exists.
	FindOpenPullRequest(ctx context.Context, repo refs.Repository, head, base string) (*PullRequest, error)

	// OpenPullRequest opens a pull request from head into base.
	OpenPullRequest(ctx context.Context, repo refs.Repository, head, base, title, body string) (*PullRequest, error)
}
