/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package workspace maintains a pool of git clones for local inspection
// and command execution. Leases hand out a prepared working tree pinned
// to the effective ref; everything destructive stays inside the clone.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/writegate"
	"golang.org/x/oauth2"
)

const cloneDirPrefix = "octoplane-workspace-"

// repoURL resolves the remote git URL for a repository. Tests override
// this to point at local filesystem repositories.
var repoURL = defaultRemoteURL

func defaultRemoteURL(repo refs.Repository) string {
	return fmt.Sprintf("https://github.com/%s/%s", repo.Owner, repo.Name)
}

// Manager owns a pool of clones keyed by repository. Callers lease a
// clone for one task and must Return it so the pool can reset and reuse
// it.
type Manager struct {
	tokenSource oauth2.TokenSource
	resolver    *refs.Resolver
	gate        *writegate.Gate

	mu        sync.Mutex
	available map[string][]*clone
}

type clone struct {
	path string
	repo *git.Repository
}

// New constructs a Manager. The token source must allow cloning the
// targeted repositories.
func New(tokenSource oauth2.TokenSource, resolver *refs.Resolver, gate *writegate.Gate) (*Manager, error) {
	if tokenSource == nil {
		return nil, errors.New("token source cannot be nil")
	}
	if resolver == nil {
		return nil, errors.New("resolver cannot be nil")
	}
	if gate == nil {
		return nil, errors.New("gate cannot be nil")
	}
	return &Manager{
		tokenSource: tokenSource,
		resolver:    resolver,
		gate:        gate,
		available:   map[string][]*clone{},
	}, nil
}

// Lease prepares a clone of repo at the effective ref and returns a
// handle to it. Callers must invoke Return to release the clone.
func (m *Manager) Lease(ctx context.Context, repo refs.Repository, ref string) (*Lease, error) {
	if repo.Owner == "" || repo.Name == "" {
		return nil, errors.New("repository owner and name are required")
	}
	effective := m.resolver.EffectiveRef(repo, ref)

	cl, err := m.acquireClone(ctx, repo, effective)
	if err != nil {
		return nil, err
	}

	sha, err := m.prepareClone(ctx, cl, effective)
	if err != nil {
		clog.FromContext(ctx).Warnf("Discarding clone after prepare failure: %v", err)
		m.discardClone(cl)
		return nil, err
	}

	return &Lease{manager: m, clone: cl, repo: repo, ref: effective, sha: sha}, nil
}

// acquireClone takes from the front of the per-repo pool while Return
// appends to the back, so a problematic clone ages out instead of
// churning.
func (m *Manager) acquireClone(ctx context.Context, repo refs.Repository, ref string) (*clone, error) {
	key := repo.String()
	m.mu.Lock()
	if pool := m.available[key]; len(pool) > 0 {
		cl := pool[0]
		m.available[key] = pool[1:]
		m.mu.Unlock()
		return cl, nil
	}
	m.mu.Unlock()

	return m.createClone(ctx, repo, ref)
}

func (m *Manager) createClone(ctx context.Context, repo refs.Repository, ref string) (*clone, error) {
	dir, err := os.MkdirTemp("", cloneDirPrefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}

	remote := repoURL(repo)
	clog.FromContext(ctx).Infof("Cloning %s into %s", remote, dir)

	auth, err := m.authForRemote()
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("getting token: %w", err)
	}

	r, err := git.PlainClone(dir, false, &git.CloneOptions{
		URL:           remote,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil {
		os.RemoveAll(dir)
		return nil, fmt.Errorf("cloning %s: %w", remote, err)
	}

	return &clone{path: dir, repo: r}, nil
}

func (m *Manager) prepareClone(ctx context.Context, cl *clone, ref string) (string, error) {
	repo := cl.repo
	if repo == nil {
		var err error
		repo, err = git.PlainOpen(cl.path)
		if err != nil {
			return "", fmt.Errorf("opening repo: %w", err)
		}
		cl.repo = repo
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("getting worktree: %w", err)
	}

	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("resetting worktree: %w", err)
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return "", fmt.Errorf("cleaning worktree: %w", err)
	}

	auth, err := m.authForRemote()
	if err != nil {
		return "", fmt.Errorf("getting token: %w", err)
	}

	fetchOpts := &git.FetchOptions{
		RefSpecs: []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", ref, ref))},
		Auth:     auth,
	}
	clog.FromContext(ctx).Debugf("Fetching ref %s", ref)
	if err := repo.Fetch(fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("fetching ref %s: %w", ref, err)
	}

	remoteRef, err := repo.Reference(plumbing.NewRemoteReferenceName("origin", ref), true)
	if err != nil {
		return "", fmt.Errorf("getting remote ref %s: %w", ref, err)
	}

	if err := worktree.Checkout(&git.CheckoutOptions{Hash: remoteRef.Hash(), Force: true}); err != nil {
		return "", fmt.Errorf("checking out ref %s: %w", ref, err)
	}

	status, err := worktree.Status()
	if err != nil {
		return "", fmt.Errorf("getting worktree status: %w", err)
	}
	if !status.IsClean() {
		return "", errors.New("worktree is not clean after checkout")
	}

	return remoteRef.Hash().String(), nil
}

func (m *Manager) resetClone(cl *clone) error {
	worktree, err := cl.repo.Worktree()
	if err != nil {
		return fmt.Errorf("getting worktree: %w", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Mode: git.HardReset}); err != nil {
		return fmt.Errorf("resetting worktree: %w", err)
	}
	if err := worktree.Clean(&git.CleanOptions{Dir: true}); err != nil {
		return fmt.Errorf("cleaning worktree: %w", err)
	}
	return nil
}

func (m *Manager) releaseClone(repo refs.Repository, cl *clone) {
	key := repo.String()
	m.mu.Lock()
	m.available[key] = append(m.available[key], cl)
	m.mu.Unlock()
}

func (m *Manager) discardClone(cl *clone) {
	os.RemoveAll(cl.path)
}

func (m *Manager) authForRemote() (*githttp.BasicAuth, error) {
	token, err := m.tokenSource.Token()
	if err != nil {
		return nil, err
	}
	return &githttp.BasicAuth{
		Username: "unused-when-using-access-tokens",
		Password: token.AccessToken,
	}, nil
}
