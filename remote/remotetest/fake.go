/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package remotetest provides an in-memory Store for exercising the
// orchestration layers without a live API.
package remotetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
)

// WriteRecord captures one Write call.
type WriteRecord struct {
	Path     string
	Branch   string
	Content  string
	Message  string
	PriorSHA string
}

// PROpen captures one OpenPullRequest call.
type PROpen struct {
	Head  string
	Base  string
	Title string
	Body  string
}

// Fake is an in-memory remote.Store. Branches hold independent copies of
// their files, and every write gets a fresh synthetic SHA.
type Fake struct {
	mu       sync.Mutex
	branches map[string]map[string][]byte
	shas     map[string]map[string]string
	seq      int

	Writes   []WriteRecord
	PROpens  []PROpen
	Ensured  []string
	Existing *remote.PullRequest

	// WriteHook, when set, runs before each write and can reject it.
	WriteHook func(path string) error
	// ReadHook, when set, runs before each read and can reject it.
	ReadHook func(path, ref string) error
	// Corrupt maps paths to the content actually stored on write,
	// regardless of what was sent. It simulates a store that mangles
	// content, to exercise post-commit verification.
	Corrupt map[string]string
}

// NewFake returns an empty store with a "main" branch.
func NewFake() *Fake {
	return &Fake{
		branches: map[string]map[string][]byte{"main": {}},
		shas:     map[string]map[string]string{"main": {}},
	}
}

var _ remote.Store = (*Fake)(nil)

// Seed places content at path on branch, creating the branch if needed.
func (f *Fake) Seed(branch, path, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureBranchLocked(branch)
	f.branches[branch][path] = []byte(content)
	f.shas[branch][path] = f.nextSHALocked()
}

func (f *Fake) ensureBranchLocked(branch string) {
	if _, ok := f.branches[branch]; !ok {
		f.branches[branch] = map[string][]byte{}
		f.shas[branch] = map[string]string{}
	}
}

func (f *Fake) nextSHALocked() string {
	f.seq++
	return fmt.Sprintf("sha-%04d", f.seq)
}

func (f *Fake) Read(_ context.Context, repo refs.Repository, path, ref string) (*remote.FileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadHook != nil {
		if err := f.ReadHook(path, ref); err != nil {
			return nil, err
		}
	}
	files, ok := f.branches[ref]
	if !ok {
		return nil, &remote.NotFoundError{Repo: repo, Path: path, Ref: ref}
	}
	content, ok := files[path]
	if !ok {
		return nil, &remote.NotFoundError{Repo: repo, Path: path, Ref: ref}
	}
	return &remote.FileSnapshot{Path: path, Content: append([]byte(nil), content...), SHA: f.shas[ref][path]}, nil
}

func (f *Fake) Write(_ context.Context, repo refs.Repository, path, branch string, content []byte, message, priorSHA string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteHook != nil {
		if err := f.WriteHook(path); err != nil {
			return "", err
		}
	}
	f.ensureBranchLocked(branch)
	f.Writes = append(f.Writes, WriteRecord{
		Path: path, Branch: branch, Content: string(content), Message: message, PriorSHA: priorSHA,
	})

	stored := content
	if mangled, ok := f.Corrupt[path]; ok {
		stored = []byte(mangled)
	}
	f.branches[branch][path] = append([]byte(nil), stored...)
	sha := f.nextSHALocked()
	f.shas[branch][path] = sha
	return sha, nil
}

func (f *Fake) EnsureBranch(_ context.Context, _ refs.Repository, branch, fromRef string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.branches[branch]; ok {
		return false, nil
	}
	f.ensureBranchLocked(branch)
	for path, content := range f.branches[fromRef] {
		f.branches[branch][path] = append([]byte(nil), content...)
		f.shas[branch][path] = f.shas[fromRef][path]
	}
	f.Ensured = append(f.Ensured, branch)
	return true, nil
}

func (f *Fake) FindOpenPullRequest(_ context.Context, _ refs.Repository, _, _ string) (*remote.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Existing, nil
}

func (f *Fake) OpenPullRequest(_ context.Context, repo refs.Repository, head, base, title, body string) (*remote.PullRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PROpens = append(f.PROpens, PROpen{Head: head, Base: base, Title: title, Body: body})
	n := 100 + len(f.PROpens)
	return &remote.PullRequest{
		Number: n,
		URL:    fmt.Sprintf("https://github.com/%s/%s/pull/%d", repo.Owner, repo.Name, n),
	}, nil
}

// ContentAt returns the stored content, or "" when absent.
func (f *Fake) ContentAt(branch, path string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.branches[branch][path])
}
