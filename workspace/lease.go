/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/octoplane/octoplane/refs"
)

// MaxExecOutput bounds the combined output returned by Exec. Anything
// past this is dropped with a truncation marker.
const MaxExecOutput = 64 * 1024

// Match is one search hit inside the working tree.
type Match struct {
	// Path is relative to the worktree root.
	Path string `json:"path"`
	// Line is 1-based.
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// Lease is a prepared clone pinned to a specific ref. All file
// operations are scoped under the worktree root.
type Lease struct {
	manager *Manager
	clone   *clone

	repo refs.Repository
	ref  string
	sha  string
}

// SHA is the commit the worktree is checked out at.
func (l *Lease) SHA() string { return l.sha }

// Ref is the effective ref the lease was prepared for.
func (l *Lease) Ref() string { return l.ref }

// Root is the worktree root directory.
func (l *Lease) Root() string { return l.clone.path }

// Return resets the worktree and releases the clone back to the pool. A
// clone that fails to reset is discarded instead of being reused.
func (l *Lease) Return(ctx context.Context) error {
	if err := l.manager.resetClone(l.clone); err != nil {
		clog.FromContext(ctx).Warnf("Discarding clone that failed to reset: %v", err)
		l.manager.discardClone(l.clone)
		return err
	}
	l.manager.releaseClone(l.repo, l.clone)
	return nil
}

// validatePath keeps path inside the worktree root.
func (l *Lease) validatePath(path string) (string, error) {
	fullPath := filepath.Join(l.clone.path, filepath.Clean(path))
	rel, err := filepath.Rel(l.clone.path, fullPath)
	if err != nil {
		return "", fmt.Errorf("path %q: %w", path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path %q escapes worktree", path)
	}
	return fullPath, nil
}

// ReadFile reads a file from the worktree.
func (l *Lease) ReadFile(_ context.Context, path string) (string, error) {
	fullPath, err := l.validatePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ListDirectory lists directory entries, with a trailing slash on
// subdirectories.
func (l *Lease) ListDirectory(_ context.Context, path string) ([]string, error) {
	fullPath, err := l.validatePath(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return names, nil
}

// Search greps the worktree for a regex pattern. Hidden directories and
// binary-looking files are skipped.
func (l *Lease) Search(_ context.Context, pattern string) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern: %w", err)
	}

	root := l.clone.path
	var matches []Match
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if isBinaryFile(path) {
			return nil
		}
		fileMatches, err := searchFile(path, root, re)
		if err != nil {
			return nil
		}
		matches = append(matches, fileMatches...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// Exec runs a command inside the worktree and returns its combined
// output, truncated at MaxExecOutput. Commands can mutate the clone, so
// the write gate applies.
func (l *Lease) Exec(ctx context.Context, name string, args ...string) (string, error) {
	if err := l.manager.gate.Ensure(fmt.Sprintf("run %s in %s", name, l.repo)); err != nil {
		return "", err
	}

	clog.FromContext(ctx).Infof("Executing %s %s in %s", name, strings.Join(args, " "), l.clone.path)

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = l.clone.path
	out, runErr := cmd.CombinedOutput()

	output := string(out)
	if len(output) > MaxExecOutput {
		output = output[:MaxExecOutput] + fmt.Sprintf("\n... (output truncated, %d bytes total)", len(out))
	}

	if runErr != nil {
		return output, fmt.Errorf("running %s %s: %w", name, strings.Join(args, " "), runErr)
	}
	return output, nil
}

func searchFile(path, root string, re *regexp.Regexp) ([]Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return nil, err
	}

	var matches []Match
	scanner := bufio.NewScanner(f)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if re.MatchString(line) {
			matches = append(matches, Match{Path: relPath, Line: lineNum, Content: line})
		}
	}
	return matches, scanner.Err()
}

func isBinaryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".exe", ".dll", ".so", ".dylib",
		".zip", ".tar", ".gz", ".bz2",
		".png", ".jpg", ".jpeg", ".gif", ".ico",
		".pdf", ".bin", ".dat":
		return true
	}
	return false
}
