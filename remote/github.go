/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/octoplane/octoplane/refs"
	"github.com/shurcooL/githubv4"
)

// GitHub implements Store on top of the GitHub Contents and Git refs APIs,
// with a GraphQL lookup for existing pull requests.
type GitHub struct {
	client *github.Client
	gql    *githubv4.Client
}

// NewGitHub wraps an authenticated go-github client.
func NewGitHub(client *github.Client) *GitHub {
	return &GitHub{
		client: client,
		gql:    githubv4.NewClient(client.Client()),
	}
}

var _ Store = (*GitHub)(nil)

// Read fetches path at ref via the Contents API and decodes its content.
func (g *GitHub) Read(ctx context.Context, repo refs.Repository, path, ref string) (*FileSnapshot, error) {
	file, _, resp, err := g.client.Repositories.GetContents(ctx, repo.Owner, repo.Name, path,
		&github.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, &NotFoundError{Repo: repo, Path: path, Ref: ref}
		}
		return nil, asAPIError(err)
	}
	if file == nil {
		return nil, &APIError{Message: fmt.Sprintf("%s at %s is a directory, not a file", path, ref)}
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("decoding %s: %v", path, err), Err: err}
	}

	return &FileSnapshot{Path: path, Content: []byte(content), SHA: file.GetSHA()}, nil
}

// Write commits content to path on branch. An empty priorSHA creates the
// file; otherwise the write replaces the blob identified by priorSHA.
func (g *GitHub) Write(ctx context.Context, repo refs.Repository, path, branch string, content []byte, message, priorSHA string) (string, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.Ptr(message),
		Content: content,
		Branch:  github.Ptr(branch),
	}

	var (
		written *github.RepositoryContentResponse
		err     error
	)
	if priorSHA == "" {
		written, _, err = g.client.Repositories.CreateFile(ctx, repo.Owner, repo.Name, path, opts)
	} else {
		opts.SHA = github.Ptr(priorSHA)
		written, _, err = g.client.Repositories.UpdateFile(ctx, repo.Owner, repo.Name, path, opts)
	}
	if err != nil {
		return "", asAPIError(err)
	}

	return written.Content.GetSHA(), nil
}

// EnsureBranch creates branch from fromRef when it does not already exist.
func (g *GitHub) EnsureBranch(ctx context.Context, repo refs.Repository, branch, fromRef string) (bool, error) {
	_, resp, err := g.client.Git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+branch)
	if err == nil {
		clog.FromContext(ctx).Infof("Reusing existing branch %s on %s", branch, repo)
		return false, nil
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		return false, asAPIError(err)
	}

	base, _, err := g.client.Git.GetRef(ctx, repo.Owner, repo.Name, "refs/heads/"+fromRef)
	if err != nil {
		return false, asAPIError(err)
	}

	_, _, err = g.client.Git.CreateRef(ctx, repo.Owner, repo.Name, github.CreateRef{
		Ref: "refs/heads/" + branch,
		SHA: base.Object.GetSHA(),
	})
	if err != nil {
		return false, asAPIError(err)
	}

	clog.FromContext(ctx).Infof("Created branch %s from %s on %s", branch, fromRef, repo)
	return true, nil
}

// FindOpenPullRequest looks up an open pull request from head into base
// with a single GraphQL query.
func (g *GitHub) FindOpenPullRequest(ctx context.Context, repo refs.Repository, head, base string) (*PullRequest, error) {
	var query struct {
		Repository struct {
			PullRequests struct {
				Nodes []struct {
					Number int
					Url    string
				}
			} `graphql:"pullRequests(headRefName: $headRef, baseRefName: $baseRef, states: [OPEN], first: 1)"`
		} `graphql:"repository(owner: $owner, name: $repo)"`
	}

	variables := map[string]any{
		"owner":   githubv4.String(repo.Owner),
		"repo":    githubv4.String(repo.Name),
		"headRef": githubv4.String(head),
		"baseRef": githubv4.String(base),
	}

	if err := g.gql.Query(ctx, &query, variables); err != nil {
		return nil, asAPIError(err)
	}

	nodes := query.Repository.PullRequests.Nodes
	if len(nodes) == 0 {
		return nil, nil
	}
	return &PullRequest{Number: nodes[0].Number, URL: nodes[0].Url}, nil
}

// OpenPullRequest opens a pull request from head into base.
func (g *GitHub) OpenPullRequest(ctx context.Context, repo refs.Repository, head, base, title, body string) (*PullRequest, error) {
	pr, _, err := g.client.PullRequests.Create(ctx, repo.Owner, repo.Name, &github.NewPullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
	})
	if err != nil {
		return nil, asAPIError(err)
	}

	clog.FromContext(ctx).Infof("Opened PR #%d: %s", pr.GetNumber(), pr.GetHTMLURL())
	return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
}

// asAPIError preserves the GitHub status and message on the way out.
func asAPIError(err error) error {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		status := 0
		if ghErr.Response != nil {
			status = ghErr.Response.StatusCode
		}
		return &APIError{StatusCode: status, Message: ghErr.Message, Err: err}
	}
	return &APIError{Message: err.Error(), Err: err}
}
