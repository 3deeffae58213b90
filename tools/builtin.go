/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/octoplane/octoplane/changeset"
	"github.com/octoplane/octoplane/commitflow"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
	"github.com/octoplane/octoplane/tools/params"
	"github.com/octoplane/octoplane/workspace"
	"github.com/octoplane/octoplane/writegate"
)

// Service bundles the collaborators the built-in tools operate on.
// Workspaces may be nil; run_command is only registered when it is set.
type Service struct {
	Gate       *writegate.Gate
	Resolver   *refs.Resolver
	Store      remote.Store
	Flow       *commitflow.Orchestrator
	Changes    *changeset.Manager
	Workspaces *workspace.Manager
}

type authorizeInput struct {
	Authorized bool `json:"authorized" jsonschema:"required" jsonschema_description:"Whether write actions are authorized for this session."`
}

type getFileInput struct {
	Repo string `json:"repo" jsonschema:"required" jsonschema_description:"Repository in owner/name form."`
	Path string `json:"path" jsonschema:"required" jsonschema_description:"File path relative to the repository root."`
	Ref  string `json:"ref,omitempty" jsonschema_description:"Branch to read from. Omit for the default branch."`
}

type updateFileInput struct {
	Repo    string `json:"repo" jsonschema:"required" jsonschema_description:"Repository in owner/name form."`
	Path    string `json:"path" jsonschema:"required" jsonschema_description:"File path relative to the repository root."`
	Content string `json:"content" jsonschema:"required" jsonschema_description:"The complete new content of the file."`
	Ref     string `json:"ref,omitempty" jsonschema_description:"Branch to commit to. Omit for the default branch."`
	Message string `json:"message,omitempty" jsonschema_description:"Commit message. Omit for a generated one."`
}

type applyPatchInput struct {
	Repo  string `json:"repo" jsonschema:"required" jsonschema_description:"Repository in owner/name form."`
	Path  string `json:"path" jsonschema:"required" jsonschema_description:"File path relative to the repository root."`
	Patch string `json:"patch" jsonschema:"required" jsonschema_description:"Unified diff to apply to the file's current content."`
	Ref   string `json:"ref,omitempty" jsonschema_description:"Branch to commit to. Omit for the default branch."`
}

type fileChangeInput struct {
	Path    string `json:"path" jsonschema:"required" jsonschema_description:"File path relative to the repository root."`
	Content string `json:"content,omitempty" jsonschema_description:"Complete new content. Mutually exclusive with patch."`
	Patch   string `json:"patch,omitempty" jsonschema_description:"Unified diff against the file's current content."`
}

type openPRInput struct {
	Repo   string            `json:"repo" jsonschema:"required" jsonschema_description:"Repository in owner/name form."`
	Branch string            `json:"branch" jsonschema:"required" jsonschema_description:"Name of the branch to create the commits on."`
	Title  string            `json:"title" jsonschema:"required" jsonschema_description:"Pull request title."`
	Files  []fileChangeInput `json:"files" jsonschema:"required" jsonschema_description:"The file changes to commit, in order."`
	Base   string            `json:"base,omitempty" jsonschema_description:"Base branch for the pull request. Omit for the default branch."`
	Body   string            `json:"body,omitempty" jsonschema_description:"Pull request body."`
}

type runCommandInput struct {
	Repo    string   `json:"repo" jsonschema:"required" jsonschema_description:"Repository in owner/name form."`
	Command string   `json:"command" jsonschema:"required" jsonschema_description:"The executable to run inside the workspace clone."`
	Args    []string `json:"args,omitempty" jsonschema_description:"Arguments for the command."`
	Ref     string   `json:"ref,omitempty" jsonschema_description:"Branch to check out. Omit for the default branch."`
}

// RegisterBuiltins registers the standard tool set on the registry.
func RegisterBuiltins(r *Registry, svc *Service) error {
	if svc.Gate == nil || svc.Resolver == nil || svc.Store == nil || svc.Flow == nil || svc.Changes == nil {
		return errors.New("service is missing required collaborators")
	}

	defs := []Definition{
		{
			Name:        "authorize_write_actions",
			Description: "Grant or revoke authorization for write actions (commits, branches, pull requests) for this session.",
			SideEffect:  LocalMutation,
			Input:       &authorizeInput{},
			Handler:     authorizeHandler(svc),
		},
		{
			Name:        "get_file",
			Description: "Read the content of a file from a repository at a branch.",
			SideEffect:  ReadOnly,
			Input:       &getFileInput{},
			Handler:     getFileHandler(svc),
		},
		{
			Name:        "update_file",
			Description: "Commit a complete replacement of a file's content, creating the file if it does not exist. The commit is verified by re-reading the file.",
			SideEffect:  RemoteMutation,
			Input:       &updateFileInput{},
			Handler:     updateFileHandler(svc),
		},
		{
			Name:        "apply_patch",
			Description: "Apply a unified diff to an existing file and commit the result. The patch must match the file's current content exactly.",
			SideEffect:  RemoteMutation,
			Input:       &applyPatchInput{},
			Handler:     applyPatchHandler(svc),
		},
		{
			Name:        "update_files_and_open_pr",
			Description: "Commit a batch of file changes to a new branch and open a pull request. Stops at the first failing change and opens no pull request unless every change is verified.",
			SideEffect:  RemoteMutation,
			Input:       &openPRInput{},
			Handler:     openPRHandler(svc),
		},
	}
	if svc.Workspaces != nil {
		defs = append(defs, Definition{
			Name:        "run_command",
			Description: "Run a command inside a cloned workspace of the repository and return its combined output.",
			SideEffect:  LocalMutation,
			Input:       &runCommandInput{},
			Handler:     runCommandHandler(svc),
		})
	}

	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func authorizeHandler(svc *Service) Handler {
	return func(_ context.Context, call Call) map[string]any {
		authorized, err := params.Extract[bool](call.Args, "authorized")
		if err != nil {
			return params.Error("%v", err)
		}
		svc.Gate.SetAllowed(authorized)
		if authorized {
			return map[string]any{"authorized": true, "message": "write actions are now authorized"}
		}
		return map[string]any{"authorized": false, "message": "write actions are now blocked"}
	}
}

func getFileHandler(svc *Service) Handler {
	return func(ctx context.Context, call Call) map[string]any {
		repo, path, ref, errResp := repoPathRef(call.Args)
		if errResp != nil {
			return errResp
		}

		effective := svc.Resolver.EffectiveRef(repo, ref)
		snap, err := svc.Store.Read(ctx, repo, path, effective)
		if err != nil {
			return errorResponse(err)
		}
		return map[string]any{
			"path":    snap.Path,
			"ref":     effective,
			"sha":     snap.SHA,
			"content": string(snap.Content),
		}
	}
}

func updateFileHandler(svc *Service) Handler {
	return func(ctx context.Context, call Call) map[string]any {
		repo, path, ref, errResp := repoPathRef(call.Args)
		if errResp != nil {
			return errResp
		}
		content, err := params.Extract[string](call.Args, "content")
		if err != nil {
			return params.Error("%v", err)
		}
		message, err := params.ExtractOptional(call.Args, "message", "")
		if err != nil {
			return params.Error("%v", err)
		}

		result, applyErr := svc.Flow.ApplyTextUpdate(ctx, repo, path, ref, content, message)
		if applyErr != nil {
			return errorResponse(applyErr)
		}
		return commitResponse(result)
	}
}

func applyPatchHandler(svc *Service) Handler {
	return func(ctx context.Context, call Call) map[string]any {
		repo, path, ref, errResp := repoPathRef(call.Args)
		if errResp != nil {
			return errResp
		}
		patch, err := params.Extract[string](call.Args, "patch")
		if err != nil {
			return params.Error("%v", err)
		}

		result, applyErr := svc.Flow.ApplyPatch(ctx, repo, path, ref, patch, "")
		if applyErr != nil {
			return errorResponse(applyErr)
		}
		return commitResponse(result)
	}
}

func openPRHandler(svc *Service) Handler {
	return func(ctx context.Context, call Call) map[string]any {
		repoArg, err := params.Extract[string](call.Args, "repo")
		if err != nil {
			return params.Error("%v", err)
		}
		repo, err := refs.ParseRepository(repoArg)
		if err != nil {
			return params.Error("%v", err)
		}
		branch, err := params.Extract[string](call.Args, "branch")
		if err != nil {
			return params.Error("%v", err)
		}
		title, err := params.Extract[string](call.Args, "title")
		if err != nil {
			return params.Error("%v", err)
		}
		base, err := params.ExtractOptional(call.Args, "base", "")
		if err != nil {
			return params.Error("%v", err)
		}
		body, err := params.ExtractOptional(call.Args, "body", "")
		if err != nil {
			return params.Error("%v", err)
		}
		changes, errResp := fileChanges(call.Args)
		if errResp != nil {
			return errResp
		}

		result, applyErr := svc.Changes.Apply(ctx, repo, base, branch, changes, title, body)
		if applyErr != nil {
			context := map[string]any{}
			if result != nil {
				context["commits"] = commitSummaries(result.Commits)
				if result.Failed != nil {
					context["failed_index"] = result.Failed.Index
					context["failed_path"] = result.Failed.Path
				}
			}
			return params.ErrorWithContext(applyErr, context)
		}
		return map[string]any{
			"pull_request": map[string]any{
				"number": result.PullRequest.Number,
				"url":    result.PullRequest.URL,
			},
			"branch":  branch,
			"commits": commitSummaries(result.Commits),
		}
	}
}

func runCommandHandler(svc *Service) Handler {
	return func(ctx context.Context, call Call) map[string]any {
		repoArg, err := params.Extract[string](call.Args, "repo")
		if err != nil {
			return params.Error("%v", err)
		}
		repo, err := refs.ParseRepository(repoArg)
		if err != nil {
			return params.Error("%v", err)
		}
		command, err := params.Extract[string](call.Args, "command")
		if err != nil {
			return params.Error("%v", err)
		}
		ref, err := params.ExtractOptional(call.Args, "ref", "")
		if err != nil {
			return params.Error("%v", err)
		}
		args, errResp := stringSlice(call.Args, "args")
		if errResp != nil {
			return errResp
		}

		lease, err := svc.Workspaces.Lease(ctx, repo, ref)
		if err != nil {
			return errorResponse(fmt.Errorf("leasing workspace: %w", err))
		}
		defer lease.Return(ctx)

		output, execErr := lease.Exec(ctx, command, args...)
		if execErr != nil {
			return params.ErrorWithContext(execErr, map[string]any{"output": output})
		}
		return map[string]any{
			"output": output,
			"ref":    lease.Ref(),
			"sha":    lease.SHA(),
		}
	}
}

// repoPathRef extracts the common repo/path/ref argument triple.
func repoPathRef(args map[string]any) (refs.Repository, string, string, map[string]any) {
	repoArg, err := params.Extract[string](args, "repo")
	if err != nil {
		return refs.Repository{}, "", "", params.Error("%v", err)
	}
	repo, err := refs.ParseRepository(repoArg)
	if err != nil {
		return refs.Repository{}, "", "", params.Error("%v", err)
	}
	path, err := params.Extract[string](args, "path")
	if err != nil {
		return refs.Repository{}, "", "", params.Error("%v", err)
	}
	ref, err := params.ExtractOptional(args, "ref", "")
	if err != nil {
		return refs.Repository{}, "", "", params.Error("%v", err)
	}
	return repo, path, ref, nil
}

func fileChanges(args map[string]any) ([]changeset.FileChange, map[string]any) {
	raw, err := params.Extract[[]any](args, "files")
	if err != nil {
		return nil, params.Error("%v", err)
	}
	changes := make([]changeset.FileChange, 0, len(raw))
	for i, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, params.Error("files[%d] must be an object, got %T", i, item)
		}
		path, err := params.Extract[string](entry, "path")
		if err != nil {
			return nil, params.Error("files[%d]: %v", i, err)
		}
		content, err := params.ExtractOptional(entry, "content", "")
		if err != nil {
			return nil, params.Error("files[%d]: %v", i, err)
		}
		patch, err := params.ExtractOptional(entry, "patch", "")
		if err != nil {
			return nil, params.Error("files[%d]: %v", i, err)
		}
		if content != "" && patch != "" {
			return nil, params.Error("files[%d]: content and patch are mutually exclusive", i)
		}
		changes = append(changes, changeset.FileChange{Path: path, Content: content, Patch: patch})
	}
	return changes, nil
}

func stringSlice(args map[string]any, name string) ([]string, map[string]any) {
	value, exists := args[name]
	if !exists {
		return nil, nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil, params.Error("%s parameter must be an array of strings, got %T", name, value)
	}
	out := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, params.Error("%s[%d] must be a string, got %T", name, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}

func commitResponse(c *commitflow.CommitResult) map[string]any {
	resp := map[string]any{
		"path":      c.Path,
		"ref":       c.Ref,
		"sha_after": c.SHAAfter,
		"content":   c.Content,
		"diff":      c.Diff,
	}
	if c.SHABefore != "" {
		resp["sha_before"] = c.SHABefore
	}
	return resp
}

func commitSummaries(commits []*commitflow.CommitResult) []map[string]any {
	out := make([]map[string]any, 0, len(commits))
	for _, c := range commits {
		out = append(out, map[string]any{
			"path":      c.Path,
			"ref":       c.Ref,
			"sha_after": c.SHAAfter,
		})
	}
	return out
}

// errorResponse maps an operation failure to an in-band error, with a
// hint when the failure was the closed write gate.
func errorResponse(err error) map[string]any {
	var denied *writegate.WriteNotAllowedError
	if errors.As(err, &denied) {
		return params.ErrorWithContext(err, map[string]any{
			"hint": "write actions require prior authorization via authorize_write_actions",
		})
	}
	return params.Error("%v", err)
}
