/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package main serves the Octoplane tool surface over HTTP.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"github.com/octoplane/octoplane/changeset"
	"github.com/octoplane/octoplane/commitflow"
	"github.com/octoplane/octoplane/refs"
	"github.com/octoplane/octoplane/remote"
	"github.com/octoplane/octoplane/server"
	"github.com/octoplane/octoplane/tools"
	"github.com/octoplane/octoplane/tooltrace"
	"github.com/octoplane/octoplane/workspace"
	"github.com/octoplane/octoplane/writegate"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/oauth2"
)

type config struct {
	Addr string `env:"ADDR,default=:8080"`

	// Ref policy: either a YAML policy file or the inline pair.
	RefsPolicyPath string `env:"REFS_POLICY_PATH"`
	ControllerRepo string `env:"CONTROLLER_REPO"`
	WorkingBranch  string `env:"WORKING_BRANCH"`

	// GitHub auth: a token, or a GitHub App installation.
	GitHubToken          string `env:"GITHUB_TOKEN"`
	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"GITHUB_APP_INSTALLATION_ID"`
	GitHubAppKeyPath     string `env:"GITHUB_APP_PRIVATE_KEY_PATH"`

	// EnableWorkspace turns on clone-backed tools (run_command).
	EnableWorkspace bool `env:"ENABLE_WORKSPACE,default=false"`

	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE,default=10s"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	resolver, err := buildResolver(&cfg)
	if err != nil {
		clog.FatalContextf(ctx, "building ref resolver: %v", err)
	}
	clog.InfoContextf(ctx, "Controller repo %s substitutes default-branch reads with %q",
		resolver.Controller(), resolver.EffectiveRef(resolver.Controller(), ""))

	client, tokenSource, err := buildGitHubAuth(ctx, &cfg)
	if err != nil {
		clog.FatalContextf(ctx, "configuring GitHub auth: %v", err)
	}

	gate := writegate.New()
	store := remote.NewGitHub(client)
	flow := commitflow.New(gate, resolver, store)
	changes := changeset.New(gate, resolver, store, flow)

	svc := &tools.Service{
		Gate:     gate,
		Resolver: resolver,
		Store:    store,
		Flow:     flow,
		Changes:  changes,
	}
	if cfg.EnableWorkspace {
		workspaces, err := workspace.New(tokenSource, resolver, gate)
		if err != nil {
			clog.FatalContextf(ctx, "creating workspace manager: %v", err)
		}
		svc.Workspaces = workspaces
	}

	registry := tools.NewRegistry(gate, tooltrace.NewRecorder(ctx))
	if err := tools.RegisterBuiltins(registry, svc); err != nil {
		clog.FatalContextf(ctx, "registering tools: %v", err)
	}

	srv := server.New(cfg.Addr, registry)
	go func() {
		clog.InfoContextf(ctx, "Serving %d tools on %s", len(registry.Definitions()), cfg.Addr)
		if err := srv.Start(); err != nil {
			clog.FatalContextf(ctx, "server: %v", err)
		}
	}()

	<-ctx.Done()
	clog.InfoContext(ctx, "Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		clog.ErrorContextf(ctx, "shutdown: %v", err)
	}
}

func buildResolver(cfg *config) (*refs.Resolver, error) {
	if cfg.RefsPolicyPath != "" {
		policy, err := refs.LoadPolicy(cfg.RefsPolicyPath)
		if err != nil {
			return nil, err
		}
		return policy.Resolver()
	}
	if cfg.ControllerRepo == "" || cfg.WorkingBranch == "" {
		return nil, errors.New("either REFS_POLICY_PATH or CONTROLLER_REPO and WORKING_BRANCH are required")
	}
	controller, err := refs.ParseRepository(cfg.ControllerRepo)
	if err != nil {
		return nil, err
	}
	return refs.NewResolver(controller, cfg.WorkingBranch)
}

func buildGitHubAuth(ctx context.Context, cfg *config) (*github.Client, oauth2.TokenSource, error) {
	switch {
	case cfg.GitHubToken != "":
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHubToken})
		return remote.NewTokenClient(ctx, cfg.GitHubToken), src, nil
	case cfg.GitHubAppID != 0 && cfg.GitHubInstallationID != 0 && cfg.GitHubAppKeyPath != "":
		tr, err := remote.NewAppTransport(cfg.GitHubAppID, cfg.GitHubInstallationID, cfg.GitHubAppKeyPath)
		if err != nil {
			return nil, nil, err
		}
		return remote.NewAppClient(tr), remote.AppTokenSource(ctx, tr), nil
	default:
		return nil, nil, errors.New("either GITHUB_TOKEN or the GITHUB_APP_* triple is required")
	}
}
