/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// NewTokenClient builds a go-github client authenticated with a static
// token, typically a personal access token or a pre-minted installation
// token.
func NewTokenClient(ctx context.Context, token string) *github.Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return github.NewClient(oauth2.NewClient(ctx, src))
}

// NewAppTransport authenticates as a GitHub App installation using the
// App's private key on disk.
func NewAppTransport(appID, installationID int64, privateKeyPath string) (*ghinstallation.Transport, error) {
	tr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("loading app %d key: %w", appID, err)
	}
	return tr, nil
}

// NewAppClient builds a go-github client from an App installation transport.
func NewAppClient(tr *ghinstallation.Transport) *github.Client {
	return github.NewClient(&http.Client{Transport: tr})
}

// AppTokenSource adapts an App installation transport into an
// oauth2.TokenSource so git-over-HTTPS operations can share the same
// credential as the REST client.
func AppTokenSource(ctx context.Context, tr *ghinstallation.Transport) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, appTokenSource{ctx: ctx, tr: tr})
}

type appTokenSource struct {
	ctx context.Context
	tr  *ghinstallation.Transport
}

func (s appTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.tr.Token(s.ctx)
	if err != nil {
		return nil, fmt.Errorf("minting installation token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok}, nil
}
