/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package refs

import "errors"

// DefaultBranch is the branch assumed when a caller does not request a ref
// on an ordinary repository.
const DefaultBranch = "main"

// Resolver maps (repository, requested ref) pairs to the ref actually used
// for an operation. It is configured once at process start and is safe for
// concurrent use; EffectiveRef is a pure function of its inputs.
type Resolver struct {
	controller    Repository
	workingBranch string
}

// NewResolver returns a Resolver that substitutes workingBranch whenever the
// controller repository is addressed without an explicit non-main ref.
func NewResolver(controller Repository, workingBranch string) (*Resolver, error) {
	if controller.Owner == "" || controller.Name == "" {
		return nil, errors.New("controller repository must be set")
	}
	if workingBranch == "" {
		return nil, errors.New("controller working branch must be set")
	}
	return &Resolver{controller: controller, workingBranch: workingBranch}, nil
}

// Controller returns the configured controller repository.
func (r *Resolver) Controller() Repository {
	return r.controller
}

// EffectiveRef resolves the ref to use for repo. For the controller
// repository a missing ref, or an explicit request for main, is redirected
// to the configured working branch; any other explicit ref passes through.
// For every other repository a missing ref defaults to main and explicit
// refs pass through unchanged.
func (r *Resolver) EffectiveRef(repo Repository, requested string) string {
	if repo == r.controller {
		if requested == "" || requested == DefaultBranch {
			return r.workingBranch
		}
		return requested
	}
	if requested == "" {
		return DefaultBranch
	}
	return requested
}
