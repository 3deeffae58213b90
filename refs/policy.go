/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package refs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the on-disk form of the resolver configuration. It is read once
// at process start; nothing re-reads it per call.
type Policy struct {
	// Controller is the full name ("owner/name") of the repository hosting
	// this server's own source.
	Controller string `yaml:"controller"`
	// WorkingBranch is the branch controller-repo operations default onto
	// instead of main.
	WorkingBranch string `yaml:"workingBranch"`
}

// LoadPolicy reads a Policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing policy %s: %w", path, err)
	}
	return &p, nil
}

// Resolver constructs the Resolver described by the policy.
func (p *Policy) Resolver() (*Resolver, error) {
	controller, err := ParseRepository(p.Controller)
	if err != nil {
		return nil, fmt.Errorf("policy controller: %w", err)
	}
	return NewResolver(controller, p.WorkingBranch)
}
