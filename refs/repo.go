/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package refs

import (
	"fmt"
	"strings"
)

// Repository identifies a GitHub repository by owner and name. It is
// immutable once constructed; the canonical serialized form is "owner/name".
type Repository struct {
	Owner string
	Name  string
}

// ParseRepository parses a full name of the form "owner/name". Missing
// separator or empty segments are construction errors.
func ParseRepository(fullName string) (Repository, error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok {
		return Repository{}, fmt.Errorf("repository %q: want owner/name", fullName)
	}
	if owner == "" || name == "" {
		return Repository{}, fmt.Errorf("repository %q: owner and name must be non-empty", fullName)
	}
	if strings.Contains(name, "/") {
		return Repository{}, fmt.Errorf("repository %q: want exactly one / separator", fullName)
	}
	return Repository{Owner: owner, Name: name}, nil
}

// String returns the canonical "owner/name" form.
func (r Repository) String() string {
	return r.Owner + "/" + r.Name
}
