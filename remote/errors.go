/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package remote

import (
	"errors"
	"fmt"

	"github.com/octoplane/octoplane/refs"
)

// NotFoundError indicates the requested file does not exist at the given
// ref. It is a distinct outcome from transport failure: some callers treat
// it as "create a new file" while others treat it as a hard error.
type NotFoundError struct {
	Repo refs.Repository
	Path string
	Ref  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s not found at %s", e.Repo, e.Path, e.Ref)
}

// IsNotFound reports whether err is a read miss.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// APIError carries a remote API failure with its status and message intact.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("github api: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github api: %s", e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
