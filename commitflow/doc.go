/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package commitflow turns intended file states into verified commits.
//
// Every mutation follows the same shape: resolve the effective ref, check
// the write gate, read the current state fresh, compute the new content,
// write it, then re-read the path independently and byte-compare against
// what was intended. The result reported to the caller always reflects the
// re-read, never the write response.
package commitflow
