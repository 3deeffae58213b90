/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package writegate implements the process-wide switch that must be open
// before any operation is allowed to mutate remote repository state or
// destroy local workspace state.
//
// The gate is a single coarse boolean: there is no per-repository or
// per-branch granularity, and no lease semantics. Concurrent callers may
// observe either side of a toggle that races with their call.
package writegate
