/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package remote defines the content-addressed repository store the
// orchestration layers talk to, and its GitHub implementation.
//
// The store is the single source of truth: callers never assume a write
// landed as sent, and always revalidate through an independent read. API
// failures propagate with their status and message intact; the store never
// wraps them into other error categories.
package remote
