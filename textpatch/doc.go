/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package textpatch applies unified diffs to in-memory text.
//
// Apply is strict: every context and removed line of every hunk must match
// the original text verbatim at the hunk's claimed position, or the whole
// application fails with no partial output. There is no fuzzy matching and
// no offset search; a patch generated against stale content fails rather
// than producing a garbled result.
//
// Unified renders an informational unified diff between two texts. It is the
// generation counterpart of Apply: applying its output to the first text
// reproduces the second.
package textpatch
