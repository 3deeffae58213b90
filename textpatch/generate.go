/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package textpatch

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Unified renders a unified diff from old to new for the named file, with
// three lines of context. The result is informational (surfaced alongside
// commit results); it is not used to drive any commit. Inputs are treated
// as newline-terminated line sequences.
func Unified(path, oldText, newText string) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        terminatedLines(oldText),
		B:        terminatedLines(newText),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("rendering diff for %s: %w", path, err)
	}
	return text, nil
}

// terminatedLines splits text into lines that each end with a newline, as
// the diff renderer expects.
func terminatedLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if last := len(lines) - 1; lines[last] == "" {
		lines = lines[:last]
	} else {
		lines[last] += "\n"
	}
	return lines
}
