/*
Copyright 2026 Octoplane Authors
SPDX-License-Identifier: Apache-2.0
*/

package textpatch

import (
	"fmt"
	"strings"

	"github.com/waigani/diffparser"
)

const noNewlineMarker = `\ No newline at end of file`

// MismatchError indicates a hunk whose context or removed lines did not
// match the original text at the claimed position. Nothing is applied when
// any hunk mismatches.
type MismatchError struct {
	// Hunk is the 1-based index of the failing hunk.
	Hunk int
	// Line is the 1-based line number in the original text where the
	// mismatch was detected.
	Line int
	// Want is the line the patch claimed to find; Got is what the original
	// actually contains ("<end of file>" past the last line).
	Want string
	Got  string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("patch hunk %d does not match source at line %d: want %q, got %q",
		e.Hunk, e.Line, e.Want, e.Got)
}

// Apply applies a unified diff to original and returns the patched text.
// The patch may carry full git headers ("diff --git", "---"/"+++") or start
// directly at the first @@ hunk. A patch describing more than one file is
// rejected.
//
// Trailing newlines are handled deterministically: when the final output
// line is copied from the original its trailing-newline state is preserved,
// and when it is added by the patch it ends with a newline unless the patch
// carries a "\ No newline at end of file" marker on its new side.
func Apply(original, patch string) (string, error) {
	parsed, err := diffparser.Parse(ensureFileHeader(patch))
	if err != nil {
		return "", fmt.Errorf("parsing patch: %w", err)
	}

	var file *diffparser.DiffFile
	for _, f := range parsed.Files {
		if len(f.Hunks) == 0 {
			continue
		}
		if file != nil {
			return "", fmt.Errorf("patch describes multiple files (%s, %s), want exactly one", file.OrigName, f.OrigName)
		}
		file = f
	}
	if file == nil {
		return "", fmt.Errorf("patch contains no hunks")
	}

	origLines, origTrailingNL := splitLines(original)
	newNoEOF := patchNewSideNoEOF(patch)

	var out []string
	cursor := 0
	lastAdded := false

	for hi, hunk := range file.Hunks {
		start, err := hunkStart(hunk)
		if err != nil {
			return "", fmt.Errorf("hunk %d: %w", hi+1, err)
		}
		if start < cursor {
			return "", fmt.Errorf("hunk %d overlaps a previous hunk at line %d", hi+1, start+1)
		}
		if start > len(origLines) {
			return "", &MismatchError{Hunk: hi + 1, Line: start + 1, Want: firstSourceLine(hunk), Got: "<end of file>"}
		}

		if start > cursor {
			out = append(out, origLines[cursor:start]...)
			cursor = start
			lastAdded = false
		}

		for _, line := range hunk.WholeRange.Lines {
			switch line.Mode {
			case diffparser.UNCHANGED, diffparser.REMOVED:
				if cursor >= len(origLines) {
					return "", &MismatchError{Hunk: hi + 1, Line: cursor + 1, Want: line.Content, Got: "<end of file>"}
				}
				if origLines[cursor] != line.Content {
					return "", &MismatchError{Hunk: hi + 1, Line: cursor + 1, Want: line.Content, Got: origLines[cursor]}
				}
				if line.Mode == diffparser.UNCHANGED {
					out = append(out, line.Content)
					lastAdded = false
				}
				cursor++
			case diffparser.ADDED:
				out = append(out, line.Content)
				lastAdded = true
			}
		}
	}

	tailCopied := cursor < len(origLines)
	out = append(out, origLines[cursor:]...)

	if len(out) == 0 {
		return "", nil
	}

	result := strings.Join(out, "\n")
	switch {
	case tailCopied:
		if origTrailingNL {
			result += "\n"
		}
	case lastAdded:
		if !newNoEOF {
			result += "\n"
		}
	default:
		// Final line is context copied from the original.
		if origTrailingNL && !newNoEOF {
			result += "\n"
		}
	}
	return result, nil
}

// hunkStart returns the 0-based index into the original lines at which the
// hunk's source lines must appear. Pure-insertion hunks (no context or
// removed lines) address the position after the header's start line.
func hunkStart(hunk *diffparser.DiffHunk) (int, error) {
	if hunk.OrigRange.Start < 0 {
		return 0, fmt.Errorf("invalid source start %d", hunk.OrigRange.Start)
	}
	pureInsert := true
	for _, line := range hunk.WholeRange.Lines {
		if line.Mode != diffparser.ADDED {
			pureInsert = false
			break
		}
	}
	if pureInsert {
		return hunk.OrigRange.Start, nil
	}
	if hunk.OrigRange.Start == 0 {
		return 0, fmt.Errorf("hunk with source lines claims start 0")
	}
	return hunk.OrigRange.Start - 1, nil
}

func firstSourceLine(hunk *diffparser.DiffHunk) string {
	for _, line := range hunk.WholeRange.Lines {
		if line.Mode != diffparser.ADDED {
			return line.Content
		}
	}
	return ""
}

// splitLines splits text into lines without terminators and reports whether
// the text ended with a newline. Empty text has no lines.
func splitLines(text string) ([]string, bool) {
	if text == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(text, "\n")
	if trailing {
		text = strings.TrimSuffix(text, "\n")
	}
	return strings.Split(text, "\n"), trailing
}

// ensureFileHeader prepends the git file header lines diffparser expects
// when the patch starts at "---" or directly at a hunk.
func ensureFileHeader(patch string) string {
	for _, l := range strings.Split(patch, "\n") {
		switch {
		case strings.HasPrefix(l, "diff "):
			return patch
		case strings.HasPrefix(l, "--- "):
			return "diff --git a/file b/file\n" + patch
		case strings.HasPrefix(l, "@@ "):
			return "diff --git a/file b/file\n--- a/file\n+++ b/file\n" + patch
		}
	}
	return patch
}

// patchNewSideNoEOF reports whether the patch declares that the new side of
// the file does not end with a newline. The marker applies to the preceding
// line: after "+" it binds the new side, after a context line it binds both
// sides.
func patchNewSideNoEOF(patch string) bool {
	lines := strings.Split(patch, "\n")
	for i, l := range lines {
		if l != noNewlineMarker || i == 0 {
			continue
		}
		prev := lines[i-1]
		if strings.HasPrefix(prev, "+") || strings.HasPrefix(prev, " ") {
			return true
		}
	}
	return false
}
