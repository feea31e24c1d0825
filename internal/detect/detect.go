// Package detect holds the pattern detectors that power SkillGate's editor
// diagnostics: capability diffing for policy files, instruction and memory
// scanning for agent guidance files, risk hints for hook scripts, and policy
// schema linting.
//
// Every detector is a pure, synchronous, single-pass scanner over document
// text. Detectors never do I/O, never share state, and never fail: malformed
// input simply yields fewer matches. That keeps them safe to run on every
// debounced keystroke and trivially table-testable.
package detect

import "strings"

// Source tags attached to findings so hosts can attribute them per surface.
const (
	SourceCapability   = "skillgate.capability"
	SourcePolicy       = "skillgate.policy"
	SourceInstructions = "skillgate.instructions"
	SourceHooks        = "skillgate.hooks"
	SourceMemory       = "skillgate.memory"
)

// splitLines splits document text into lines, tolerating CRLF endings.
// Line numbers reported by detectors are 1-based indexes into this slice.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
