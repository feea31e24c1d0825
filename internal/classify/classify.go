// Package classify maps workspace file paths to the analyses that apply to
// them. The suffix and substring predicates here are the engine's entire
// coupling to a host editor's open/change/save events.
package classify

import (
	"path/filepath"
	"strings"

	"github.com/IGLOU-EU/go-wildcard/v2"
)

// Kind identifies one analysis bundle a document can receive.
type Kind string

const (
	// KindPolicy runs the policy linter plus the capability diff against the
	// last committed baseline.
	KindPolicy Kind = "policy"
	// KindInstruction runs the instruction warning scanner.
	KindInstruction Kind = "instruction"
	// KindHook runs the risk hint scanner over hook scripts.
	KindHook Kind = "hook"
	// KindMemory runs the instruction scanner filtered to persisted
	// capability overrides.
	KindMemory Kind = "memory"
	// KindRiskSweep is the cross-cutting risk scan applied to every document
	// regardless of its other kinds.
	KindRiskSweep Kind = "risk-sweep"
)

// Channel names the scheduler's edit-coalescing group for a document.
type Channel string

const (
	// ChannelPolicy debounces policy-file edits.
	ChannelPolicy Channel = "policy"
	// ChannelInstruction debounces instruction-file edits.
	ChannelInstruction Channel = "instruction"
	// ChannelImmediate bypasses debouncing entirely. Hook and memory edits
	// run on every change, as does the risk sweep for unclassified files.
	ChannelImmediate Channel = "immediate"
)

// hookPatterns match hook scripts at any depth below a .claude/hooks
// directory. The wildcard star crosses path separators.
var hookPatterns = []string{
	"*/.claude/hooks/*.sh",
	"*/.claude/hooks/*.json",
}

// Classification is the analysis plan for one document.
type Classification struct {
	// Path is the normalized forward-slash path used as document identity.
	Path string
	// Kinds lists the applicable analyses in the fixed execution order:
	// policy, instruction, hook, memory, then the risk sweep. Never empty;
	// the risk sweep applies to every document.
	Kinds []Kind
	// Channel is the scheduler group for edits to this document.
	Channel Channel
}

// Has reports whether the plan includes the given analysis kind.
func (c Classification) Has(k Kind) bool {
	for _, kind := range c.Kinds {
		if kind == k {
			return true
		}
	}
	return false
}

// Normalize converts a host path to the canonical forward-slash form used
// for classification and as the diagnostic map key. A leading slash is
// ensured so suffix predicates behave the same for workspace-relative and
// absolute inputs.
func Normalize(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Classify maps a path to its analysis plan.
//
// A document may match several kinds; they are reported in the fixed union
// order. The debounce channel follows the first matched kind: policy files
// coalesce on the policy channel, instruction files on the instruction
// channel, and everything else runs immediately.
func Classify(path string) Classification {
	p := Normalize(path)

	var kinds []Kind
	if isPolicy(p) {
		kinds = append(kinds, KindPolicy)
	}
	if isInstruction(p) {
		kinds = append(kinds, KindInstruction)
	}
	if isHook(p) {
		kinds = append(kinds, KindHook)
	}
	if isMemory(p) {
		kinds = append(kinds, KindMemory)
	}
	kinds = append(kinds, KindRiskSweep)

	return Classification{Path: p, Kinds: kinds, Channel: channelFor(kinds[0])}
}

func isPolicy(p string) bool {
	return strings.HasSuffix(p, "/.skillgate.yml") || strings.HasSuffix(p, "/skillgate.yml")
}

func isInstruction(p string) bool {
	return strings.HasSuffix(p, "/CLAUDE.md") ||
		strings.HasSuffix(p, "/AGENTS.md") ||
		strings.HasSuffix(p, "/.claude/instructions.md")
}

func isHook(p string) bool {
	for _, pattern := range hookPatterns {
		if wildcard.Match(pattern, p) {
			return true
		}
	}
	return false
}

func isMemory(p string) bool {
	return strings.HasSuffix(p, "/MEMORY.md") || strings.Contains(p, "/.claude/memory/")
}

func channelFor(first Kind) Channel {
	switch first {
	case KindPolicy:
		return ChannelPolicy
	case KindInstruction:
		return ChannelInstruction
	default:
		return ChannelImmediate
	}
}
