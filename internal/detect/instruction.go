package detect

import (
	"fmt"
	"regexp"

	"github.com/skillgate/ide-core/internal/diag"
)

// WarningCategory labels the kind of hostile instruction a line matched.
type WarningCategory string

const (
	// CategoryJailbreak covers attempts to suppress or replace prior guidance.
	CategoryJailbreak WarningCategory = "jailbreak"
	// CategoryCapabilityOverride covers attempts to talk the agent past its
	// declared capability scope or approval gates.
	CategoryCapabilityOverride WarningCategory = "capability-override"
	// CategoryExfiltration covers instructions to move secrets off the host.
	CategoryExfiltration WarningCategory = "exfiltration"
)

// InstructionWarning is one suspicious line in an instruction file.
type InstructionWarning struct {
	Line     int
	Category WarningCategory
	Message  string
	Snippet  string // the matched text, for display next to the message
}

// Finding converts the warning into the generic diagnostic shape.
func (w InstructionWarning) Finding() diag.Finding {
	return diag.Finding{
		Message:  fmt.Sprintf("%s: %q", w.Message, w.Snippet),
		Severity: diag.SeverityWarning,
		Line:     w.Line,
		Source:   SourceInstructions,
	}
}

// instructionRule binds one category to its single detection pattern.
type instructionRule struct {
	category WarningCategory
	message  string
	pattern  *regexp.Regexp
}

// instructionRules is the fixed rule table. Exactly one case-insensitive
// pattern per category; a line matching several categories yields one
// warning per matching category.
var instructionRules = []instructionRule{
	{
		category: CategoryJailbreak,
		message:  "instruction attempts to suppress prior guidance",
		pattern: regexp.MustCompile(
			`(?i)(ignore|disregard|forget)\s+(all\s+|any\s+|your\s+)?(previous|prior|earlier|above)\s+(instructions|rules|guidance|prompts)` +
				`|\bjailbreak\b` +
				`|\bdo\s+anything\s+now\b`),
	},
	{
		category: CategoryCapabilityOverride,
		message:  "instruction attempts to override declared capabilities",
		pattern: regexp.MustCompile(
			`(?i)(override|bypass|disable|circumvent)\s+(the\s+|all\s+|any\s+)?(policy|policies|sandbox|guardrails?|permissions?|capabilit(y|ies)|approvals?|safety)\b` +
				`|(grant|give)\s+(yourself|the\s+agent)\s+(full|unrestricted|admin|root)\s+(access|permissions?|capabilit(y|ies))`),
	},
	{
		category: CategoryExfiltration,
		message:  "instruction directs data exfiltration",
		pattern: regexp.MustCompile(
			`(?i)(send|upload|post|forward|exfiltrate|copy|transmit|leak)\b[^\n]{0,80}?` +
				`(\bsecrets?\b|\bcredentials?\b|\btokens?\b|\bapi[\s_-]?keys?\b|\bpasswords?\b|\bprivate\s+keys?\b|\.env\b)`),
	},
}

// ScanInstructions runs every instruction rule over every line of text.
// Warnings come out in line order; within a line, in rule-table order.
func ScanInstructions(text string) []InstructionWarning {
	var warnings []InstructionWarning
	for i, line := range splitLines(text) {
		for _, rule := range instructionRules {
			match := rule.pattern.FindString(line)
			if match == "" {
				continue
			}
			warnings = append(warnings, InstructionWarning{
				Line:     i + 1,
				Category: rule.category,
				Message:  rule.message,
				Snippet:  match,
			})
		}
	}
	return warnings
}

// ScanMemory applies the instruction rules to a memory file and keeps only
// capability-override matches, relabeled as memory-policy violations: memory
// is agent-writable, so a capability override planted there outlives the
// session that wrote it.
func ScanMemory(text string) []diag.Finding {
	var findings []diag.Finding
	for _, w := range ScanInstructions(text) {
		if w.Category != CategoryCapabilityOverride {
			continue
		}
		findings = append(findings, diag.Finding{
			Message:  fmt.Sprintf("memory-policy violation: persisted capability override: %q", w.Snippet),
			Severity: diag.SeverityWarning,
			Line:     w.Line,
			Source:   SourceMemory,
		})
	}
	return findings
}
