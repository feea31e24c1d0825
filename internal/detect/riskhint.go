package detect

import (
	"fmt"
	"regexp"

	"github.com/skillgate/ide-core/internal/diag"
)

// RiskRule is one declarative risk-hint rule: a detection pattern plus the
// metadata surfaced with every match. Rules carry SkillGate rule IDs so
// editor findings line up with scan-engine findings for the same code.
type RiskRule struct {
	ID          string
	Severity    diag.Severity
	Message     string
	Remediation string
	pattern     *regexp.Regexp
}

// RiskHint is one rule match at a specific line.
type RiskHint struct {
	Line        int
	RuleID      string
	Message     string
	Severity    diag.Severity
	Remediation string
}

// Finding converts the hint into the generic diagnostic shape.
func (h RiskHint) Finding() diag.Finding {
	return diag.Finding{
		Message:  fmt.Sprintf("%s [%s]. %s", h.Message, h.RuleID, h.Remediation),
		Severity: h.Severity,
		Line:     h.Line,
		Source:   SourceHooks,
	}
}

// riskRules is the fixed rule table. The shell and eval patterns are kept
// disjoint so `os.system(` attributes to the shell rule alone.
var riskRules = []RiskRule{
	{
		ID:          "SG-SHELL-001",
		Severity:    diag.SeverityError,
		Message:     "shell execution in agent-managed file",
		Remediation: "Route shell commands through an approved tool wrapper so SkillGate can budget and audit them.",
		pattern: regexp.MustCompile(
			`(?i)os\.system\s*\(` +
				`|subprocess\.(run|call|popen|check_output|check_call)` +
				`|child_process` +
				`|\bexecSync\s*\(` +
				`|\bspawnSync\s*\(` +
				`|\b(sh|bash|zsh)\s+-c\b`),
	},
	{
		ID:          "SG-NET-001",
		Severity:    diag.SeverityWarning,
		Message:     "outbound network call",
		Remediation: "Declare the destination under net.outbound in .skillgate.yml so the scope stays reviewable.",
		pattern: regexp.MustCompile(
			`(?i)https?://` +
				`|\bfetch\s*\(` +
				`|requests\.(get|post|put|delete|request)` +
				`|urllib\.request` +
				`|\bcurl\s` +
				`|\bwget\s` +
				`|http\.(Get|Post|PostForm)\s*\(`),
	},
	{
		ID:          "SG-EVAL-001",
		Severity:    diag.SeverityError,
		Message:     "dynamic code execution",
		Remediation: "Replace dynamic evaluation with explicit logic; eval'd strings defeat static review.",
		pattern: regexp.MustCompile(
			`(?i)\beval\s*\(` +
				`|new\s+Function\s*\(` +
				`|\bexec\s*\(` +
				`|\bsetTimeout\s*\(\s*["']` +
				`|\bsetInterval\s*\(\s*["']`),
	},
}

// RiskRules exposes the rule table for listings and documentation output.
func RiskRules() []RiskRule {
	out := make([]RiskRule, len(riskRules))
	copy(out, riskRules)
	return out
}

// ScanRiskHints runs every risk rule over every line of text. Hints come out
// in line order; a line matching several rules yields one hint per rule.
func ScanRiskHints(text string) []RiskHint {
	var hints []RiskHint
	for i, line := range splitLines(text) {
		for _, rule := range riskRules {
			if !rule.pattern.MatchString(line) {
				continue
			}
			hints = append(hints, RiskHint{
				Line:        i + 1,
				RuleID:      rule.ID,
				Message:     rule.Message,
				Severity:    rule.Severity,
				Remediation: rule.Remediation,
			})
		}
	}
	return hints
}
