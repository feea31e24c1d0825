package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/skillgate/ide-core/internal/diag"
)

// policyVersionPattern accepts the required top-level version declaration,
// quoted or bare. Only schema version 1 exists.
var policyVersionPattern = regexp.MustCompile(`(?m)^version:\s*["']?1["']?\s*(#.*)?$`)

// topLevelKeyPattern matches a `key:` at column zero. Indented lines belong
// to a nested block and are not schema keys.
var topLevelKeyPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.-]*):`)

// policyAllowedKeys is the fixed schema allow-list for .skillgate.yml.
// The capability tokens are included: flat-style policies declare them at
// the top level.
var policyAllowedKeys = map[string]bool{
	"version":      true,
	"capabilities": true,
	"rules":        true,
	"ignore":       true,
	"approvals":    true,
	"metadata":     true,
	"shell.exec":   true,
	"net.outbound": true,
	"fs.write":     true,
	"fs.read":      true,
	"eval.exec":    true,
}

// deprecatedPolicyPattern is one retired v0 literal and its replacement.
type deprecatedPolicyPattern struct {
	literal string
	message string
}

// deprecatedPolicyPatterns are v0 schema leftovers that still parse but no
// longer do anything.
var deprecatedPolicyPatterns = []deprecatedPolicyPattern{
	{
		literal: "allow_shell",
		message: "allow_shell is deprecated; declare a shell.exec capability instead",
	},
	{
		literal: "trust_level",
		message: "trust_level is deprecated; select a policy pack instead",
	},
}

// LintPolicy validates the shape of a .skillgate.yml document: the required
// version declaration, the top-level key allow-list, and deprecated v0
// literals. It checks shape only: capability semantics belong to
// DiffCapabilities, and full rule evaluation belongs to the scan engine.
func LintPolicy(text string) []diag.Finding {
	var findings []diag.Finding

	if !policyVersionPattern.MatchString(text) {
		findings = append(findings, diag.Finding{
			Message:  `missing required declaration: version: "1"`,
			Severity: diag.SeverityError,
			Line:     1,
			Source:   SourcePolicy,
		})
	}

	for i, line := range splitLines(text) {
		if m := topLevelKeyPattern.FindStringSubmatch(line); m != nil {
			if !policyAllowedKeys[m[1]] {
				findings = append(findings, diag.Finding{
					Message:  fmt.Sprintf("unknown field %q in policy document", m[1]),
					Severity: diag.SeverityError,
					Line:     i + 1,
					Source:   SourcePolicy,
				})
			}
		}
		for _, dep := range deprecatedPolicyPatterns {
			if strings.Contains(line, dep.literal) {
				findings = append(findings, diag.Finding{
					Message:  dep.message,
					Severity: diag.SeverityWarning,
					Line:     i + 1,
					Source:   SourcePolicy,
				})
			}
		}
	}

	return findings
}
