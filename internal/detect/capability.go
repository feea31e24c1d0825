package detect

import (
	"fmt"
	"strings"

	"github.com/skillgate/ide-core/internal/diag"
)

// Wildcard is the scope marker that makes a capability value unbounded.
const Wildcard = "*"

// capabilityTokens is the fixed set of capability names a policy document
// may declare. Anything else on a line is not a capability declaration.
var capabilityTokens = []string{
	"shell.exec",
	"net.outbound",
	"fs.write",
	"fs.read",
	"eval.exec",
}

// ChangeKind says how a capability declaration moved between two revisions.
type ChangeKind string

const (
	// ChangeAdded marks a capability present only in the newer revision.
	ChangeAdded ChangeKind = "added"
	// ChangeChanged marks a capability whose declared value differs.
	ChangeChanged ChangeKind = "changed"
	// ChangeRemoved marks a capability present only in the older revision.
	ChangeRemoved ChangeKind = "removed"
)

// CapabilityDecl is one parsed capability declaration.
type CapabilityDecl struct {
	Name  string
	Value string
	Line  int // 1-based line of the declaration
}

// CapabilityChange is one entry in the diff between two policy revisions.
type CapabilityChange struct {
	Capability string
	Change     ChangeKind
	Severity   diag.Severity
	Message    string
	Line       int // anchor in the newer revision; 1 for removals
}

// Finding converts the change into the generic diagnostic shape.
func (c CapabilityChange) Finding() diag.Finding {
	return diag.Finding{
		Message:  c.Message,
		Severity: c.Severity,
		Line:     c.Line,
		Source:   SourceCapability,
	}
}

// ParseCapabilities extracts every capability declaration from policy text,
// in document order. A token may appear at any indent (flat style or nested
// under a capabilities: block); a repeated token keeps its first position
// but takes the last declared value.
func ParseCapabilities(text string) []CapabilityDecl {
	byName := make(map[string]int) // name -> index into decls
	var decls []CapabilityDecl

	for i, line := range splitLines(text) {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		for _, token := range capabilityTokens {
			rest, ok := strings.CutPrefix(trimmed, token)
			if !ok {
				continue
			}
			rest, ok = strings.CutPrefix(rest, ":")
			if !ok {
				continue
			}
			value := unquote(strings.TrimSpace(rest))
			if idx, seen := byName[token]; seen {
				decls[idx].Value = value
				decls[idx].Line = i + 1
			} else {
				byName[token] = len(decls)
				decls = append(decls, CapabilityDecl{Name: token, Value: value, Line: i + 1})
			}
			break
		}
	}
	return decls
}

// DiffCapabilities compares two policy texts and reports every capability
// that was added, changed, or removed between them.
//
// Output order is fixed: additions and changes in the newer text's
// declaration order first, then removals in the older text's order. An
// identical declaration set yields an empty diff.
func DiffCapabilities(before, after string) []CapabilityChange {
	beforeDecls := ParseCapabilities(before)
	afterDecls := ParseCapabilities(after)

	beforeByName := make(map[string]CapabilityDecl, len(beforeDecls))
	for _, d := range beforeDecls {
		beforeByName[d.Name] = d
	}
	afterByName := make(map[string]CapabilityDecl, len(afterDecls))
	for _, d := range afterDecls {
		afterByName[d.Name] = d
	}

	var changes []CapabilityChange

	for _, d := range afterDecls {
		old, existed := beforeByName[d.Name]
		switch {
		case !existed:
			changes = append(changes, newCapability(d))
		case old.Value != d.Value:
			changes = append(changes, changedCapability(old, d))
		}
	}

	for _, d := range beforeDecls {
		if _, still := afterByName[d.Name]; still {
			continue
		}
		changes = append(changes, CapabilityChange{
			Capability: d.Name,
			Change:     ChangeRemoved,
			Severity:   diag.SeverityInfo,
			Message:    fmt.Sprintf("capability %s removed (was %q)", d.Name, d.Value),
			Line:       1,
		})
	}

	return changes
}

// newCapability classifies a declaration absent from the older revision.
// A wildcard net.outbound grant is the one addition reported as an error.
func newCapability(d CapabilityDecl) CapabilityChange {
	severity := diag.SeverityWarning
	if d.Name == "net.outbound" && strings.Contains(d.Value, Wildcard) {
		severity = diag.SeverityError
	}
	return CapabilityChange{
		Capability: d.Name,
		Change:     ChangeAdded,
		Severity:   severity,
		Message:    fmt.Sprintf("new capability declared: %s = %q", d.Name, d.Value),
		Line:       d.Line,
	}
}

// changedCapability classifies a value change as an expansion (wildcard or
// strictly longer scope: error) or a narrowing (warning).
func changedCapability(old, now CapabilityDecl) CapabilityChange {
	expanded := strings.Contains(now.Value, Wildcard) || len(now.Value) > len(old.Value)
	severity := diag.SeverityWarning
	verb := "changed"
	if expanded {
		severity = diag.SeverityError
		verb = "expanded"
	}
	return CapabilityChange{
		Capability: now.Name,
		Change:     ChangeChanged,
		Severity:   severity,
		Message:    fmt.Sprintf("capability %s scope %s: %q -> %q", now.Name, verb, old.Value, now.Value),
		Line:       now.Line,
	}
}

// unquote strips one matching pair of surrounding quotes, if present.
// Values are compared and displayed unquoted so `"*"` and `*` mean the same
// scope.
func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
