package diag

// Severity classifies how serious a finding is.
type Severity string

const (
	// SeverityInfo is advisory output that needs no action.
	SeverityInfo Severity = "info"
	// SeverityWarning flags something that deserves review before shipping.
	SeverityWarning Severity = "warning"
	// SeverityError flags a violation that should block in CI mode.
	SeverityError Severity = "error"
)

// rank orders severities for comparisons; higher is worse.
func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other.
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Finding is the generic diagnostic shape every detector produces.
//
// Findings are ephemeral: each analysis pass recomputes the full set for a
// document and replaces whatever was published before. Nothing ever patches
// a Finding in place.
type Finding struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Line     int      `json:"line"` // 1-based
	Source   string   `json:"source"`
}

// HasErrors reports whether any finding in the slice is error severity.
func HasErrors(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int)
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
