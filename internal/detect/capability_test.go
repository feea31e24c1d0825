package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillgate/ide-core/internal/diag"
)

func TestParseCapabilities(t *testing.T) {
	text := `version: "1"
capabilities:
  shell.exec: "none"
  net.outbound: "api.internal"
# fs.write: "commented out"
fs.read: repo
`
	decls := ParseCapabilities(text)
	require.Len(t, decls, 3)

	assert.Equal(t, CapabilityDecl{Name: "shell.exec", Value: "none", Line: 3}, decls[0])
	assert.Equal(t, CapabilityDecl{Name: "net.outbound", Value: "api.internal", Line: 4}, decls[1])
	assert.Equal(t, CapabilityDecl{Name: "fs.read", Value: "repo", Line: 6}, decls[2])
}

func TestParseCapabilities_RepeatedTokenKeepsLastValue(t *testing.T) {
	decls := ParseCapabilities("fs.read: a\nfs.read: b\n")
	require.Len(t, decls, 1)
	assert.Equal(t, "b", decls[0].Value)
	assert.Equal(t, 2, decls[0].Line)
}

func TestDiffCapabilities_IdenticalTextsYieldEmptyDiff(t *testing.T) {
	text := "shell.exec: none\nnet.outbound: \"api.internal\"\n"
	assert.Empty(t, DiffCapabilities(text, text))

	// Same declarations, different surrounding noise.
	before := "# old comment\nshell.exec: none\n"
	after := "shell.exec: none\n# new comment\n"
	assert.Empty(t, DiffCapabilities(before, after))
}

func TestDiffCapabilities_WildcardOutboundAddIsError(t *testing.T) {
	before := "version: \"1\"\n"
	after := "version: \"1\"\nnet.outbound: \"*\"\n"

	changes := DiffCapabilities(before, after)
	require.Len(t, changes, 1)

	assert.Equal(t, ChangeAdded, changes[0].Change)
	assert.Equal(t, diag.SeverityError, changes[0].Severity)
	assert.Contains(t, changes[0].Message, "net.outbound")
	assert.Equal(t, 2, changes[0].Line)
}

func TestDiffCapabilities_AddSeverity(t *testing.T) {
	tests := []struct {
		name     string
		after    string
		severity diag.Severity
	}{
		{
			name:     "scoped outbound add is a warning",
			after:    "net.outbound: \"api.internal\"\n",
			severity: diag.SeverityWarning,
		},
		{
			name:     "wildcard on a non-network capability is still a warning",
			after:    "fs.write: \"*\"\n",
			severity: diag.SeverityWarning,
		},
		{
			name:     "wildcard anywhere in the outbound value is an error",
			after:    "net.outbound: \"*.example.com\"\n",
			severity: diag.SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := DiffCapabilities("", tt.after)
			require.Len(t, changes, 1)
			assert.Equal(t, ChangeAdded, changes[0].Change)
			assert.Equal(t, tt.severity, changes[0].Severity)
		})
	}
}

func TestDiffCapabilities_RemovalIsAlwaysInfo(t *testing.T) {
	before := "shell.exec: \"none\"\nnet.outbound: \"*\"\n"
	changes := DiffCapabilities(before, "")
	require.Len(t, changes, 2)

	for _, c := range changes {
		assert.Equal(t, ChangeRemoved, c.Change)
		assert.Equal(t, diag.SeverityInfo, c.Severity)
		assert.Equal(t, 1, c.Line)
	}
	// Removals come out in the older text's declaration order.
	assert.Equal(t, "shell.exec", changes[0].Capability)
	assert.Equal(t, "net.outbound", changes[1].Capability)
}

func TestDiffCapabilities_ValueChangeSeverity(t *testing.T) {
	tests := []struct {
		name     string
		before   string
		after    string
		severity diag.Severity
	}{
		{
			name:     "strictly shorter non-wildcard value narrows scope",
			before:   "fs.write: \"workspace/tmp\"\n",
			after:    "fs.write: \"tmp\"\n",
			severity: diag.SeverityWarning,
		},
		{
			name:     "longer value expands scope",
			before:   "fs.write: \"tmp\"\n",
			after:    "fs.write: \"tmp-and-cache\"\n",
			severity: diag.SeverityError,
		},
		{
			name:     "wildcard value expands scope even when shorter",
			before:   "net.outbound: \"api.internal.example.com\"\n",
			after:    "net.outbound: \"*\"\n",
			severity: diag.SeverityError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes := DiffCapabilities(tt.before, tt.after)
			require.Len(t, changes, 1)
			assert.Equal(t, ChangeChanged, changes[0].Change)
			assert.Equal(t, tt.severity, changes[0].Severity)
			assert.Contains(t, changes[0].Message, changes[0].Capability)
		})
	}
}

func TestDiffCapabilities_OutputOrder(t *testing.T) {
	before := `shell.exec: "none"
fs.read: "repo"
fs.write: "tmp"
`
	after := `eval.exec: "deny"
fs.read: "repo-plus-docs"
`
	changes := DiffCapabilities(before, after)
	require.Len(t, changes, 4)

	// Adds and changes first, in the newer text's order.
	assert.Equal(t, "eval.exec", changes[0].Capability)
	assert.Equal(t, ChangeAdded, changes[0].Change)
	assert.Equal(t, "fs.read", changes[1].Capability)
	assert.Equal(t, ChangeChanged, changes[1].Change)

	// Then removals, in the older text's order.
	assert.Equal(t, "shell.exec", changes[2].Capability)
	assert.Equal(t, ChangeRemoved, changes[2].Change)
	assert.Equal(t, "fs.write", changes[3].Capability)
	assert.Equal(t, ChangeRemoved, changes[3].Change)
}

func TestCapabilityChange_Finding(t *testing.T) {
	changes := DiffCapabilities("", "net.outbound: \"*\"\n")
	require.Len(t, changes, 1)

	f := changes[0].Finding()
	assert.Equal(t, diag.SeverityError, f.Severity)
	assert.Equal(t, SourceCapability, f.Source)
	assert.Equal(t, 1, f.Line)
	assert.Contains(t, f.Message, "net.outbound")
}
