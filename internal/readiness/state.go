// Package readiness probes the three external preconditions for
// runtime-dependent SkillGate features (CLI installed, session
// authenticated, sidecar reachable) and derives a single ordered next step
// from them. Static diagnostics never depend on this package; only actions
// that need the CLI or sidecar are gated on its state.
package readiness

import "time"

// NextStep is the single action a user should take to advance readiness.
type NextStep string

const (
	// StepInstallCLI means the SkillGate CLI is missing or too old.
	StepInstallCLI NextStep = "install-cli"
	// StepLogin means the CLI is present but the session is unauthenticated.
	StepLogin NextStep = "login"
	// StepStartSidecar means the local decision service is not answering.
	StepStartSidecar NextStep = "start-sidecar"
	// StepReady means every precondition holds.
	StepReady NextStep = "ready"
)

// DefaultInstallHint is shown whenever the CLI cannot be found.
const DefaultInstallHint = "Install the SkillGate CLI (pipx install skillgate) and ensure it is on your PATH."

// State is one immutable preflight snapshot. Checks recompute it wholesale;
// nothing ever patches an existing State in place, and callers receive it
// by value.
type State struct {
	CLIInstalled   bool      `json:"cli_installed"`
	Authenticated  bool      `json:"authenticated"`
	SidecarRunning bool      `json:"sidecar_running"`
	NextStep       NextStep  `json:"next_step"`
	CLIVersion     string    `json:"cli_version,omitempty"`
	CLIInstallHint string    `json:"cli_install_hint"`
	CheckedAt      time.Time `json:"checked_at"`
}

// Ready reports whether runtime-dependent actions may proceed.
func (s State) Ready() bool {
	return s.NextStep == StepReady
}

// Derive computes the next step from the three booleans alone, under strict
// precedence: a missing CLI outranks authentication, which outranks the
// sidecar. No other mapping is representable.
func Derive(cliInstalled, authenticated, sidecarRunning bool) NextStep {
	switch {
	case !cliInstalled:
		return StepInstallCLI
	case !authenticated:
		return StepLogin
	case !sidecarRunning:
		return StepStartSidecar
	default:
		return StepReady
	}
}
