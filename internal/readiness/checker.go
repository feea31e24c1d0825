package readiness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"
	"golang.org/x/time/rate"

	"github.com/skillgate/ide-core/internal/skillcli"
)

const (
	// installProbeTimeout bounds the whole installed probe, including the
	// version fallback invocation.
	installProbeTimeout = 2 * time.Second

	// authProbeTimeout bounds `auth status`.
	authProbeTimeout = 5 * time.Second

	// DefaultMinCLIVersion is the oldest CLI this engine drives correctly.
	// Older CLIs predate the approval-request and decide/full contracts.
	DefaultMinCLIVersion = "v0.4.0"

	// DefaultProbeInterval spaces out full probe rounds; checks arriving
	// faster get the previous snapshot back instead of spawning processes.
	DefaultProbeInterval = time.Second
)

// Overridable for tests.
var (
	execLookPath = exec.LookPath
	osStat       = os.Stat
)

// CLIProber is the slice of the CLI runner the checker needs.
type CLIProber interface {
	Version(ctx context.Context) (string, error)
	AuthStatus(ctx context.Context) error
}

// HealthProber reports whether the sidecar answers its health endpoint.
type HealthProber interface {
	Health(ctx context.Context) error
}

// Config controls one Checker.
type Config struct {
	// Binary is the CLI path or name whose installation is probed. A value
	// containing a path separator is stat'ed directly; a bare name resolves
	// via PATH.
	Binary string
	// MinVersion is the semver floor ("v0.4.0"). A CLI below it reports as
	// not installed with an upgrade hint. Empty disables the floor.
	MinVersion string
	// InstallHint overrides DefaultInstallHint in the missing-CLI state.
	InstallHint string
	// ProbeInterval is the minimum spacing between probe rounds. Zero
	// means DefaultProbeInterval; negative disables rate limiting.
	ProbeInterval time.Duration
}

// Checker runs the preflight probes. Checks are idempotent and safe to
// invoke concurrently: each recomputes a full State and overwrites the
// cached snapshot, never partially updating it.
type Checker struct {
	cfg     Config
	cli     CLIProber
	sidecar HealthProber
	limiter *rate.Limiter
	log     zerolog.Logger

	mu      sync.Mutex
	last    State
	hasLast bool
}

// NewChecker wires the probes. An invalid MinVersion disables the version
// floor rather than failing every check against a broken comparison.
func NewChecker(cfg Config, cli CLIProber, sidecar HealthProber, log zerolog.Logger) *Checker {
	if cfg.Binary == "" {
		cfg.Binary = skillcli.DefaultBinary
	}
	if cfg.InstallHint == "" {
		cfg.InstallHint = DefaultInstallHint
	}
	if cfg.MinVersion != "" && !semver.IsValid(cfg.MinVersion) {
		log.Warn().Str("min_version", cfg.MinVersion).Msg("invalid CLI version floor, disabling")
		cfg.MinVersion = ""
	}

	var limiter *rate.Limiter
	switch {
	case cfg.ProbeInterval == 0:
		limiter = rate.NewLimiter(rate.Every(DefaultProbeInterval), 1)
	case cfg.ProbeInterval > 0:
		limiter = rate.NewLimiter(rate.Every(cfg.ProbeInterval), 1)
	}

	return &Checker{cfg: cfg, cli: cli, sidecar: sidecar, limiter: limiter, log: log}
}

// Last returns the most recent snapshot, if any check has completed.
func (c *Checker) Last() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last, c.hasLast
}

// Check runs the preflight sequence and returns the fresh snapshot. Checks
// arriving faster than the probe interval return the previous snapshot
// unchanged; no probe retries internally, so re-check cadence belongs
// entirely to the caller.
func (c *Checker) Check(ctx context.Context) State {
	if c.limiter != nil && !c.limiter.Allow() {
		c.mu.Lock()
		last, ok := c.last, c.hasLast
		c.mu.Unlock()
		if ok {
			return last
		}
	}

	state := c.runProbes(ctx)

	c.mu.Lock()
	c.last = state
	c.hasLast = true
	c.mu.Unlock()

	c.log.Debug().
		Bool("cli_installed", state.CLIInstalled).
		Bool("authenticated", state.Authenticated).
		Bool("sidecar_running", state.SidecarRunning).
		Str("next_step", string(state.NextStep)).
		Msg("preflight check complete")
	return state
}

// runProbes executes the short-circuiting probe sequence. A probe is only
// reached while every earlier precondition holds; skipped probes leave
// their booleans false rather than carrying stale values. A panic anywhere
// resets the whole state to the install-cli baseline.
func (c *Checker) runProbes(ctx context.Context) (state State) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error().Interface("panic", r).Msg("preflight check panicked, resetting state")
			state = State{
				NextStep:       StepInstallCLI,
				CLIInstallHint: c.cfg.InstallHint,
				CheckedAt:      time.Now(),
			}
		}
	}()

	state = State{
		CLIInstallHint: c.cfg.InstallHint,
		CheckedAt:      time.Now(),
	}

	installed, version, hint := c.probeInstalled(ctx)
	state.CLIInstalled = installed
	state.CLIVersion = version
	if hint != "" {
		state.CLIInstallHint = hint
	}

	if state.CLIInstalled {
		state.Authenticated = c.probeAuthenticated(ctx)
	}
	if state.Authenticated {
		state.SidecarRunning = c.probeSidecar(ctx)
	}

	state.NextStep = Derive(state.CLIInstalled, state.Authenticated, state.SidecarRunning)
	return state
}

// probeInstalled resolves CLI presence, then applies the version floor.
//
// Presence: explicit paths are stat'ed for an executable bit; bare names go
// through PATH lookup; when both fail, a successful `version` invocation
// still counts as installed. The version floor reports an outdated CLI as
// not installed, with an upgrade hint instead of the install hint.
func (c *Checker) probeInstalled(ctx context.Context) (bool, string, string) {
	ctx, cancel := context.WithTimeout(ctx, installProbeTimeout)
	defer cancel()

	present := false
	if strings.ContainsAny(c.cfg.Binary, `/\`) {
		if info, err := osStat(c.cfg.Binary); err == nil && !info.IsDir() && info.Mode()&0o111 != 0 {
			present = true
		}
	} else if _, err := execLookPath(c.cfg.Binary); err == nil {
		present = true
	}

	needVersion := !present || c.cfg.MinVersion != ""
	if !needVersion {
		return true, "", ""
	}

	raw, err := c.cli.Version(ctx)
	if err != nil {
		// Presence without a working `version` subcommand still counts;
		// the floor simply cannot be evaluated.
		return present, "", ""
	}

	version, ok := skillcli.ExtractVersion(raw)
	if !ok {
		return true, "", ""
	}
	if c.cfg.MinVersion != "" && semver.Compare(version, c.cfg.MinVersion) < 0 {
		hint := fmt.Sprintf("SkillGate CLI %s is below the supported minimum %s; upgrade and re-check.",
			version, c.cfg.MinVersion)
		return false, version, hint
	}
	return true, version, ""
}

func (c *Checker) probeAuthenticated(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, authProbeTimeout)
	defer cancel()

	if err := c.cli.AuthStatus(ctx); err != nil {
		c.log.Debug().Err(err).Msg("auth probe negative")
		return false
	}
	return true
}

func (c *Checker) probeSidecar(ctx context.Context) bool {
	if err := c.sidecar.Health(ctx); err != nil {
		c.log.Debug().Err(err).Msg("sidecar probe negative")
		return false
	}
	return true
}
