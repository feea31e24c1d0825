// Package skillcli invokes the SkillGate command-line binary. Every call
// runs with the workspace root as working directory, a hard timeout, and a
// bounded output buffer; stdout is parsed as JSON where the subcommand
// produces structured output.
package skillcli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

const (
	// DefaultBinary is the CLI name resolved via PATH when no explicit
	// binary path is configured.
	DefaultBinary = "skillgate"

	// DefaultTimeout bounds generic JSON commands.
	DefaultTimeout = 5 * time.Second

	// versionTimeout bounds the version subcommand, which is also used as
	// an installation probe and must fail fast.
	versionTimeout = 2 * time.Second

	// authTimeout bounds `auth status`, which may touch the keychain.
	authTimeout = 5 * time.Second

	// maxOutputBytes caps captured process output per stream so a
	// misbehaving CLI cannot exhaust memory.
	maxOutputBytes = 1 << 20
)

// Overridable for tests.
var execCommand = exec.CommandContext

// Runner executes SkillGate CLI subcommands.
type Runner struct {
	// Binary is the CLI path or name; name-only values resolve via PATH.
	Binary string
	// Workspace is the working directory for every invocation.
	Workspace string
	// Timeout bounds RunJSON calls. Zero means DefaultTimeout.
	Timeout time.Duration
}

// New creates a runner for the given binary and workspace root.
func New(binary, workspace string) *Runner {
	if binary == "" {
		binary = DefaultBinary
	}
	return &Runner{Binary: binary, Workspace: workspace, Timeout: DefaultTimeout}
}

// Version runs `<cli> version` and returns the trimmed stdout.
func (r *Runner) Version(ctx context.Context) (string, error) {
	stdout, _, err := r.run(ctx, versionTimeout, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(stdout)), nil
}

// AuthStatus runs `<cli> auth status`. A nil error means the session is
// authenticated; any non-zero exit reports as an error.
func (r *Runner) AuthStatus(ctx context.Context) error {
	_, _, err := r.run(ctx, authTimeout, "auth", "status")
	return err
}

// RunJSON executes the binary with the given args and unmarshals stdout
// into out. It fails on non-zero exit and on invalid JSON; callers own
// recovery, typically by surfacing the error next to a retry action.
func (r *Runner) RunJSON(ctx context.Context, out any, args ...string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	stdout, _, err := r.run(ctx, timeout, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(stdout, out); err != nil {
		return fmt.Errorf("skillgate %s returned invalid JSON: %w", strings.Join(args, " "), err)
	}
	return nil
}

// run executes one CLI invocation with bounded output capture.
func (r *Runner) run(ctx context.Context, timeout time.Duration, args ...string) ([]byte, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := execCommand(ctx, r.Binary, args...)
	cmd.Dir = r.Workspace

	stdout := &boundedBuffer{max: maxOutputBytes}
	stderr := &boundedBuffer{max: maxOutputBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = strings.TrimSpace(stdout.String())
		}
		if detail != "" {
			return nil, nil, fmt.Errorf("skillgate %s failed: %w (output: %s)", strings.Join(args, " "), err, detail)
		}
		return nil, nil, fmt.Errorf("skillgate %s failed: %w", strings.Join(args, " "), err)
	}
	return stdout.Bytes(), stderr.Bytes(), nil
}

// boundedBuffer accepts writes until max bytes are held, then silently
// discards the rest while still reporting full writes to the process pipe.
type boundedBuffer struct {
	buf       bytes.Buffer
	max       int
	truncated bool
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remain := b.max - b.buf.Len()
	if remain <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remain {
		b.buf.Write(p[:remain])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *boundedBuffer) Bytes() []byte  { return b.buf.Bytes() }
func (b *boundedBuffer) String() string { return b.buf.String() }

// semverPattern pulls the first version-looking token out of CLI version
// output, whatever banner text surrounds it.
var semverPattern = regexp.MustCompile(`v?(\d+\.\d+\.\d+(?:[-+][0-9A-Za-z.-]+)?)`)

// ExtractVersion canonicalizes CLI version output to a "vMAJOR.MINOR.PATCH"
// string suitable for semver comparison. ok is false when no version token
// is present.
func ExtractVersion(output string) (string, bool) {
	m := semverPattern.FindStringSubmatch(output)
	if m == nil {
		return "", false
	}
	return "v" + m[1], true
}
