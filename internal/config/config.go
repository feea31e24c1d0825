// Package config loads engine settings from the workspace config file and
// SKILLGATE_IDE_* environment overrides, with working defaults when neither
// is present.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillgate/ide-core/internal/classify"
	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

// DefaultRelPath is where a workspace keeps its engine config.
const DefaultRelPath = ".skillgate/ide.yml"

// Config is the externally supplied engine configuration.
type Config struct {
	// Binary is the SkillGate CLI path or name.
	Binary string `yaml:"binary"`

	// SidecarURL is the local decision service base URL.
	SidecarURL string `yaml:"sidecar_url"`

	// MinCLIVersion is the semver floor for the installed probe.
	MinCLIVersion string `yaml:"min_cli_version"`

	// PolicyDebounceMs is the quiet period for policy-file edits.
	PolicyDebounceMs int `yaml:"policy_debounce_ms"`

	// InstructionDebounceMs is the quiet period for instruction-file edits.
	InstructionDebounceMs int `yaml:"instruction_debounce_ms"`

	// AuditPath overrides the audit ledger location. Empty means
	// .skillgate/audit.db under the workspace.
	AuditPath string `yaml:"audit_path"`

	// AuditRetentionDays is how long pruned ledger entries are kept.
	AuditRetentionDays int `yaml:"audit_retention_days"`

	// MetricsAddr enables the Prometheus listener in serve mode when set
	// (e.g. "127.0.0.1:9912"). Empty disables it.
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the working defaults.
func Default() Config {
	return Config{
		Binary:                skillcli.DefaultBinary,
		SidecarURL:            sidecar.DefaultBaseURL,
		MinCLIVersion:         readiness.DefaultMinCLIVersion,
		PolicyDebounceMs:      500,
		InstructionDebounceMs: 800,
		AuditRetentionDays:    90,
	}
}

// Load reads one YAML config file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve produces the effective config for a workspace: an explicit
// --config path wins, otherwise the workspace's .skillgate/ide.yml is used
// when present, otherwise defaults. Environment overrides apply last.
func Resolve(workspace, explicit string) (Config, error) {
	var (
		cfg Config
		err error
	)
	switch {
	case explicit != "":
		cfg, err = Load(explicit)
	default:
		wsPath := filepath.Join(workspace, filepath.FromSlash(DefaultRelPath))
		if _, statErr := os.Stat(wsPath); statErr == nil {
			cfg, err = Load(wsPath)
		} else {
			cfg = Default()
		}
	}
	if err != nil {
		return Config{}, err
	}
	return cfg.applyEnv()
}

// applyEnv layers SKILLGATE_IDE_* variables over cfg.
func (c Config) applyEnv() (Config, error) {
	if v := os.Getenv("SKILLGATE_IDE_BINARY"); v != "" {
		c.Binary = v
	}
	if v := os.Getenv("SKILLGATE_IDE_SIDECAR_URL"); v != "" {
		c.SidecarURL = v
	}
	if v := os.Getenv("SKILLGATE_IDE_MIN_CLI_VERSION"); v != "" {
		c.MinCLIVersion = v
	}
	if v := os.Getenv("SKILLGATE_IDE_POLICY_DEBOUNCE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SKILLGATE_IDE_POLICY_DEBOUNCE_MS: %w", err)
		}
		c.PolicyDebounceMs = ms
	}
	if v := os.Getenv("SKILLGATE_IDE_INSTRUCTION_DEBOUNCE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SKILLGATE_IDE_INSTRUCTION_DEBOUNCE_MS: %w", err)
		}
		c.InstructionDebounceMs = ms
	}
	if v := os.Getenv("SKILLGATE_IDE_AUDIT_PATH"); v != "" {
		c.AuditPath = v
	}
	if v := os.Getenv("SKILLGATE_IDE_AUDIT_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SKILLGATE_IDE_AUDIT_RETENTION_DAYS: %w", err)
		}
		c.AuditRetentionDays = days
	}
	if v := os.Getenv("SKILLGATE_IDE_METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) validate() error {
	if c.PolicyDebounceMs < 0 {
		return fmt.Errorf("policy_debounce_ms must be >= 0 (got %d)", c.PolicyDebounceMs)
	}
	if c.InstructionDebounceMs < 0 {
		return fmt.Errorf("instruction_debounce_ms must be >= 0 (got %d)", c.InstructionDebounceMs)
	}
	if c.AuditRetentionDays < 1 {
		return fmt.Errorf("audit_retention_days must be >= 1 (got %d)", c.AuditRetentionDays)
	}
	return nil
}

// DebounceWindows maps the configured intervals onto scheduler channels.
func (c Config) DebounceWindows() map[classify.Channel]time.Duration {
	return map[classify.Channel]time.Duration{
		classify.ChannelPolicy:      time.Duration(c.PolicyDebounceMs) * time.Millisecond,
		classify.ChannelInstruction: time.Duration(c.InstructionDebounceMs) * time.Millisecond,
	}
}

// AuditDBPath resolves the ledger location for a workspace.
func (c Config) AuditDBPath(workspace string) string {
	if c.AuditPath != "" {
		return c.AuditPath
	}
	return filepath.Join(workspace, ".skillgate", "audit.db")
}
