package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/config"
	"github.com/skillgate/ide-core/internal/logging"
)

var (
	workspace  string
	configPath string
	logLevel   string
	logFormat  string
	logger     zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sgide",
	Short: "SkillGate IDE engine",
	Long: `sgide is the editor-side SkillGate engine: it scans policy, instruction,
hook, and memory files for risky changes, watches a workspace and streams
diagnostics, and drives the runtime preflight (CLI, auth, sidecar) that
gates approvals and policy decisions.

Diagnostics work entirely offline; only runtime actions (approve, decide)
need the SkillGate CLI and sidecar.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if workspace == "" {
			cwd, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("resolve working directory: %w", err)
			}
			workspace = cwd
		}
		abs, err := filepath.Abs(workspace)
		if err != nil {
			return fmt.Errorf("resolve workspace path: %w", err)
		}
		workspace = abs

		// Best effort: a workspace .env may carry SKILLGATE_IDE_* overrides.
		_ = godotenv.Load(filepath.Join(workspace, ".env"))

		logger = logging.Init(logging.Config{
			Level:     logLevel,
			Format:    logFormat,
			Component: "sgide",
		})
		return nil
	},
}

// mustConfig resolves the effective configuration or exits.
func mustConfig() config.Config {
	cfg, err := config.Resolve(workspace, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: <workspace>/.skillgate/ide.yml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, disabled)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto", "Log format (auto, console, json)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
