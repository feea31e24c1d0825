package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/audit"
	"github.com/skillgate/ide-core/internal/config"
	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check SkillGate CLI, authentication, and sidecar health",
	Long: `Run the readiness preflight and report each probe's result.

This command checks for:
- SkillGate CLI installation and minimum version
- Authenticated CLI session
- Local sidecar availability
- License entitlements (when everything above passes)

Probes run in strict order; a failed probe skips the ones behind it and the
summary names the single next step to take. Static diagnostics (check,
serve) work regardless of the outcome.

Exit codes:
  0 - Everything ready
  1 - One or more probes failed (next step printed)
  2 - Configuration error`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")

		cfg, err := config.Resolve(workspace, configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		fmt.Printf("Running SkillGate readiness checks...\n\n")

		runner := skillcli.New(cfg.Binary, workspace)
		client := sidecar.New(cfg.SidecarURL)
		checker := readiness.NewChecker(readiness.Config{
			Binary:     cfg.Binary,
			MinVersion: cfg.MinCLIVersion,
		}, runner, client, logger)

		ctx := context.Background()
		state := checker.Check(ctx)

		// Check 1: CLI installed and at an acceptable version
		fmt.Printf("%s SkillGate CLI\n", cyan("→"))
		if state.CLIInstalled {
			if state.CLIVersion != "" {
				fmt.Printf("  %s Installed (%s)\n", green("✓"), state.CLIVersion)
			} else {
				fmt.Printf("  %s Installed\n", green("✓"))
			}
		} else {
			fmt.Printf("  %s Not found (looked for %q)\n", red("✗"), cfg.Binary)
			if verbose {
				fmt.Printf("    %s\n", state.CLIInstallHint)
			}
		}

		// Check 2: Authenticated session
		fmt.Printf("%s Authentication\n", cyan("→"))
		switch {
		case !state.CLIInstalled:
			fmt.Printf("  %s Skipped (CLI not installed)\n", yellow("⚠"))
		case state.Authenticated:
			fmt.Printf("  %s Session authenticated\n", green("✓"))
		default:
			fmt.Printf("  %s Not logged in\n", red("✗"))
		}

		// Check 3: Sidecar health
		fmt.Printf("%s Sidecar\n", cyan("→"))
		switch {
		case !state.Authenticated:
			fmt.Printf("  %s Skipped (not authenticated)\n", yellow("⚠"))
		case state.SidecarRunning:
			fmt.Printf("  %s Responding at %s\n", green("✓"), client.BaseURL())
		default:
			fmt.Printf("  %s Not responding at %s\n", red("✗"), client.BaseURL())
		}

		// Check 4: Entitlements, only meaningful once everything else holds
		if state.Ready() {
			fmt.Printf("%s Entitlements\n", cyan("→"))
			ent, err := client.Entitlements(ctx)
			var degraded *sidecar.DegradedError
			switch {
			case err == nil:
				fmt.Printf("  %s Tier: %s (license mode: %s)\n", green("✓"), ent.Tier, ent.LicenseMode)
			case errors.Is(err, sidecar.ErrNeedsLogin):
				fmt.Printf("  %s Session expired mid-check, log in again\n", yellow("⚠"))
			case errors.As(err, &degraded):
				fmt.Printf("  %s Sidecar degraded (status %d)\n", yellow("⚠"), degraded.StatusCode)
			default:
				fmt.Printf("  %s Cannot read entitlements: %v\n", yellow("⚠"), err)
			}
		}

		// Best effort: keep a trace of what doctor saw.
		if ledger, err := audit.Open(cfg.AuditDBPath(workspace)); err == nil {
			if err := ledger.RecordReadiness(ctx, state); err != nil {
				logger.Warn().Err(err).Msg("failed to record readiness snapshot")
			}
			ledger.Close()
		}

		// Summary
		fmt.Printf("\n%s\n", strings.Repeat("─", 60))
		if state.Ready() {
			fmt.Printf("%s All checks passed! SkillGate runtime features are available.\n", green("✓"))
			os.Exit(0)
		}

		fmt.Printf("%s Not ready. Next step: %s\n", red("✗"), state.NextStep)
		if hint := nextStepHint(cfg.Binary, state); hint != "" {
			fmt.Printf("  %s\n", hint)
		}
		os.Exit(1)
	},
}

// nextStepHint renders the one action that advances readiness.
func nextStepHint(binary string, state readiness.State) string {
	switch state.NextStep {
	case readiness.StepInstallCLI:
		return state.CLIInstallHint
	case readiness.StepLogin:
		return fmt.Sprintf("Run: %s auth login", binary)
	case readiness.StepStartSidecar:
		return fmt.Sprintf("Run: %s sidecar start", binary)
	default:
		return ""
	}
}

func init() {
	doctorCmd.Flags().BoolP("verbose", "v", false, "Show detailed diagnostic information")
	rootCmd.AddCommand(doctorCmd)
}
