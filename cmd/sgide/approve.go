package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/audit"
	"github.com/skillgate/ide-core/internal/config"
	"github.com/skillgate/ide-core/internal/engine"
	"github.com/skillgate/ide-core/internal/readiness"
	"github.com/skillgate/ide-core/internal/sidecar"
	"github.com/skillgate/ide-core/internal/skillcli"
)

var approveCmd = &cobra.Command{
	Use:   "approve",
	Short: "Approve flagged lines and hooks, or file approval requests",
	Long: `Forward approval actions to the SkillGate CLI.

Every approve subcommand requires a ready runtime: CLI installed, session
authenticated, sidecar answering. Run 'sgide doctor' when an action is
refused.`,
}

var approveLineCmd = &cobra.Command{
	Use:   "line <file:line>",
	Short: "Approve one flagged line",
	Long: `Approve a single flagged line so future scans stop reporting it.

The argument is the document path and 1-based line number joined by a
colon, e.g. skillgate.yml:12.

Exit codes:
  0 - Approval recorded
  1 - Runtime not ready or CLI invocation failed
  2 - Bad arguments or configuration error`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		file, line, err := splitLineRef(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}

		actions, cfg, cleanup := newActions()
		defer cleanup()

		if err := actions.ApproveLine(context.Background(), file, line); err != nil {
			exitAction(cfg, err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approved %s:%d\n", green("✓"), file, line)
	},
}

var approveHookCmd = &cobra.Command{
	Use:   "hook <file>",
	Short: "Approve a hook file for execution",
	Long: `Approve a hook script so the agent runtime may execute it.

Exit codes:
  0 - Approval recorded
  1 - Runtime not ready or CLI invocation failed
  2 - Configuration error`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		actions, cfg, cleanup := newActions()
		defer cleanup()

		if err := actions.ApproveHook(context.Background(), args[0]); err != nil {
			exitAction(cfg, err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approved hook %s\n", green("✓"), args[0])
	},
}

var approveRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "File a pending approval request for a blocked decision",
	Long: `File a pending approval artifact for a decision the policy blocked.

The decision code comes from the blocking decision. When no invocation ID
is given one is generated, so the ticket can still be correlated with later
decision calls.

Exit codes:
  0 - Request filed, ticket printed
  1 - Runtime not ready or CLI invocation failed
  2 - Bad arguments or configuration error`,
	Run: func(cmd *cobra.Command, args []string) {
		code, _ := cmd.Flags().GetString("decision-code")
		invocation, _ := cmd.Flags().GetString("invocation-id")
		reasons, _ := cmd.Flags().GetStringArray("reason")
		if code == "" {
			fmt.Fprintf(os.Stderr, "Error: --decision-code is required\n")
			os.Exit(2)
		}

		actions, cfg, cleanup := newActions()
		defer cleanup()

		ticket, err := actions.RequestApproval(context.Background(), skillcli.ApprovalRequest{
			DecisionCode: code,
			InvocationID: invocation,
			Reasons:      reasons,
		})
		if err != nil {
			exitAction(cfg, err)
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Approval %s filed (%s)\n", green("✓"), ticket.ApprovalID, ticket.Status)
		if ticket.Path != "" {
			fmt.Printf("  Artifact: %s\n", ticket.Path)
		}
	},
}

// newActions builds the runtime action stack from config. The returned
// cleanup closes the audit ledger.
func newActions() (*engine.Actions, config.Config, func()) {
	cfg := mustConfig()

	runner := skillcli.New(cfg.Binary, workspace)
	client := sidecar.New(cfg.SidecarURL)
	checker := readiness.NewChecker(readiness.Config{
		Binary:     cfg.Binary,
		MinVersion: cfg.MinCLIVersion,
	}, runner, client, logger)

	var ledger *audit.Ledger
	cleanup := func() {}
	if l, err := audit.Open(cfg.AuditDBPath(workspace)); err == nil {
		ledger = l
		cleanup = func() { l.Close() }
	} else {
		logger.Warn().Err(err).Msg("audit ledger unavailable, actions will not be recorded")
	}

	return engine.NewActions(checker, runner, client, ledger, logger), cfg, cleanup
}

// exitAction renders an action failure. Not-ready refusals get the next
// step; everything else surfaces the raw error.
func exitAction(cfg config.Config, err error) {
	var notReady *engine.NotReadyError
	if errors.As(err, &notReady) {
		red := color.New(color.FgRed).SprintFunc()
		fmt.Fprintf(os.Stderr, "%s Runtime not ready. Next step: %s\n", red("✗"), notReady.State.NextStep)
		if hint := nextStepHint(cfg.Binary, notReady.State); hint != "" {
			fmt.Fprintf(os.Stderr, "  %s\n", hint)
		}
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// splitLineRef parses "path:line" around the last colon so paths containing
// colons survive.
func splitLineRef(ref string) (string, int, error) {
	idx := strings.LastIndex(ref, ":")
	if idx <= 0 || idx == len(ref)-1 {
		return "", 0, fmt.Errorf("expected <file>:<line>, got %q", ref)
	}
	line, err := strconv.Atoi(ref[idx+1:])
	if err != nil || line < 1 {
		return "", 0, fmt.Errorf("invalid line number in %q", ref)
	}
	return ref[:idx], line, nil
}

func init() {
	approveRequestCmd.Flags().String("decision-code", "", "Decision code the approval applies to (required)")
	approveRequestCmd.Flags().String("invocation-id", "", "Invocation to correlate (generated when omitted)")
	approveRequestCmd.Flags().StringArray("reason", nil, "Reason attached to the request (repeatable)")

	approveCmd.AddCommand(approveLineCmd)
	approveCmd.AddCommand(approveHookCmd)
	approveCmd.AddCommand(approveRequestCmd)
	rootCmd.AddCommand(approveCmd)
}
