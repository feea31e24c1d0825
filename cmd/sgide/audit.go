package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent decisions, approvals, and readiness snapshots",
	Long: `List recent entries from the local audit ledger, newest first.

The ledger mirrors what the CLI records in its own log: policy decisions,
approval activity, and readiness snapshots taken by doctor. It is local and
unsigned; the CLI's tamper-evident log remains the authoritative record.

Exit codes:
  0 - Entries listed (possibly none)
  1 - Cannot open or query the ledger
  2 - Bad arguments or configuration error`,
	Run: func(cmd *cobra.Command, args []string) {
		kindFlag, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")
		output, _ := cmd.Flags().GetString("output")

		var kind audit.Kind
		switch kindFlag {
		case "all", "":
			kind = ""
		case "decision":
			kind = audit.KindDecision
		case "approval":
			kind = audit.KindApproval
		case "readiness":
			kind = audit.KindReadiness
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown kind %q (want decision, approval, readiness, or all)\n", kindFlag)
			os.Exit(2)
		}

		cfg := mustConfig()

		ledger, err := audit.Open(cfg.AuditDBPath(workspace))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer ledger.Close()

		entries, err := ledger.Recent(context.Background(), kind, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if output == "json" {
			data, err := json.MarshalIndent(entries, "", "  ")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(data))
			return
		}

		if len(entries) == 0 {
			fmt.Println("No audit entries recorded yet.")
			return
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		magenta := color.New(color.FgMagenta).SprintFunc()
		for _, e := range entries {
			label := fmt.Sprintf("%-9s", e.Kind)
			switch e.Kind {
			case audit.KindDecision:
				label = cyan(label)
			case audit.KindApproval:
				label = yellow(label)
			case audit.KindReadiness:
				label = magenta(label)
			}
			fmt.Printf("%s  %s  %s\n", e.RecordedAt.Format("2006-01-02 15:04:05"), label, e.Summary)
		}
	},
}

func init() {
	auditCmd.Flags().String("kind", "all", "Filter by entry kind: decision, approval, readiness, or all")
	auditCmd.Flags().Int("limit", 20, "Maximum entries to show")
	auditCmd.Flags().String("output", "text", "Output format: text or json")
	rootCmd.AddCommand(auditCmd)
}
