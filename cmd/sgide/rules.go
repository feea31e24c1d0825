package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/detect"
	"github.com/skillgate/ide-core/internal/diag"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the built-in risk hint rules",
	Long: `List the editor-side risk hint rules with their IDs, severities, and
remediation guidance. These are the hints the hook analysis and the
cross-cutting risk sweep attach to findings; the full scan rule set lives
in the SkillGate CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		red := color.New(color.FgRed).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		cyan := color.New(color.FgCyan).SprintFunc()

		for _, rule := range detect.RiskRules() {
			sev := yellow(string(rule.Severity))
			if rule.Severity == diag.SeverityError {
				sev = red(string(rule.Severity))
			}
			fmt.Printf("%s %s (%s)\n", cyan("→"), rule.ID, sev)
			fmt.Printf("  %s\n", rule.Message)
			fmt.Printf("  Remediation: %s\n\n", rule.Remediation)
		}
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
