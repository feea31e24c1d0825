package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"

	"github.com/skillgate/ide-core/internal/diag"
	"github.com/skillgate/ide-core/internal/engine"
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Scan policy, instruction, hook, and memory files for findings",
	Long: `Run a one-shot scan over the given paths, or over every SkillGate-relevant
file in the workspace when no paths are given.

Each file is classified by its role (policy, instruction, hook, memory) and
run through the matching detectors. Findings are printed grouped by document.
The scan is fully offline: no CLI or sidecar is contacted.

Exit codes:
  0 - Scan completed (no errors, or --ci not set)
  1 - --ci was set and at least one error-severity finding was reported
  2 - Operational failure (unreadable path, workspace walk error)`,
	Run: func(cmd *cobra.Command, args []string) {
		output, _ := cmd.Flags().GetString("output")
		ci, _ := cmd.Flags().GetBool("ci")
		workers, _ := cmd.Flags().GetInt("concurrency")
		if workers < 1 {
			workers = runtime.NumCPU()
		}

		paths := args
		if len(paths) == 0 {
			var err error
			paths, err = engine.WorkspaceFiles(workspace)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(2)
			}
		} else {
			for i, p := range paths {
				abs, err := filepath.Abs(p)
				if err == nil {
					paths[i] = abs
				}
				if _, err := os.Stat(paths[i]); err != nil {
					fmt.Fprintf(os.Stderr, "Error: cannot read %s: %v\n", p, err)
					os.Exit(2)
				}
			}
		}

		store := diag.NewStore()
		eng := engine.New(store, engine.Options{
			Baseline: engine.NewGitBaseline(workspace),
			Logger:   logger,
		})
		defer eng.Close()

		ctx := context.Background()
		sem := semaphore.NewWeighted(int64(workers))
		var wg sync.WaitGroup
		for _, path := range paths {
			if err := sem.Acquire(ctx, 1); err != nil {
				break
			}
			wg.Add(1)
			go func(path string) {
				defer wg.Done()
				defer sem.Release(1)
				eng.Analyze(ctx, path)
			}(path)
		}
		wg.Wait()

		docs := store.Documents()

		if output == "json" {
			if err := renderCheckJSON(store, docs); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(2)
			}
		} else {
			renderCheckText(store, docs, len(paths))
		}

		if ci {
			for _, doc := range docs {
				if diag.HasErrors(store.Get(doc)) {
					os.Exit(1)
				}
			}
		}
	},
}

func renderCheckJSON(store *diag.Store, docs []string) error {
	type docReport struct {
		Document string         `json:"document"`
		Findings []diag.Finding `json:"findings"`
	}
	reports := make([]docReport, 0, len(docs))
	for _, doc := range docs {
		findings := store.Get(doc)
		if len(findings) == 0 {
			continue
		}
		reports = append(reports, docReport{Document: doc, Findings: findings})
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func renderCheckText(store *diag.Store, docs []string, scanned int) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	totals := make(map[diag.Severity]int)
	flagged := 0
	for _, doc := range docs {
		findings := store.Get(doc)
		if len(findings) == 0 {
			continue
		}
		flagged++
		fmt.Printf("%s %s\n", cyan("→"), doc)
		for _, f := range findings {
			mark := cyan("•")
			switch f.Severity {
			case diag.SeverityError:
				mark = red("✗")
			case diag.SeverityWarning:
				mark = yellow("⚠")
			}
			fmt.Printf("  %s line %d: %s [%s]\n", mark, f.Line, f.Message, f.Source)
			totals[f.Severity]++
		}
		fmt.Println()
	}

	fmt.Printf("%s\n", strings.Repeat("─", 60))
	if flagged == 0 {
		fmt.Printf("%s %d files scanned, no findings.\n", green("✓"), scanned)
		return
	}
	fmt.Printf("%d files scanned, %d with findings: %s, %s, %s\n",
		scanned, flagged,
		red(fmt.Sprintf("%d errors", totals[diag.SeverityError])),
		yellow(fmt.Sprintf("%d warnings", totals[diag.SeverityWarning])),
		cyan(fmt.Sprintf("%d info", totals[diag.SeverityInfo])))
}

func init() {
	checkCmd.Flags().String("output", "text", "Output format: text or json")
	checkCmd.Flags().Bool("ci", false, "Exit 1 when any error-severity finding is reported")
	checkCmd.Flags().Int("concurrency", 0, "Files analyzed in parallel (default: number of CPUs)")
	rootCmd.AddCommand(checkCmd)
}
