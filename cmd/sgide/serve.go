package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skillgate/ide-core/internal/diag"
	"github.com/skillgate/ide-core/internal/engine"
	"github.com/skillgate/ide-core/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the workspace and stream diagnostics as JSON lines",
	Long: `Watch the workspace for file changes and stream diagnostic publications on
stdout, one JSON object per line. This is the long-running mode an editor
host attaches to.

Policy and instruction edits are debounced; hook and memory edits are
analyzed immediately. Deleting a file retracts its diagnostics. All log
output goes to stderr so stdout stays a clean data channel.

Exit codes:
  0 - Shut down cleanly on SIGINT/SIGTERM
  1 - Failed to start (bad configuration, watcher error)`,
	Run: func(cmd *cobra.Command, args []string) {
		noScan, _ := cmd.Flags().GetBool("no-initial-scan")

		cfg := mustConfig()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var metrics *engine.Metrics
		if cfg.MetricsAddr != "" {
			metrics = engine.NewMetrics(nil)
			startMetricsServer(ctx, cfg.MetricsAddr)
		}

		store := diag.NewStore(diag.NewStreamSink(os.Stdout))
		eng := engine.New(store, engine.Options{
			Baseline: engine.NewGitBaseline(workspace),
			Windows:  cfg.DebounceWindows(),
			Metrics:  metrics,
			Logger:   logging.Component(logger, "engine"),
		})
		defer eng.Close()

		watcher, err := engine.NewWatcher(eng, workspace, logging.Component(logger, "watcher"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		watcher.Start()
		defer watcher.Stop()

		if !noScan {
			go func() {
				files, err := engine.WorkspaceFiles(workspace)
				if err != nil {
					logger.Warn().Err(err).Msg("Initial workspace scan failed")
					return
				}
				for _, f := range files {
					eng.Analyze(ctx, f)
				}
				logger.Info().Int("files", len(files)).Msg("Initial scan complete")
			}()
		}

		logger.Info().Str("workspace", workspace).Msg("Watching for changes")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		logger.Info().Msg("Shutting down")
	},
}

func init() {
	serveCmd.Flags().Bool("no-initial-scan", false, "Skip the startup scan of existing workspace files")
	rootCmd.AddCommand(serveCmd)
}
