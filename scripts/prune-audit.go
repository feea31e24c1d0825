// scripts/prune-audit.go - Manual audit ledger retention tool
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/skillgate/ide-core/internal/audit"
	"github.com/skillgate/ide-core/internal/config"
)

func main() {
	ctx := context.Background()

	// The workspace is the current directory; the ledger path and the
	// retention window come from the resolved config (ide.yml plus
	// SKILLGATE_IDE_* overrides).
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving working directory: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Resolve(cwd, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving config: %v\n", err)
		os.Exit(1)
	}
	dbPath := cfg.AuditDBPath(cwd)

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no audit ledger at %s\n", dbPath)
		os.Exit(1)
	}

	fmt.Printf("Opening audit ledger: %s\n", dbPath)

	ledger, err := audit.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger: %v\n", err)
		os.Exit(1)
	}
	defer ledger.Close()

	fmt.Printf("Pruning entries older than %d days...\n", cfg.AuditRetentionDays)

	removed, err := ledger.Prune(ctx, time.Duration(cfg.AuditRetentionDays)*24*time.Hour)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error during prune: %v\n", err)
		os.Exit(1)
	}

	if removed > 0 {
		fmt.Printf("✓ Removed %d audit entry(ies) outside the retention window\n", removed)
	} else {
		fmt.Println("✓ No entries outside the retention window")
	}
}
