package engine

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// baselineTimeout bounds one git invocation.
const baselineTimeout = 2 * time.Second

// BaselineReader retrieves the last committed revision of a document. ok is
// false when no baseline exists, which is not an error: new files and
// uncommitted workspaces simply have nothing to diff against.
type BaselineReader interface {
	Baseline(ctx context.Context, path string) (text string, ok bool, err error)
}

// GitBaseline reads baselines from the workspace's git HEAD.
type GitBaseline struct {
	workspace string
}

// NewGitBaseline returns a reader rooted at the workspace directory.
func NewGitBaseline(workspace string) *GitBaseline {
	return &GitBaseline{workspace: workspace}
}

// Baseline runs git show against HEAD. Paths outside the workspace, files
// without a committed revision, repositories without commits, and plain
// non-repositories all report ok=false with a nil error; only failures to
// run git at all surface as errors.
func (g *GitBaseline) Baseline(ctx context.Context, path string) (string, bool, error) {
	target := path
	if filepath.IsAbs(path) {
		rel, err := filepath.Rel(g.workspace, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			return "", false, nil
		}
		target = rel
	}

	ctx, cancel := context.WithTimeout(ctx, baselineTimeout)
	defer cancel()

	// The ./ prefix makes the path cwd-relative, so this works when the
	// workspace is a subdirectory of the repository.
	cmd := exec.CommandContext(ctx, "git", "show", "HEAD:./"+filepath.ToSlash(target))
	cmd.Dir = g.workspace

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("git show failed: %w", err)
	}
	return string(output), true, nil
}
