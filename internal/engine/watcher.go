package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/skillgate/ide-core/internal/classify"
)

// skipDirs are never watched or walked.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"__pycache__":  true,
}

// Watcher feeds workspace file events into the engine.
//
// fsnotify watches are not recursive, so every directory under the root is
// added individually and directories created later are added as they
// appear. Raw filesystem events cannot tell an editor save apart from any
// other write, so every write takes the debounced change path; hosts that
// know about saves call Engine.HandleSave themselves.
type Watcher struct {
	engine *Engine
	fs     *fsnotify.Watcher
	root   string
	log    zerolog.Logger
	stopCh chan struct{}
}

// NewWatcher builds a watcher over the workspace root. The initial
// directory walk happens here; Start begins dispatching.
func NewWatcher(engine *Engine, root string, log zerolog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create workspace watcher: %w", err)
	}
	w := &Watcher{
		engine: engine,
		fs:     fs,
		root:   root,
		log:    log,
		stopCh: make(chan struct{}),
	}
	if err := w.addTree(root); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", root, err)
	}
	return w, nil
}

// Start begins dispatching events until Stop is called.
func (w *Watcher) Start() {
	go w.handleEvents(w.fs.Events, w.fs.Errors)
	w.log.Info().Str("root", w.root).Msg("watching workspace")
}

// Stop ends event dispatch and releases the underlying watches.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
		// Already stopped.
	default:
		close(w.stopCh)
	}
	w.fs.Close()
}

// addTree registers root and every directory below it, minus the skip list.
// Unreadable subtrees are skipped rather than failing the walk.
func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			w.log.Debug().Err(walkErr).Str("path", path).Msg("walk entry skipped")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.log.Warn().Err(err).Str("dir", path).Msg("watch add failed")
		}
		return nil
	})
}

func (w *Watcher) handleEvents(events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			w.dispatch(event)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("workspace watcher error")
		case <-w.stopCh:
			return
		}
	}
}

// WorkspaceFiles lists the files under root that classify into at least one
// type-specific analysis bundle (policy, instruction, hook, or memory),
// honoring the watcher's directory skip list. Files that would only receive
// the generic risk sweep are left to explicit single-file requests.
func WorkspaceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if c := classify.Classify(path); len(c.Kinds) > 1 {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

func (w *Watcher) dispatch(event fsnotify.Event) {
	w.engine.metrics.RecordWatchEvent(event.Op.String())

	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if skipDirs[filepath.Base(event.Name)] {
				return
			}
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("watch new directory failed")
			}
			return
		}
		w.engine.HandleChange(event.Name)
	case event.Op.Has(fsnotify.Write):
		w.engine.HandleChange(event.Name)
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.engine.Drop(event.Name)
	}
}
