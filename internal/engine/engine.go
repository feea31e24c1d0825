// Package engine wires the analysis pipeline together: editor events go
// through the classifier into the debounced scheduler, due documents run
// their detector bundles, and results land in the diagnostics store as full
// replacements. It also hosts the readiness-gated runtime actions.
//
// Nothing in here talks to a host editor directly. Events come in through
// HandleChange/HandleSave (or the fsnotify Watcher), diagnostics go out
// through whatever sinks the store was built with.
package engine

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillgate/ide-core/internal/classify"
	"github.com/skillgate/ide-core/internal/detect"
	"github.com/skillgate/ide-core/internal/diag"
	"github.com/skillgate/ide-core/internal/schedule"
)

// maxDocumentBytes bounds what a single analysis pass will scan.
const maxDocumentBytes = 4 << 20

// DocumentReader supplies document text for analysis. The default reader
// loads from the filesystem; hosts that hold unsaved buffers supply their
// own.
type DocumentReader interface {
	ReadDocument(path string) (string, error)
}

type osReader struct{}

func (osReader) ReadDocument(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Options configures an Engine. The zero value works: documents come from
// the filesystem, capability diffs are skipped for want of a baseline,
// debounce windows take their defaults, and metrics and logging are off.
type Options struct {
	Reader   DocumentReader
	Baseline BaselineReader
	Windows  map[classify.Channel]time.Duration
	Metrics  *Metrics
	Logger   zerolog.Logger
}

// Engine runs analysis passes and owns the per-channel edit scheduler.
type Engine struct {
	store    *diag.Store
	docs     DocumentReader
	baseline BaselineReader
	metrics  *Metrics
	log      zerolog.Logger
	sched    *schedule.Scheduler
}

// New builds an Engine publishing into store.
func New(store *diag.Store, opts Options) *Engine {
	e := &Engine{
		store:    store,
		docs:     opts.Reader,
		baseline: opts.Baseline,
		metrics:  opts.Metrics,
		log:      opts.Logger,
	}
	if e.docs == nil {
		e.docs = osReader{}
	}
	windows := opts.Windows
	if windows == nil {
		windows = schedule.DefaultWindows()
	}
	e.sched = schedule.New(func(doc string) {
		e.Analyze(context.Background(), doc)
	}, windows)
	return e
}

// HandleChange records an edit event. Policy and instruction edits coalesce
// on their debounce channels; hook, memory, and unclassified documents are
// analyzed before the call returns.
func (e *Engine) HandleChange(path string) {
	c := classify.Classify(path)
	e.sched.Edit(c.Channel, path)
}

// HandleSave analyzes path immediately. An explicit save is a direct call
// path, independent of whatever edit is still pending on the document's
// channel.
func (e *Engine) HandleSave(path string) {
	e.sched.RunNow(path)
}

// Drop discards a document's diagnostics, for deletes and renames.
func (e *Engine) Drop(path string) {
	e.store.Drop(classify.Normalize(path))
}

// Close stops the scheduler. Pending debounced edits are discarded; an
// analysis already started runs to completion.
func (e *Engine) Close() {
	e.sched.Stop()
}

// Analyze runs every detector the classifier assigns to path and publishes
// the outcome as the document's full replacement diagnostic set. The
// returned slice is what was published.
//
// A document that no longer exists has its diagnostics dropped. Any other
// read failure leaves the previous pass's diagnostics in place.
func (e *Engine) Analyze(ctx context.Context, path string) []diag.Finding {
	c := classify.Classify(path)

	text, err := e.docs.ReadDocument(path)
	if err != nil {
		if os.IsNotExist(err) {
			e.store.Drop(c.Path)
			e.log.Debug().Str("doc", c.Path).Msg("document gone, diagnostics dropped")
			return nil
		}
		e.log.Warn().Err(err).Str("doc", c.Path).Msg("document read failed")
		return nil
	}
	if len(text) > maxDocumentBytes {
		e.log.Warn().Str("doc", c.Path).Int("bytes", len(text)).Msg("document over analysis size cap, skipped")
		return nil
	}

	findings := e.runDetectors(ctx, path, c, text)
	e.store.Publish(c.Path, findings)
	e.metrics.RecordAnalysis(c.Channel, findings)
	e.log.Debug().
		Str("doc", c.Path).
		Str("channel", string(c.Channel)).
		Int("findings", len(findings)).
		Msg("analysis pass published")
	return findings
}

// runDetectors executes the plan's bundles in their fixed union order. Hook
// findings and the unconditional risk sweep may legitimately repeat each
// other on hook files; nothing here deduplicates.
func (e *Engine) runDetectors(ctx context.Context, path string, c classify.Classification, text string) []diag.Finding {
	var findings []diag.Finding
	for _, kind := range c.Kinds {
		switch kind {
		case classify.KindPolicy:
			findings = append(findings, detect.LintPolicy(text)...)
			findings = append(findings, e.capabilityFindings(ctx, path, text)...)
		case classify.KindInstruction:
			for _, w := range detect.ScanInstructions(text) {
				findings = append(findings, w.Finding())
			}
		case classify.KindHook, classify.KindRiskSweep:
			for _, h := range detect.ScanRiskHints(text) {
				findings = append(findings, h.Finding())
			}
		case classify.KindMemory:
			findings = append(findings, detect.ScanMemory(text)...)
		}
	}
	return findings
}

// capabilityFindings diffs a policy document against its last committed
// revision. No retrievable baseline means no diff; the rest of the pass
// proceeds either way.
func (e *Engine) capabilityFindings(ctx context.Context, path, text string) []diag.Finding {
	if e.baseline == nil {
		return nil
	}
	base, ok, err := e.baseline.Baseline(ctx, path)
	if err != nil {
		e.log.Debug().Err(err).Str("doc", path).Msg("baseline lookup failed, capability diff skipped")
		return nil
	}
	if !ok {
		return nil
	}
	var findings []diag.Finding
	for _, change := range detect.DiffCapabilities(base, text) {
		findings = append(findings, change.Finding())
	}
	return findings
}
