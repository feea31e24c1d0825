// Package schedule coalesces rapid edit events into analysis runs.
//
// Debouncing is per channel, not per document: all edits on a channel share
// one timer slot, and a new edit replaces whatever document was waiting in
// it. Within a burst across several documents only the most recently edited
// one is guaranteed a run once the channel goes quiet. That trade-off is
// deliberate; see the pending-slot notes on Edit.
package schedule

import (
	"sync"
	"time"

	"github.com/skillgate/ide-core/internal/classify"
)

const (
	// DefaultPolicyWindow is the quiet period for policy-file edits.
	DefaultPolicyWindow = 500 * time.Millisecond
	// DefaultInstructionWindow is the quiet period for instruction-file edits.
	DefaultInstructionWindow = 800 * time.Millisecond
)

// DefaultWindows returns the stock debounce configuration. Hook and memory
// edits stay undebounced because the immediate channel is absent from it.
func DefaultWindows() map[classify.Channel]time.Duration {
	return map[classify.Channel]time.Duration{
		classify.ChannelPolicy:      DefaultPolicyWindow,
		classify.ChannelInstruction: DefaultInstructionWindow,
	}
}

// pending is one not-yet-fired analysis slot.
type pending struct {
	timer *time.Timer
	doc   string
}

// Scheduler owns one pending slot per debounced channel and runs analyses
// through a single callback. Channels without a configured window run
// synchronously on every edit.
type Scheduler struct {
	mu      sync.Mutex
	run     func(doc string)
	windows map[classify.Channel]time.Duration
	slots   map[classify.Channel]*pending
}

// New creates a scheduler that invokes run for each due document. windows
// maps debounced channels to their quiet periods; channels absent from the
// map (or mapped to zero) are not debounced.
func New(run func(doc string), windows map[classify.Channel]time.Duration) *Scheduler {
	return &Scheduler{
		run:     run,
		windows: windows,
		slots:   make(map[classify.Channel]*pending),
	}
}

// Edit records an edit to doc on the given channel.
//
// On a debounced channel the edit lands in the channel's single pending
// slot, replacing the previous occupant and restarting the quiet-period
// timer. Undebounced channels run synchronously before Edit returns.
// Started analyses are never cancelled: if a slot fires while a replacement
// lands, the stale run completes and whichever analysis resolves last wins
// the diagnostics map.
func (s *Scheduler) Edit(channel classify.Channel, doc string) {
	window := s.windows[channel]
	if window <= 0 {
		s.run(doc)
		return
	}

	s.mu.Lock()
	if old, ok := s.slots[channel]; ok {
		old.timer.Stop()
	}
	slot := &pending{doc: doc}
	slot.timer = time.AfterFunc(window, func() { s.fire(channel, slot) })
	s.slots[channel] = slot
	s.mu.Unlock()
}

// RunNow runs doc immediately on the caller's goroutine. Explicit saves use
// this path; it neither consults nor disturbs any pending slot.
func (s *Scheduler) RunNow(doc string) {
	s.run(doc)
}

// Pending reports the document currently waiting in a channel's slot.
func (s *Scheduler) Pending(channel classify.Channel) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[channel]
	if !ok {
		return "", false
	}
	return slot.doc, true
}

// Stop cancels every pending slot. Edits after Stop still schedule; Stop is
// a quiesce point for shutdown, not a terminal state.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for channel, slot := range s.slots {
		slot.timer.Stop()
		delete(s.slots, channel)
	}
}

// fire consumes a due slot. A slot that was replaced after its timer fired
// is ignored; only the current occupant runs.
func (s *Scheduler) fire(channel classify.Channel, slot *pending) {
	s.mu.Lock()
	current, ok := s.slots[channel]
	if !ok || current != slot {
		s.mu.Unlock()
		return
	}
	delete(s.slots, channel)
	doc := slot.doc
	s.mu.Unlock()

	s.run(doc)
}
