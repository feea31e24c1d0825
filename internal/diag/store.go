package diag

import (
	"sort"
	"sync"
	"time"
)

// Store aggregates diagnostics keyed by document identity.
//
// Publishing is a full replacement per key: the previous pass's findings for
// that document are discarded wholesale, never merged. Concurrent publishes
// for different documents are independent; concurrent publishes for the same
// document resolve to whichever call runs last (last-resolved-wins; see
// the scheduler notes in internal/schedule).
type Store struct {
	mu    sync.RWMutex
	byDoc map[string][]Finding
	sinks []Sink
	nowFn func() time.Time
}

// NewStore creates an empty diagnostic store fanning out to the given sinks.
func NewStore(sinks ...Sink) *Store {
	return &Store{
		byDoc: make(map[string][]Finding),
		sinks: sinks,
		nowFn: time.Now,
	}
}

// Publish replaces the full finding set for a document and notifies sinks.
// A nil or empty findings slice clears the document's diagnostics; sinks
// still see the (empty) replacement so hosts can clear their displays.
func (s *Store) Publish(doc string, findings []Finding) {
	// Copy so later caller mutations cannot leak into the store.
	stored := make([]Finding, len(findings))
	copy(stored, findings)

	s.mu.Lock()
	s.byDoc[doc] = stored
	sinks := s.sinks
	publishedAt := s.nowFn()
	s.mu.Unlock()

	for _, sink := range sinks {
		sink.Publish(Publication{Document: doc, Findings: stored, PublishedAt: publishedAt})
	}
}

// Get returns the current findings for a document.
func (s *Store) Get(doc string) []Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()

	findings, ok := s.byDoc[doc]
	if !ok {
		return nil
	}
	out := make([]Finding, len(findings))
	copy(out, findings)
	return out
}

// Drop removes a document's diagnostics entirely (closed/deleted files).
// Sinks receive an empty replacement so the host clears its display.
func (s *Store) Drop(doc string) {
	s.mu.Lock()
	_, existed := s.byDoc[doc]
	delete(s.byDoc, doc)
	sinks := s.sinks
	publishedAt := s.nowFn()
	s.mu.Unlock()

	if !existed {
		return
	}
	for _, sink := range sinks {
		sink.Publish(Publication{Document: doc, Findings: nil, PublishedAt: publishedAt})
	}
}

// Documents lists documents with published diagnostics, sorted for stable
// iteration in tests and status output.
func (s *Store) Documents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]string, 0, len(s.byDoc))
	for doc := range s.byDoc {
		docs = append(docs, doc)
	}
	sort.Strings(docs)
	return docs
}

// TotalFindings counts findings across all documents.
func (s *Store) TotalFindings() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, findings := range s.byDoc {
		total += len(findings)
	}
	return total
}
