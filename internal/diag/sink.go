package diag

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Publication is one full replacement of a document's diagnostics.
type Publication struct {
	Document    string    `json:"document"`
	Findings    []Finding `json:"findings"`
	PublishedAt time.Time `json:"published_at"`
}

// Sink receives diagnostic publications. Implementations adapt the engine to
// whatever host surface displays diagnostics (editor, stdout stream, tests);
// the engine itself never knows about any host API.
type Sink interface {
	Publish(pub Publication)
}

// MemorySink retains publications in memory. Used by tests and by status
// commands that want to inspect the most recent pass.
type MemorySink struct {
	mu   sync.Mutex
	pubs []Publication
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Publish implements Sink.
func (m *MemorySink) Publish(pub Publication) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pubs = append(m.pubs, pub)
}

// Publications returns a copy of everything published so far, in order.
func (m *MemorySink) Publications() []Publication {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Publication, len(m.pubs))
	copy(out, m.pubs)
	return out
}

// Last returns the most recent publication for a document, if any.
func (m *MemorySink) Last(doc string) (Publication, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.pubs) - 1; i >= 0; i-- {
		if m.pubs[i].Document == doc {
			return m.pubs[i], true
		}
	}
	return Publication{}, false
}

// StreamSink writes each publication as one JSON line. This is the transport
// the serve command uses to hand diagnostics to a host process over stdout.
type StreamSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewStreamSink creates a sink writing JSON lines to w.
func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{enc: json.NewEncoder(w)}
}

// Publish implements Sink. Encoding errors are swallowed: a broken pipe means
// the host went away, and diagnostics are recomputed on the next pass anyway.
func (s *StreamSink) Publish(pub Publication) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(streamEnvelope{Type: "diagnostics", Publication: pub})
}

type streamEnvelope struct {
	Type string `json:"type"`
	Publication
}
