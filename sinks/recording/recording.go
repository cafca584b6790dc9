// Package recording provides an in-memory Sink that retains every
// delivered Record, for use in tests that assert on exactly what the
// core delivered (spec.md §8's literal end-to-end scenarios).
//
// The teacher's own in-memory sink (InmemSink, exercised by
// inmem_endpoint_test.go/inmem_signal_test.go) was missing from the
// retrieved snapshot; this package replaces its intent - an inspectable
// sink for assertions - rebuilt from scratch against the new Sink
// contract rather than adapted from missing source.
package recording

import (
	"sync"

	metrics "github.com/kestrel-oss/metricsys"
)

func init() {
	metrics.RegisterSinkFactory("recording", newFromConfig)
}

// Sink records every delivered Record in submit order, plus a Flush
// count, for test assertions.
type Sink struct {
	mu      sync.Mutex
	records []metrics.Record
	flushes int
}

// New creates an empty recording sink.
func New() *Sink { return &Sink{} }

func newFromConfig(cfg metrics.SubConfig) (metrics.Sink, error) { return New(), nil }

// Configure is a no-op.
func (s *Sink) Configure(cfg metrics.SubConfig) error { return nil }

// PutMetrics appends r to the recorded list.
func (s *Sink) PutMetrics(r metrics.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

// Flush counts the call; it never fails.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

// Records returns a snapshot of every record delivered so far, in
// delivery order.
func (s *Sink) Records() []metrics.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]metrics.Record(nil), s.records...)
}

// Flushes returns how many times Flush has been called.
func (s *Sink) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Reset clears every recorded record and flush count.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.flushes = 0
}
