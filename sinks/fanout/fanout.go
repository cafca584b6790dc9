// Package fanout adapts the teacher's FanoutSink (a MetricSink
// broadcasting to several others) to the new Sink contract: one Sink
// that forwards every call to an ordered list of inner Sinks, continuing
// past a failing one and reporting the first error encountered.
//
// The orchestrator already fans a buffer out to every registered sink
// adapter independently, so this package exists for the narrower case
// of grouping several sinks behind one `*.sink.<name>.class` entry
// (e.g. sending to two Prometheus registries under one config subtree).
package fanout

import metrics "github.com/kestrel-oss/metricsys"

func init() {
	metrics.RegisterSinkFactory("fanout", newFromConfig)
}

// Sink forwards every call to each inner sink in order.
type Sink struct {
	sinks []metrics.Sink
}

// New wraps sinks for fanout delivery.
func New(sinks ...metrics.Sink) *Sink {
	return &Sink{sinks: sinks}
}

// newFromConfig builds an empty fanout sink; members are expected to be
// attached programmatically via Add, since the core never constructs
// concrete sink instances for a class it doesn't recognize from config
// alone.
func newFromConfig(cfg metrics.SubConfig) (metrics.Sink, error) {
	return New(), nil
}

// Add appends a sink to the fanout set.
func (s *Sink) Add(sink metrics.Sink) {
	s.sinks = append(s.sinks, sink)
}

// Configure configures every inner sink, stopping at the first error.
func (s *Sink) Configure(cfg metrics.SubConfig) error {
	for _, inner := range s.sinks {
		if err := inner.Configure(cfg); err != nil {
			return err
		}
	}
	return nil
}

// PutMetrics forwards r to every inner sink, continuing past failures
// and returning the first error seen.
func (s *Sink) PutMetrics(r metrics.Record) error {
	var firstErr error
	for _, inner := range s.sinks {
		if err := inner.PutMetrics(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes every inner sink, continuing past failures and
// returning the first error seen.
func (s *Sink) Flush() error {
	var firstErr error
	for _, inner := range s.sinks {
		if err := inner.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close closes every inner sink that implements metrics.Closer.
func (s *Sink) Close() error {
	var firstErr error
	for _, inner := range s.sinks {
		if closer, ok := inner.(metrics.Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
