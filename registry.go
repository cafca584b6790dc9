package metrics

import (
	"fmt"
	"sync"
)

// Counter is a handle to a registered monotonic counter (spec.md §4.1).
// The zero value is usable but inert (Incr is a no-op) so that
// declaratively-bound fields default safely before the source builder
// populates them.
type Counter struct{ m *mutableCounter }

// Incr increments the counter by n (n < 0 is clamped to 0; counters are
// monotonic).
func (c Counter) Incr(n int64) {
	if c.m != nil {
		c.m.Incr(n)
	}
}

// Value returns the counter's current value.
func (c Counter) Value() int64 {
	if c.m == nil {
		return 0
	}
	return c.m.value()
}

// Gauge is a handle to a registered gauge (spec.md §4.1).
type Gauge struct{ m *mutableGauge }

// Set records the current observed value.
func (g Gauge) Set(v float64) {
	if g.m != nil {
		g.m.Set(v)
	}
}

// Incr adds delta to the gauge's current value.
func (g Gauge) Incr(delta float64) {
	if g.m != nil {
		g.m.Incr(delta)
	}
}

// Decr subtracts delta from the gauge's current value.
func (g Gauge) Decr(delta float64) {
	if g.m != nil {
		g.m.Decr(delta)
	}
}

// Stat is a handle to a registered rolling statistic (spec.md §4.1).
type Stat struct{ m *mutableStat }

// Add records one sample into the rolling aggregate.
func (s Stat) Add(v float64) {
	if s.m != nil {
		s.m.Add(v)
	}
}

// Registry is a per-source, ordered name→MutableMetric container
// (spec.md §3). Metric names are unique within a registry; insertion
// order is preserved so that snapshot order equals registration order
// (spec.md invariant 1). A Registry owns its metrics for the lifetime
// of the source that holds it.
//
// Grounded on the teacher's Metrics struct in start.go, which keeps a
// struct-of-maps for persisted gauges/counters; Registry generalizes
// that to an explicit ordered map since sync.Map (as the teacher uses
// for persistedGauges/aggregatedCounters) does not preserve insertion
// order.
type Registry struct {
	Info *MetricInfo

	mu      sync.Mutex
	names   []string
	metrics map[string]MutableMetric
	context string
}

// NewRegistry creates an empty registry identified by info.
func NewRegistry(info *MetricInfo) *Registry {
	return &Registry{Info: info, metrics: make(map[string]MutableMetric)}
}

// SetContext sets the context tag value appended to every record
// emitted from this registry's owning source (spec.md §4.2).
func (r *Registry) SetContext(value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.context = value
}

// Context returns the current context tag value, if any.
func (r *Registry) Context() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context
}

// add registers m under name, failing with ErrDuplicateName if already
// present (spec.md §4.2).
func (r *Registry) add(name string, m MutableMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.metrics[name]; exists {
		return fmt.Errorf("%w: %q in registry %q", ErrDuplicateName, name, r.Info.Name)
	}
	r.metrics[name] = m
	r.names = append(r.names, name)
	return nil
}

// Get returns the metric registered under name, if any.
func (r *Registry) Get(name string) (MutableMetric, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.metrics[name]
	return m, ok
}

// NewCounter registers a new counter under info.Name. kind must be
// CounterInt or CounterLong.
func (r *Registry) NewCounter(info *MetricInfo, kind MetricValueKind, initial int64) (Counter, error) {
	c := newMutableCounter(info, kind, initial)
	if err := r.add(info.Name, c); err != nil {
		return Counter{}, err
	}
	return Counter{c}, nil
}

// NewGauge registers a new gauge under info.Name. kind selects the
// underlying numeric width (GaugeInt/Long/Float/Double).
func (r *Registry) NewGauge(info *MetricInfo, kind MetricValueKind, initial float64) (Gauge, error) {
	g := newMutableGauge(info, kind, initial)
	if err := r.add(info.Name, g); err != nil {
		return Gauge{}, err
	}
	return Gauge{g}, nil
}

// NewStat registers a new rolling statistic under info.Name.
func (r *Registry) NewStat(info *MetricInfo, opts StatOpts) (Stat, error) {
	s := newMutableStat(info, opts)
	if err := r.add(info.Name, s); err != nil {
		return Stat{}, err
	}
	return Stat{s}, nil
}

// Snapshot iterates registered metrics in insertion order, invoking
// each one's Snapshot against b (spec.md §4.2), after tagging b with the
// registry's context, if one is set. Callers must not
// register new metrics from inside a concurrent Snapshot call; if they
// do anyway, the new metric simply becomes visible starting with the
// next pass.
func (r *Registry) Snapshot(b *RecordBuilder, all bool) {
	r.mu.Lock()
	names := append([]string(nil), r.names...)
	metrics := make([]MutableMetric, len(names))
	for i, n := range names {
		metrics[i] = r.metrics[n]
	}
	context := r.context
	r.mu.Unlock()

	if context != "" {
		b.SetContext(context)
	}
	for _, m := range metrics {
		m.Snapshot(b, all)
	}
}
