package metrics

import (
	"math"
	"sync"
	"sync/atomic"
)

// MutableMetric is the live, in-registry counterpart of AbstractMetric.
// Producer goroutines call the update operations concurrently with the
// sampler calling Snapshot (spec.md §5). Implementations must make
// every individual update linearizable without blocking.
type MutableMetric interface {
	Info() *MetricInfo
	Kind() MetricValueKind

	// Snapshot appends this metric's current sample to b. When all is
	// false, only metrics mutated since the previous all=false snapshot
	// are appended (spec.md §4.1); the changed flag is cleared either
	// way per the Open Question decision in SPEC_FULL.md §7.
	Snapshot(b *RecordBuilder, all bool)
}

// ---- counters ----

type mutableCounter struct {
	info    *MetricInfo
	kind    MetricValueKind // CounterInt or CounterLong
	val     atomic.Int64
	changed atomic.Bool
}

func newMutableCounter(info *MetricInfo, kind MetricValueKind, initial int64) *mutableCounter {
	c := &mutableCounter{info: info, kind: kind}
	c.val.Store(initial)
	return c
}

func (c *mutableCounter) Info() *MetricInfo    { return c.info }
func (c *mutableCounter) Kind() MetricValueKind { return c.kind }

// Incr increments the counter. n must be >= 0: counters are monotonic
// (spec.md §4.1).
func (c *mutableCounter) Incr(n int64) {
	if n < 0 {
		n = 0
	}
	c.val.Add(n)
	c.changed.Store(true)
}

func (c *mutableCounter) value() int64 { return c.val.Load() }

func (c *mutableCounter) Snapshot(b *RecordBuilder, all bool) {
	if !all && !c.changed.Load() {
		return
	}
	v := c.val.Load()
	if c.kind == CounterInt {
		b.Add(newCounterIntMetric(c.info, int32(v)))
	} else {
		b.Add(newCounterLongMetric(c.info, v))
	}
	c.changed.Store(false)
}

// ---- gauges ----

type mutableGauge struct {
	info    *MetricInfo
	kind    MetricValueKind // GaugeInt, GaugeLong, GaugeFloat, GaugeDouble
	bits    atomic.Uint64   // int64/float64 bit pattern depending on kind
	changed atomic.Bool
}

func newMutableGauge(info *MetricInfo, kind MetricValueKind, initial float64) *mutableGauge {
	g := &mutableGauge{info: info, kind: kind}
	g.storeFloat(initial)
	return g
}

func (g *mutableGauge) storeFloat(v float64) {
	switch g.kind {
	case GaugeInt, GaugeLong:
		g.bits.Store(uint64(int64(v)))
	case GaugeFloat, GaugeDouble:
		g.bits.Store(math.Float64bits(v))
	}
}

func (g *mutableGauge) loadFloat() float64 {
	switch g.kind {
	case GaugeInt, GaugeLong:
		return float64(int64(g.bits.Load()))
	default:
		return math.Float64frombits(g.bits.Load())
	}
}

func (g *mutableGauge) Info() *MetricInfo     { return g.info }
func (g *mutableGauge) Kind() MetricValueKind { return g.kind }

func (g *mutableGauge) Set(v float64) {
	g.storeFloat(v)
	g.changed.Store(true)
}

func (g *mutableGauge) Incr(delta float64) {
	for {
		old := g.bits.Load()
		var oldF float64
		if g.kind == GaugeInt || g.kind == GaugeLong {
			oldF = float64(int64(old))
		} else {
			oldF = math.Float64frombits(old)
		}
		newF := oldF + delta
		var newBits uint64
		if g.kind == GaugeInt || g.kind == GaugeLong {
			newBits = uint64(int64(newF))
		} else {
			newBits = math.Float64bits(newF)
		}
		if g.bits.CompareAndSwap(old, newBits) {
			g.changed.Store(true)
			return
		}
	}
}

func (g *mutableGauge) Decr(delta float64) { g.Incr(-delta) }

func (g *mutableGauge) Snapshot(b *RecordBuilder, all bool) {
	if !all && !g.changed.Load() {
		return
	}
	v := g.loadFloat()
	switch g.kind {
	case GaugeInt:
		b.Add(newGaugeIntMetric(g.info, int32(v)))
	case GaugeLong:
		b.Add(newGaugeLongMetric(g.info, int64(v)))
	case GaugeFloat:
		b.Add(newGaugeFloatMetric(g.info, float32(v)))
	default:
		b.Add(newGaugeDoubleMetric(g.info, v))
	}
	g.changed.Store(false)
}

// mutableStatHandle is a thin handle around a standalone *mutableStat
// that is never registered in any Registry, used by SinkAdapter to
// track delivery latency for the self-metrics source (SPEC_FULL.md
// §5).
type mutableStatHandle struct {
	s *mutableStat
}

func (h *mutableStatHandle) Add(v float64) { h.s.Add(v) }

// Average returns the current rolling average without resetting it,
// regardless of the handle's IntervalMs setting.
func (h *mutableStatHandle) Average() float64 {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.s.snapshotLocked().Avg()
}

// ---- stats ----

// StatOpts configures a Stat metric's reset behavior (SPEC_FULL.md §7,
// Open Question 1: reset-on-snapshot is configurable per stat).
type StatOpts struct {
	// SampleName/ValueName name the count and average sub-metrics; they
	// default to "Num"/"Avg" suffixes on the base name when empty.
	SampleName string
	ValueName  string
	// Extended additionally emits Min/Max/Stddev sub-metrics.
	Extended bool
	// IntervalMs > 0 means the rolling window resets after every
	// snapshot; 0 (default) means cumulative.
	IntervalMs int64
}

type mutableStat struct {
	info    *MetricInfo
	opts    StatOpts
	mu      sync.Mutex
	count   int64
	sum     float64
	sumSq   float64
	min     float64
	max     float64
	changed bool
}

func newMutableStat(info *MetricInfo, opts StatOpts) *mutableStat {
	if opts.SampleName == "" {
		opts.SampleName = info.Name + "Num"
	}
	if opts.ValueName == "" {
		opts.ValueName = info.Name + "Avg"
	}
	return &mutableStat{info: info, opts: opts, min: math.MaxFloat64, max: -math.MaxFloat64}
}

func (s *mutableStat) Info() *MetricInfo     { return s.info }
func (s *mutableStat) Kind() MetricValueKind { return StatKind }

// Add records one sample into the rolling aggregate.
func (s *mutableStat) Add(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.count++
	s.sum += v
	s.sumSq += v * v
	if v < s.min {
		s.min = v
	}
	if v > s.max {
		s.max = v
	}
	s.changed = true
}

func (s *mutableStat) snapshotLocked() StatSample {
	if s.count == 0 {
		return StatSample{}
	}
	avg := s.sum / float64(s.count)
	variance := s.sumSq/float64(s.count) - avg*avg
	if variance < 0 {
		variance = 0
	}
	return StatSample{
		Count:  s.count,
		Sum:    s.sum,
		Min:    s.min,
		Max:    s.max,
		Stddev: math.Sqrt(variance),
	}
}

func (s *mutableStat) resetLocked() {
	s.count = 0
	s.sum = 0
	s.sumSq = 0
	s.min = math.MaxFloat64
	s.max = -math.MaxFloat64
}

func (s *mutableStat) Snapshot(b *RecordBuilder, all bool) {
	s.mu.Lock()
	if !all && !s.changed {
		s.mu.Unlock()
		return
	}
	sample := s.snapshotLocked()
	s.changed = false
	if s.opts.IntervalMs > 0 {
		s.resetLocked()
	}
	s.mu.Unlock()

	b.Add(newStatMetric(s.info, sample))
	b.Add(newCounterLongMetric(InfoOrName(s.opts.SampleName, ""), sample.Count))
	b.Add(newGaugeDoubleMetric(InfoOrName(s.opts.ValueName, ""), sample.Avg()))
	if s.opts.Extended {
		min := sample.Min
		if sample.Count == 0 {
			min = 0
		}
		max := sample.Max
		if sample.Count == 0 {
			max = 0
		}
		b.Add(newGaugeDoubleMetric(InfoOrName(s.info.Name+"Min", ""), min))
		b.Add(newGaugeDoubleMetric(InfoOrName(s.info.Name+"Max", ""), max))
		b.Add(newGaugeDoubleMetric(InfoOrName(s.info.Name+"Stdev", ""), sample.Stddev))
	}
}
