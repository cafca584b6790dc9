package metrics

import (
	"encoding/json"
	"fmt"
)

// MetricValueKind discriminates the variant carried by an AbstractMetric
// or a MutableMetric (spec.md §3: "AbstractMetric: a variant over
// {CounterInt, CounterLong, GaugeInt, GaugeLong, GaugeFloat,
// GaugeDouble, Stat}").
type MetricValueKind int

const (
	CounterInt MetricValueKind = iota
	CounterLong
	GaugeInt
	GaugeLong
	GaugeFloat
	GaugeDouble
	StatKind
)

func (k MetricValueKind) String() string {
	switch k {
	case CounterInt:
		return "counter-int"
	case CounterLong:
		return "counter-long"
	case GaugeInt:
		return "gauge-int"
	case GaugeLong:
		return "gauge-long"
	case GaugeFloat:
		return "gauge-float"
	case GaugeDouble:
		return "gauge-double"
	case StatKind:
		return "stat"
	default:
		return "unknown"
	}
}

// StatSample is the rolling aggregate a Stat snapshot materializes. The
// snapshot emits it alongside <name>Num and <name>Avg sub-metrics, plus
// <name>Min/<name>Max/<name>Stdev only when StatOpts.Extended is set.
type StatSample struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
	// Stddev is the population standard deviation over the samples
	// accumulated since the last reset.
	Stddev float64
}

// Avg returns Sum/Count, or zero if no samples were accumulated.
func (s StatSample) Avg() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

// AbstractMetric is an immutable, already-sampled metric value attached
// to a Record. It is produced once, by MutableMetric.Snapshot, and never
// mutated afterward (spec.md §3).
type AbstractMetric struct {
	Info *MetricInfo
	Kind MetricValueKind

	intVal    int32
	longVal   int64
	floatVal  float32
	doubleVal float64
	stat      StatSample
}

func newCounterIntMetric(info *MetricInfo, v int32) AbstractMetric {
	return AbstractMetric{Info: info, Kind: CounterInt, intVal: v}
}

func newCounterLongMetric(info *MetricInfo, v int64) AbstractMetric {
	return AbstractMetric{Info: info, Kind: CounterLong, longVal: v}
}

func newGaugeIntMetric(info *MetricInfo, v int32) AbstractMetric {
	return AbstractMetric{Info: info, Kind: GaugeInt, intVal: v}
}

func newGaugeLongMetric(info *MetricInfo, v int64) AbstractMetric {
	return AbstractMetric{Info: info, Kind: GaugeLong, longVal: v}
}

func newGaugeFloatMetric(info *MetricInfo, v float32) AbstractMetric {
	return AbstractMetric{Info: info, Kind: GaugeFloat, floatVal: v}
}

func newGaugeDoubleMetric(info *MetricInfo, v float64) AbstractMetric {
	return AbstractMetric{Info: info, Kind: GaugeDouble, doubleVal: v}
}

func newStatMetric(info *MetricInfo, s StatSample) AbstractMetric {
	return AbstractMetric{Info: info, Kind: StatKind, stat: s}
}

// IntValue returns the value for CounterInt/GaugeInt metrics.
func (m AbstractMetric) IntValue() int32 { return m.intVal }

// LongValue returns the value for CounterLong/GaugeLong metrics.
func (m AbstractMetric) LongValue() int64 { return m.longVal }

// FloatValue returns the value for GaugeFloat metrics.
func (m AbstractMetric) FloatValue() float32 { return m.floatVal }

// DoubleValue returns the value for GaugeDouble metrics.
func (m AbstractMetric) DoubleValue() float64 { return m.doubleVal }

// StatValue returns the rolling aggregate for Stat metrics.
func (m AbstractMetric) StatValue() StatSample { return m.stat }

// Float64 returns the metric's value widened to float64, regardless of
// kind. Stat metrics widen to their average. Sink plugins that don't
// care about the exact numeric width use this.
func (m AbstractMetric) Float64() float64 {
	switch m.Kind {
	case CounterInt, GaugeInt:
		return float64(m.intVal)
	case CounterLong, GaugeLong:
		return float64(m.longVal)
	case GaugeFloat:
		return float64(m.floatVal)
	case GaugeDouble:
		return m.doubleVal
	case StatKind:
		return m.stat.Avg()
	default:
		return 0
	}
}

// MarshalJSON renders the metric for the management-bean HTTP surface
// (SPEC_FULL.md §6): AbstractMetric's numeric fields are unexported (to
// keep the variant's zero-value-per-kind representation from leaking
// into the public API), so encoding/json would otherwise see an empty
// object.
func (m AbstractMetric) MarshalJSON() ([]byte, error) {
	type wire struct {
		Name  string  `json:"name"`
		Kind  string  `json:"kind"`
		Value float64 `json:"value"`
		Count int64   `json:"count,omitempty"`
		Min   float64 `json:"min,omitempty"`
		Max   float64 `json:"max,omitempty"`
	}
	w := wire{Name: m.Info.Name, Kind: m.Kind.String(), Value: m.Float64()}
	if m.Kind == StatKind {
		w.Count = m.stat.Count
		w.Min = m.stat.Min
		w.Max = m.stat.Max
	}
	return json.Marshal(w)
}

func (m AbstractMetric) String() string {
	switch m.Kind {
	case StatKind:
		return fmt.Sprintf("%s{count=%d,sum=%g,avg=%g,min=%g,max=%g}",
			m.Info.Name, m.stat.Count, m.stat.Sum, m.stat.Avg(), m.stat.Min, m.stat.Max)
	default:
		return fmt.Sprintf("%s=%g", m.Info.Name, m.Float64())
	}
}
