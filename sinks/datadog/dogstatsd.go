// Package datadog adapts the core Sink contract to a dogstatsd agent via
// github.com/DataDog/datadog-go/v5/statsd.
//
// Grounded on the teacher's datadog/dogstatsd.go (DogStatsdSink): keeps
// the tag-sanitizing rune map and the per-kind client method dispatch,
// replacing BuildMetricEmitter's closure-per-key construction with a
// direct per-record PutMetrics call, since this Sink contract is
// record-at-a-time rather than emitter-registration-at-a-time.
package datadog

import (
	"fmt"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"

	metrics "github.com/kestrel-oss/metricsys"
)

const defaultRate = 1.0

func init() {
	metrics.RegisterSinkFactory("datadog", newFromConfig)
}

// Sink forwards records to a dogstatsd agent over UDP/UDS.
type Sink struct {
	client *statsd.Client
}

// New dials addr (e.g. "127.0.0.1:8125" or "unix:///var/run/datadog/dsd.socket").
func New(addr string) (*Sink, error) {
	client, err := statsd.New(addr)
	if err != nil {
		return nil, err
	}
	return &Sink{client: client}, nil
}

func newFromConfig(cfg metrics.SubConfig) (metrics.Sink, error) {
	return New(cfg.GetString("addr", "127.0.0.1:8125"))
}

// Configure is a no-op: the sink is fully constructed by New/newFromConfig.
func (s *Sink) Configure(cfg metrics.SubConfig) error { return nil }

// PutMetrics sends every metric in r via the dogstatsd method matching
// its kind, tagged with r.Tags. It returns the first client error
// encountered, if any, so the owning SinkAdapter's retry/backoff state
// machine (spec.md §4.5/§6) sees a failed delivery instead of a silent
// drop.
func (s *Sink) PutMetrics(r metrics.Record) error {
	tags := tagStrings(r.Tags)
	var firstErr error
	for _, m := range r.Metrics {
		key := sanitizeKey(m.Info.Name)
		var err error
		switch m.Kind {
		case metrics.CounterInt, metrics.CounterLong:
			err = s.client.Count(key, int64(m.Float64()), tags, defaultRate)
		case metrics.StatKind:
			err = s.client.Histogram(key, m.Float64(), tags, defaultRate)
		default:
			err = s.client.Gauge(key, m.Float64(), tags, defaultRate)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Flush flushes the underlying client's send buffer.
func (s *Sink) Flush() error {
	return s.client.Flush()
}

// Close tears down the statsd client (metrics.Closer).
func (s *Sink) Close() error {
	return s.client.Close()
}

func sanitizeRune(r rune) rune {
	switch r {
	case ':', ' ':
		return '_'
	default:
		return r
	}
}

func sanitizeKey(name string) string {
	return strings.Map(sanitizeRune, name)
}

func tagStrings(tags []*metrics.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		name := strings.Map(sanitizeRune, t.Info.Name)
		value := strings.Map(sanitizeRune, t.Value)
		if value != "" {
			out = append(out, fmt.Sprintf("%s:%s", name, value))
		} else {
			out = append(out, name)
		}
	}
	return out
}
