// Package prometheus adapts the core Sink contract to
// github.com/prometheus/client_golang, optionally pushing to a
// Pushgateway on Flush.
//
// Grounded on the teacher's prometheus/prometheus.go (PrometheusSink/
// PrometheusPushSink): this keeps the sync.Map-per-kind storage, the
// flattenKey name-sanitizing regex, and the push-on-interval idea, but
// drives pushing from the core's Flush() call (once per delivered
// buffer) instead of its own internal ticker, since the owning
// SinkAdapter already provides the delivery cadence.
package prometheus

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	metrics "github.com/kestrel-oss/metricsys"
)

func init() {
	metrics.RegisterSinkFactory("prometheus", newFromConfig)
}

// Sink translates Records into prometheus collectors registered against
// a private *prometheus.Registry (not the global DefaultRegisterer, so
// that more than one instance of this sink can coexist in one process -
// the teacher's PrometheusSink always registered into
// prometheus.DefaultRegisterer, which this sink deliberately departs
// from).
type Sink struct {
	registry *prometheus.Registry
	gauges   sync.Map // flattened key -> prometheus.Gauge
	counters sync.Map // flattened key -> prometheus.Counter
	summaries sync.Map // flattened key -> prometheus.Summary

	pusher  *push.Pusher
	jobName string
}

// New creates an unconfigured Sink; Configure must be called before use
// (the adapter does this automatically via NewSinkFromConfig).
func New() *Sink {
	return &Sink{registry: prometheus.NewRegistry()}
}

func newFromConfig(cfg metrics.SubConfig) (metrics.Sink, error) {
	return New(), nil
}

// Registry exposes the private registry for a caller that wants to
// mount /metrics via promhttp.HandlerFor(sink.Registry(), ...).
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

// Configure reads "job" (pushgateway job name, default "metricsys") and
// "push.address" (pushgateway URL; if empty, this sink only accumulates
// into Registry() for scrape-based export).
func (s *Sink) Configure(cfg metrics.SubConfig) error {
	s.jobName = cfg.GetString("job", "metricsys")
	if addr := cfg.GetString("push.address", ""); addr != "" {
		s.pusher = push.New(addr, s.jobName).Gatherer(s.registry)
	}
	return nil
}

// PutMetrics fans a Record's metrics out into gauges/counters/summaries
// keyed by flattened name+tags, creating each lazily on first sight.
func (s *Sink) PutMetrics(r metrics.Record) error {
	labels := tagLabels(r.Tags)
	for _, m := range r.Metrics {
		key, hash := flattenKey(m.Info.Name, labels)
		switch m.Kind {
		case metrics.CounterInt, metrics.CounterLong:
			s.counter(key, hash, labels).Add(m.Float64())
		case metrics.StatKind:
			s.summary(key, hash, labels).Observe(m.Float64())
		default:
			s.gauge(key, hash, labels).Set(m.Float64())
		}
	}
	return nil
}

// Flush pushes the registry's current state to the configured
// Pushgateway, if any; otherwise it is a no-op (the registry is
// available for scrape-based export via Registry()).
func (s *Sink) Flush() error {
	if s.pusher == nil {
		return nil
	}
	if err := s.pusher.Push(); err != nil {
		return fmt.Errorf("prometheus sink: push failed: %w", err)
	}
	return nil
}

func (s *Sink) gauge(key, hash string, labels prometheus.Labels) prometheus.Gauge {
	if v, ok := s.gauges.Load(hash); ok {
		return v.(prometheus.Gauge)
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: key, Help: key, ConstLabels: labels})
	s.registry.MustRegister(g)
	actual, _ := s.gauges.LoadOrStore(hash, g)
	return actual.(prometheus.Gauge)
}

func (s *Sink) counter(key, hash string, labels prometheus.Labels) prometheus.Counter {
	if v, ok := s.counters.Load(hash); ok {
		return v.(prometheus.Counter)
	}
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: key, Help: key, ConstLabels: labels})
	s.registry.MustRegister(c)
	actual, _ := s.counters.LoadOrStore(hash, c)
	return actual.(prometheus.Counter)
}

func (s *Sink) summary(key, hash string, labels prometheus.Labels) prometheus.Summary {
	if v, ok := s.summaries.Load(hash); ok {
		return v.(prometheus.Summary)
	}
	sm := prometheus.NewSummary(prometheus.SummaryOpts{
		Name:        key,
		Help:        key,
		ConstLabels: labels,
		Objectives:  map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})
	s.registry.MustRegister(sm)
	actual, _ := s.summaries.LoadOrStore(hash, sm)
	return actual.(prometheus.Summary)
}

var forbiddenChars = regexp.MustCompile(`[ .=\-/]`)

func flattenKey(name string, labels prometheus.Labels) (key, hash string) {
	key = forbiddenChars.ReplaceAllString(name, "_")
	hash = key
	for k, v := range labels {
		hash += fmt.Sprintf(";%s=%s", k, v)
	}
	return key, hash
}

func tagLabels(tags []*metrics.Tag) prometheus.Labels {
	l := make(prometheus.Labels, len(tags))
	for _, t := range tags {
		name := strings.ToLower(forbiddenChars.ReplaceAllString(t.Info.Name, "_"))
		l[name] = t.Value
	}
	return l
}
