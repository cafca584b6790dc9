package metrics

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kestrel-oss/metricsys/internal/logutil"
)

// adapterState mirrors the lifecycle in spec.md §3: "Lifecycle states:
// new -> started -> stopped".
type adapterState int

const (
	adapterNew adapterState = iota
	adapterStarted
	adapterStopped
)

// SourceAdapter owns one Source, its name/description, its mgmt-bean
// registration, its sampling period, and its source-specific config
// (spec.md §3). It is exclusively owned by the Orchestrator.
//
// Grounded on the teacher's periodic-sampling shape in runtime.go
// (collectStats: ticker + struct of named gauges filled every tick) for
// the "invoke source, fill a record" half of this component; the
// mgmt-bean cache TTL is implemented with golang.org/x/time/rate's
// Sometimes, a dependency ClusterCockpit-cc-backend and
// ipiton-alert-history-service both already carry.
type SourceAdapter struct {
	Name        string
	Description string
	Source      Source
	Period      time.Duration
	Config      SubConfig

	state atomic_state

	cacheMu   sync.Mutex
	cached    []Record
	sometimes rate.Sometimes
}

// atomic_state is a tiny mutex-guarded state holder; named distinctly
// from sync/atomic's types to avoid stutter at call sites.
type atomic_state struct {
	mu sync.Mutex
	v  adapterState
}

func (s *atomic_state) get() adapterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v
}

func (s *atomic_state) set(v adapterState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = v
}

// NewSourceAdapter wraps src for orchestration. cacheTTL bounds the
// rate at which mgmt-bean reads trigger a fresh all=true snapshot
// (spec.md §4.4); it defaults to period when zero.
func NewSourceAdapter(name, description string, src Source, period, cacheTTL time.Duration) *SourceAdapter {
	if cacheTTL <= 0 {
		cacheTTL = period
	}
	sa := &SourceAdapter{
		Name:        name,
		Description: description,
		Source:      src,
		Period:      period,
	}
	sa.sometimes = rate.Sometimes{Interval: cacheTTL}
	return sa
}

func (sa *SourceAdapter) Start() { sa.state.set(adapterStarted) }
func (sa *SourceAdapter) Stop()  { sa.state.set(adapterStopped) }
func (sa *SourceAdapter) State() adapterState { return sa.state.get() }

// GetMetrics implements spec.md §4.4's four steps: clear the collector,
// invoke the source (containing any panic/error as SourceSnapshotError),
// apply this source's context tag and the orchestrator-injected tags to
// every record, and return the finalized records.
func (sa *SourceAdapter) GetMetrics(c *Collector, all bool, contextTag string, injected []*Tag) (records []Record) {
	c.Clear()

	if err := sa.invokeSource(c, all); err != nil {
		logutil.Errf("source %q: getMetrics failed, yielding zero records this pass: %v", sa.Name, err)
		return nil
	}

	records = c.GetRecords()
	for i := range records {
		records[i].Tags = mergeTags(contextTag, injected, records[i].Tags)
	}
	return records
}

// invokeSource calls the user's Source.GetMetrics, converting both
// returned errors and panics into a single error so a misbehaving
// source never brings down the sampling pass (spec.md §7
// SourceSnapshotError).
func (sa *SourceAdapter) invokeSource(c *Collector, all bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sa.Source.GetMetrics(c, all)
}

// mergeTags implements the tag precedence from spec.md invariant 1:
// contextTag, then orchestrator-injected tags, then the record
// builder's own tags, in that order.
func mergeTags(contextTag string, injected []*Tag, builderTags []*Tag) []*Tag {
	out := make([]*Tag, 0, len(injected)+len(builderTags)+1)
	if contextTag != "" {
		out = append(out, NewTag(ContextInfo, contextTag))
	}
	out = append(out, injected...)
	out = append(out, builderTags...)
	return out
}

// CachedSnapshot returns the most recent all=true snapshot of sa's
// metrics, refreshing it first if the cache is older than the
// configured TTL (spec.md §4.4: "Each attribute read triggers an
// all=true snapshot if the last snapshot is older than the configured
// cache TTL... otherwise returns the cached value. This bounds the cost
// of rapid external polling"). Used by the management-bean HTTP surface
// (SPEC_FULL.md §6).
func (sa *SourceAdapter) CachedSnapshot(contextTag string, injected []*Tag) []Record {
	sa.cacheMu.Lock()
	defer sa.cacheMu.Unlock()

	sa.sometimes.Do(func() {
		c := NewCollector(nil, nil)
		sa.cached = sa.GetMetrics(c, true, contextTag, injected)
	})
	return sa.cached
}
