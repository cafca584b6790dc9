package metrics

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kestrel-oss/metricsys/internal/logutil"
)

// OrchState is the orchestrator's lifecycle state (spec.md §3:
// "unconfigured -> configured -> monitoring <-> stopped").
type OrchState int

const (
	StateUnconfigured OrchState = iota
	StateConfigured
	StateMonitoring
	StateStopped
)

func (s OrchState) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConfigured:
		return "configured"
	case StateMonitoring:
		return "monitoring"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type sourceRegistration struct {
	name    string
	info    *MetricInfo
	src     Source
	period  time.Duration
}

type sinkRegistration struct {
	name string
	sink Sink
}

// Orchestrator is the top-level, one-per-prefix owner of every source
// adapter, sink adapter, config, and the self-source (spec.md §3, §4.7).
// Its public API is serialized on a single mutex, matching "the
// orchestrator's public API is serialized on a single monitor" from
// spec.md §5.
//
// Grounded on the teacher's start.go (globalMetrics singleton,
// ConfigOption functional options, persisted/runtime sources wired up at
// start) and persisted.go/runtime.go's ticker-goroutine-with-stop-channel
// idiom for the sampling timer.
type Orchestrator struct {
	Prefix string

	mu       sync.Mutex
	refcount int
	state    OrchState

	rawConfig RawConfig

	sources []sourceRegistration
	sinks   []sinkRegistration

	sourceAdapters map[string]*SourceAdapter
	sinkAdapters   map[string]*SinkAdapter

	sourceFilter *Filter
	recordFilter *Filter
	metricFilter *Filter

	callbacks    []safeCallback
	callbackSeq  int
	injectedTags []*Tag

	period time.Duration

	stopCh chan struct{}
	doneCh chan struct{}

	selfReg       *Registry
	snapshotStat  Stat
	publishStat   Stat
	droppedPubAll Counter
}

// getInitModeEnv is overridable in tests; wraps the spec.md §6
// `metrics.init.mode` environment/system property lookup.
var getInitModeEnv = func() string { return os.Getenv("metrics.init.mode") }

// NewOrchestrator constructs an orchestrator for prefix in the
// unconfigured state.
func NewOrchestrator(prefix string) *Orchestrator {
	o := &Orchestrator{
		Prefix:         prefix,
		state:          StateUnconfigured,
		sourceAdapters: make(map[string]*SourceAdapter),
		sinkAdapters:   make(map[string]*SinkAdapter),
	}
	o.selfReg = NewRegistry(Info(prefix+".orchestrator", "Metrics orchestrator self-statistics"))
	o.snapshotStat, _ = o.selfReg.NewStat(Info("snapshotLatencyMs", "Time to sample all sources, in ms"), StatOpts{})
	o.publishStat, _ = o.selfReg.NewStat(Info("publishLatencyMs", "Time to publish one buffer to all sinks, in ms"), StatOpts{})
	o.droppedPubAll, _ = o.selfReg.NewCounter(Info("droppedPubAll", "Cumulative buffers dropped across all sinks"), CounterLong, 0)
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() OrchState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Init is idempotent: each call increments the refcount (letting nested
// test/mini-cluster callers share one orchestrator); the first call
// loads cfg and transitions to monitoring, unless STANDBY mode is
// selected, in which case it stays configured (spec.md §4.7, §6).
// Configuration errors at this step are logged and degrade to
// configured rather than failing init outright.
func (o *Orchestrator) Init(cfg RawConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.refcount++
	if o.refcount > 1 {
		return nil
	}

	o.rawConfig = cfg
	if ParseInitMode(getInitModeEnv()) == ModeStandby {
		o.state = StateConfigured
		return nil
	}
	if err := o.startLocked(); err != nil {
		logutil.Warnf("orchestrator %q: start failed during init, staying configured: %v", o.Prefix, err)
		o.state = StateConfigured
	}
	return nil
}

// Start loads configuration, builds sink/source adapters, injects the
// host tag, registers the self-source, runs preStart/postStart
// callbacks, and schedules the sampling timer (spec.md §4.7). It is
// idempotent: calling it while already monitoring is a no-op.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startLocked()
}

func (o *Orchestrator) startLocked() error {
	if o.state == StateMonitoring {
		return nil
	}

	cfg := NewSubConfig(o.rawConfig, o.Prefix)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	o.injectedTags = []*Tag{NewTag(HostnameInfo, hostname)}

	globalPeriod := cfg.GetDurationSeconds("period", defaultPeriod)

	o.sinkAdapters = make(map[string]*SinkAdapter)
	for _, reg := range o.sinks {
		o.sinkAdapters[reg.name] = o.buildSinkAdapterLocked(reg.name, reg.sink, cfg, globalPeriod)
	}
	sinkCfg := cfg.Sub("sink")
	for _, name := range sinkCfg.ChildNames() {
		if _, exists := o.sinkAdapters[name]; exists {
			continue
		}
		sink, err := NewSinkFromConfig(sinkCfg.Sub(name))
		if err != nil {
			logutil.Warnf("orchestrator %q: sink %q config error: %v", o.Prefix, name, err)
			continue
		}
		o.sinkAdapters[name] = o.buildSinkAdapterLocked(name, sink, cfg, globalPeriod)
	}
	for _, sa := range o.sinkAdapters {
		sa.Start()
	}

	// period = gcd of the global default and every sink's own configured
	// period (spec.md §4.7), so a sink asking for a faster cadence than
	// the global default can still be sampled at its own rate.
	periods := make([]time.Duration, 0, len(o.sinkAdapters)+1)
	periods = append(periods, globalPeriod)
	for _, sa := range o.sinkAdapters {
		periods = append(periods, sa.Period)
	}
	o.period = gcdDurations(periods)

	o.registerSelfSourceLocked()

	o.sourceAdapters = make(map[string]*SourceAdapter)
	for _, reg := range o.sources {
		o.sourceAdapters[reg.name] = o.buildSourceAdapterLocked(reg, cfg)
	}
	for _, sa := range o.sourceAdapters {
		sa.Start()
	}

	for _, cb := range o.callbacks {
		cb.PreStart()
	}

	o.stopCh = make(chan struct{})
	o.doneCh = make(chan struct{})
	go o.runTimer(o.stopCh, o.doneCh, o.period)

	for _, cb := range o.callbacks {
		cb.PostStart()
	}

	o.state = StateMonitoring
	return nil
}

func (o *Orchestrator) buildSinkAdapterLocked(name string, sink Sink, cfg SubConfig, globalPeriod time.Duration) *SinkAdapter {
	sc := cfg.Sub("sink").Sub(name)
	scfg := SinkAdapterConfig{
		QueueCapacity: sc.GetInt("queue.capacity", defaultQueueCapacity),
		RetryDelay:    sc.GetDurationMillis("retry.delay", defaultRetryDelay),
		RetryBackoff:  sc.GetFloat64("retry.backoff", defaultRetryBackoff),
		RetryCount:    sc.GetInt("retry.count", defaultRetryCount),
		Period:        sc.GetDurationSeconds("period", globalPeriod),
		SourceFilter:  o.sourceFilter,
		RecordFilter:  o.recordFilter,
		MetricFilter:  o.metricFilter,
	}
	return NewSinkAdapter(name, sink, scfg)
}

func (o *Orchestrator) buildSourceAdapterLocked(reg sourceRegistration, cfg SubConfig) *SourceAdapter {
	sc := cfg.Sub("source").Sub(reg.name)
	period := reg.period
	if period <= 0 {
		period = o.period
		if period <= 0 {
			period = cfg.GetDurationSeconds("period", defaultPeriod)
		}
	}
	sa := NewSourceAdapter(reg.name, reg.info.Description, reg.src, period, sc.GetDurationSeconds("mgmt.cache.ttl", defaultMgmtCacheTTL))
	sa.Config = sc
	return sa
}

// Stop reverses Start: runs pre/post stop callbacks around teardown,
// cancels the timer, stops every adapter, and clears per-start state
// (spec.md §4.7). Unlike Shutdown, Stop ignores the refcount, matching
// the direct start/stop/start restart scenario in spec.md S6.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stopLocked()
}

func (o *Orchestrator) stopLocked() {
	if o.state != StateMonitoring {
		o.state = StateStopped
		return
	}

	for _, cb := range o.callbacks {
		cb.PreStop()
	}

	close(o.stopCh)
	<-o.doneCh

	for _, sa := range o.sourceAdapters {
		sa.Stop()
	}
	joinTimeout := o.period
	if joinTimeout <= 0 {
		joinTimeout = defaultPeriod
	}
	for _, sa := range o.sinkAdapters {
		sa.Stop(joinTimeout)
	}
	o.sourceAdapters = make(map[string]*SourceAdapter)
	o.sinkAdapters = make(map[string]*SinkAdapter)

	for _, cb := range o.callbacks {
		cb.PostStop()
	}

	o.state = StateStopped
}

// Shutdown decrements the refcount; on reaching zero it stops the
// orchestrator and reports true. Earlier calls (refcount still
// positive) return false without side effects (spec.md §4.7,
// round-trip property: "earlier shutdowns return false").
func (o *Orchestrator) Shutdown() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refcount--
	if o.refcount > 0 {
		return false
	}
	o.stopLocked()
	return true
}

// RegisterSource builds a Source from obj via the declarative binder
// (spec.md §4.6), stores the registration so it survives restarts, and
// if already monitoring, binds it immediately (spec.md §4.7
// "register(name, desc, source)").
func (o *Orchestrator) RegisterSource(name, description string, obj any) (Source, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	src, info, err := BuildSource(obj)
	if err != nil {
		return nil, err
	}
	if description != "" {
		info = InfoOrName(name, description)
	}

	reg := sourceRegistration{name: name, info: info, src: src}
	o.replaceSourceRegistrationLocked(reg)

	if o.state == StateMonitoring {
		cfg := NewSubConfig(o.rawConfig, o.Prefix)
		sa := o.buildSourceAdapterLocked(reg, cfg)
		sa.Start()
		o.sourceAdapters[name] = sa
	}
	return src, nil
}

func (o *Orchestrator) replaceSourceRegistrationLocked(reg sourceRegistration) {
	for i, existing := range o.sources {
		if existing.name == reg.name {
			o.sources[i] = reg
			return
		}
	}
	o.sources = append(o.sources, reg)
}

// RegisterSink adds sink under name, registering it immediately if
// already monitoring (spec.md §4.7 "register(name, desc, sink)").
func (o *Orchestrator) RegisterSink(name string, sink Sink) (Sink, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	found := false
	for i, existing := range o.sinks {
		if existing.name == name {
			o.sinks[i] = sinkRegistration{name: name, sink: sink}
			found = true
			break
		}
	}
	if !found {
		o.sinks = append(o.sinks, sinkRegistration{name: name, sink: sink})
	}

	if o.state == StateMonitoring {
		cfg := NewSubConfig(o.rawConfig, o.Prefix)
		globalPeriod := cfg.GetDurationSeconds("period", defaultPeriod)
		sa := o.buildSinkAdapterLocked(name, sink, cfg, globalPeriod)
		sa.Start()
		o.sinkAdapters[name] = sa
	}
	return sink, nil
}

// RegisterCallback adds cb to the unnamed lifecycle callback list
// (spec.md §4.7).
func (o *Orchestrator) RegisterCallback(cb Callback) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.callbackSeq++
	o.callbacks = append(o.callbacks, safeCallback{name: fmt.Sprintf("callback#%d", o.callbackSeq), cb: cb})
}

// UnregisterSource stops and removes the named source adapter and its
// registration (spec.md §4.7).
func (o *Orchestrator) UnregisterSource(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, reg := range o.sources {
		if reg.name == name {
			o.sources = append(o.sources[:i], o.sources[i+1:]...)
			break
		}
	}
	if sa, ok := o.sourceAdapters[name]; ok {
		sa.Stop()
		delete(o.sourceAdapters, name)
	}
}

// PublishMetricsNow triggers an immediate sample-and-publish pass using
// the blocking, bounded-wait enqueue variant (spec.md §4.7).
func (o *Orchestrator) PublishMetricsNow() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateMonitoring {
		return
	}
	buf := o.sampleMetricsLocked()
	o.publishMetricsLocked(buf, true)
}

// runTimer is the dedicated sampling-timer goroutine (spec.md §5: "The
// timer runs on a dedicated thread that only enters the orchestrator
// monitor for the duration of one sampling+publishing pass").
func (o *Orchestrator) runTimer(stop <-chan struct{}, done chan<- struct{}, period time.Duration) {
	defer close(done)
	if period <= 0 {
		period = defaultPeriod
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			o.mu.Lock()
			if len(o.sinkAdapters) > 0 {
				buf := o.sampleMetricsLocked()
				o.publishMetricsLocked(buf, false)
			}
			o.mu.Unlock()
		case <-stop:
			return
		}
	}
}

// sampleMetricsLocked implements spec.md §4.7 sampleMetrics: clears the
// collector, samples every filter-accepted source adapter plus the
// self-source, and returns the finished buffer. Must be called with
// o.mu held.
func (o *Orchestrator) sampleMetricsLocked() Buffer {
	bb := NewBufferBuilder(time.Now().UnixNano())
	collector := NewCollector(o.recordFilter, o.metricFilter)

	for name, sa := range o.sourceAdapters {
		if o.sourceFilter != nil && !o.sourceFilter.Accepts(name) {
			continue
		}
		o.snapshotMetricsLocked(sa, name, collector, bb)
	}
	return bb.Build()
}

func (o *Orchestrator) snapshotMetricsLocked(sa *SourceAdapter, name string, c *Collector, bb *BufferBuilder) {
	start := time.Now()
	records := sa.GetMetrics(c, true, sa.Config.GetString("context", ""), o.injectedTags)
	bb.Append(name, records)
	c.Clear()
	o.snapshotStat.Add(float64(time.Since(start).Microseconds()) / 1000.0)
}

// publishMetricsLocked implements spec.md §4.7 publishMetrics: enqueues
// buf onto every sink via the immediate or best-effort variant, counting
// rejections into droppedPubAll. Must be called with o.mu held.
func (o *Orchestrator) publishMetricsLocked(buf Buffer, immediate bool) {
	start := time.Now()
	dropped := int64(0)
	for _, sa := range o.sinkAdapters {
		var accepted bool
		if immediate {
			accepted = sa.PutMetricsImmediate(buf, o.period)
		} else {
			accepted = sa.PutMetrics(buf)
		}
		if !accepted {
			dropped++
		}
	}
	o.publishStat.Add(float64(time.Since(start).Microseconds()) / 1000.0)
	if dropped > 0 {
		o.droppedPubAll.Incr(dropped)
	}
}

// selfSourceName is the source name under which the orchestrator
// registers its own self-statistics (spec.md §4.7). handleSource
// refuses to serve this name: its SourceFunc reads o.sourceAdapters/
// o.sinkAdapters/o.sources/o.sinks directly, assuming o.mu is already
// held by the caller, which only holds for the sampling paths
// (sampleMetricsLocked, PublishMetricsNow) - the HTTP management-bean
// path (SourceAdapter.CachedSnapshot) never takes o.mu and would race
// RegisterSource/RegisterSink/Stop mutating those same maps.
const selfSourceName = "orchestrator"

// registerSelfSourceLocked (re-)registers the orchestrator's own
// self-source, emitting NumActiveSources/NumAllSources/NumActiveSinks/
// NumAllSinks, each sink adapter's internal stats, and the self-registry
// (snapshotStat/publishStat/droppedPubAll), per spec.md §4.7.
func (o *Orchestrator) registerSelfSourceLocked() {
	info := Info(selfSourceName, "Metrics orchestrator self-statistics")
	src := SourceFunc(func(c *Collector, all bool) error {
		// Reads o.mu-guarded state without locking: only reachable from
		// sampleMetricsLocked/PublishMetricsNow, which already hold it.
		// handleSource excludes selfSourceName so CachedSnapshot (which
		// does not hold o.mu) can never reach this closure.
		b := c.AddRecord(info)
		o.selfReg.Snapshot(b, all)

		numSourceAdapters := len(o.sourceAdapters)
		numSources := len(o.sources)
		numSinkAdapters := len(o.sinkAdapters)
		numSinks := len(o.sinks)
		sinks := o.sinkAdapters

		b.AddGaugeLong(Info("NumActiveSources", "Number of currently running source adapters"), int64(numSourceAdapters))
		b.AddGaugeLong(Info("NumAllSources", "Number of registered sources, active or not"), int64(numSources))
		b.AddGaugeLong(Info("NumActiveSinks", "Number of currently running sink adapters"), int64(numSinkAdapters))
		b.AddGaugeLong(Info("NumAllSinks", "Number of registered sinks, active or not"), int64(numSinks))

		for name, sa := range sinks {
			b.AddGaugeLong(Info(name+".dropped", "Cumulative buffers dropped by sink "+name), sa.Dropped())
			b.AddGaugeLong(Info(name+".delivered", "Cumulative buffers delivered by sink "+name), sa.Delivered())
			b.AddGaugeLong(Info(name+".qsize", "Current queue depth for sink "+name), int64(sa.QueueSize()))
			b.AddGaugeDouble(Info(name+".latencyMs", "Rolling average delivery latency for sink "+name), sa.latencyStat.Average())
		}
		return nil
	})

	o.replaceSourceRegistrationLocked(sourceRegistration{name: selfSourceName, info: info, src: src})
}

// gcdDurations returns the greatest common divisor of ds, computed on
// the full nanosecond values (fractional-second periods such as 50ms
// are kept as-is, not truncated to whole seconds), falling
// back to defaultPeriod if ds is empty or every entry is non-positive
// (spec.md §4.7: "period = gcd of all configured sink periods, falling
// back to configured or default period if none").
func gcdDurations(ds []time.Duration) time.Duration {
	result := time.Duration(0)
	for _, d := range ds {
		if d <= 0 {
			continue
		}
		if result == 0 {
			result = d
			continue
		}
		result = time.Duration(gcdInt64(int64(result), int64(d)))
	}
	if result <= 0 {
		return defaultPeriod
	}
	return result
}

func gcdInt64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}
