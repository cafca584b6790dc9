package metrics

import (
	"math"
	"sync/atomic"
	"time"

	"github.com/kestrel-oss/metricsys/internal/logutil"
)

// SinkAdapter wraps one Sink behind a bounded queue and a dedicated
// consumer worker implementing the retry/backoff state machine from
// spec.md §4.5. It is exclusively owned by the Orchestrator; no other
// component may enqueue onto its queue.
//
// Grounded on the teacher's sink.go (MetricSink/ShutdownSink/FanoutSink,
// and the scheme-keyed sinkRegistry factory pattern) and the
// ticker-inside-goroutine-with-context-cancel idiom shared by
// persisted.go and runtime.go for the worker's lifecycle.
type SinkAdapter struct {
	Name   string
	Period time.Duration
	sink   Sink

	sourceFilter *Filter
	recordFilter *Filter
	metricFilter *Filter

	queue *sinkQueue

	retryDelay   time.Duration
	retryBackoff float64
	retryCount   int

	state   atomic_state
	stopCh  chan struct{}
	doneCh  chan struct{}

	dropped      atomic.Int64
	delivered    atomic.Int64
	latencyStat  *mutableStatHandle
}

// SinkAdapterConfig collects the tunables from spec.md §6 (per-sink
// config subkeys): QueueCapacity (default 1), RetryDelay (default
// 10s), RetryBackoff (default 2.0), RetryCount (default 1), Period
// (default: the orchestrator's global period) feeding the gcd
// computation in spec.md §4.7 ("period = gcd of all configured sink
// periods").
type SinkAdapterConfig struct {
	QueueCapacity int
	RetryDelay    time.Duration
	RetryBackoff  float64
	RetryCount    int
	Period        time.Duration
	SourceFilter  *Filter
	RecordFilter  *Filter
	MetricFilter  *Filter
}

// DefaultSinkAdapterConfig returns the spec.md §6 defaults.
func DefaultSinkAdapterConfig() SinkAdapterConfig {
	return SinkAdapterConfig{
		QueueCapacity: defaultQueueCapacity,
		RetryDelay:    defaultRetryDelay,
		RetryBackoff:  defaultRetryBackoff,
		RetryCount:    defaultRetryCount,
		Period:        defaultPeriod,
	}
}

// NewSinkAdapter wraps sink for orchestration under the given config.
func NewSinkAdapter(name string, sink Sink, cfg SinkAdapterConfig) *SinkAdapter {
	capacity := cfg.QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	backoff := cfg.RetryBackoff
	if backoff < 1.0 {
		backoff = defaultRetryBackoff
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	retryCount := cfg.RetryCount
	if retryCount <= 0 {
		retryCount = defaultRetryCount
	}
	period := cfg.Period
	if period <= 0 {
		period = defaultPeriod
	}

	sa := &SinkAdapter{
		Name:         name,
		Period:       period,
		sink:         sink,
		sourceFilter: cfg.SourceFilter,
		recordFilter: cfg.RecordFilter,
		metricFilter: cfg.MetricFilter,
		queue:        newSinkQueue(capacity),
		retryDelay:   retryDelay,
		retryBackoff: backoff,
		retryCount:   retryCount,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
		latencyStat:  &mutableStatHandle{newMutableStat(Info("sinkLatencyMs", "Delivery latency in milliseconds"), StatOpts{})},
	}
	return sa
}

// Start launches the consumer worker goroutine.
func (sa *SinkAdapter) Start() {
	sa.state.set(adapterStarted)
	go sa.runWorker()
}

// Stop signals the worker to stop, joins it with a bounded wait, and
// closes the underlying sink if it implements Closer (spec.md §5:
// "stragglers are abandoned (logged)").
func (sa *SinkAdapter) Stop(joinTimeout time.Duration) {
	sa.state.set(adapterStopped)
	close(sa.stopCh)
	select {
	case <-sa.doneCh:
	case <-time.After(joinTimeout):
		logutil.Warnf("sink %q: worker did not stop within %s, abandoning", sa.Name, joinTimeout)
	}
	if closer, ok := sa.sink.(Closer); ok {
		if err := closer.Close(); err != nil {
			logutil.Errf("sink %q: close failed: %v", sa.Name, err)
		}
	}
}

// PutMetrics is the non-blocking enqueue (spec.md §4.5). If the queue
// is full, the oldest buffer is discarded (drop-head) to make room and
// dropped is incremented; the return value reports whether this put
// itself avoided a drop.
func (sa *SinkAdapter) PutMetrics(buf Buffer) bool {
	droppedOccurred := sa.queue.offer(buf)
	if droppedOccurred {
		sa.dropped.Add(1)
	}
	return !droppedOccurred
}

// PutMetricsImmediate is the blocking enqueue with a bounded wait, used
// by on-demand publish (spec.md §4.5, §4.7 publishMetricsNow).
func (sa *SinkAdapter) PutMetricsImmediate(buf Buffer, timeout time.Duration) bool {
	accepted := sa.queue.offerBlocking(buf, timeout)
	if !accepted {
		sa.dropped.Add(1)
	}
	return accepted
}

// Dropped returns the cumulative count of buffers this adapter has
// discarded, via queue overflow or retry exhaustion.
func (sa *SinkAdapter) Dropped() int64 { return sa.dropped.Load() }

// QueueSize returns the current number of buffers waiting in the queue.
func (sa *SinkAdapter) QueueSize() int { return sa.queue.len() }

// Delivered returns the cumulative count of buffers successfully
// delivered.
func (sa *SinkAdapter) Delivered() int64 { return sa.delivered.Load() }

// runWorker is the consumer loop: IDLE -> DEQUEUE -> DELIVER -> (ok:
// IDLE) / (fail: BACKOFF n -> DELIVER ... -> DROP: IDLE), per spec.md
// §4.5.
func (sa *SinkAdapter) runWorker() {
	defer close(sa.doneCh)
	for {
		buf, ok := sa.queue.dequeue(sa.stopCh)
		if !ok {
			return
		}
		sa.deliverWithRetry(buf)
	}
}

func (sa *SinkAdapter) deliverWithRetry(buf Buffer) {
	attempt := 0
	for {
		attempt++
		start := time.Now()
		err := sa.deliver(buf)
		sa.latencyStat.Add(float64(time.Since(start).Microseconds()) / 1000.0)

		if err == nil {
			sa.delivered.Add(1)
			return
		}

		if attempt >= sa.retryCount {
			logutil.Warnf("sink %q: dropping buffer after %d attempt(s): %v", sa.Name, attempt, err)
			sa.dropped.Add(1)
			return
		}

		delay := time.Duration(float64(sa.retryDelay) * math.Pow(sa.retryBackoff, float64(attempt-1)))
		select {
		case <-time.After(delay):
			// retry the same buffer
		case <-sa.stopCh:
			// best-effort final attempt, no further retry (spec.md §5)
			if err := sa.deliver(buf); err != nil {
				sa.dropped.Add(1)
			} else {
				sa.delivered.Add(1)
			}
			return
		}
	}
}

// deliver runs one DELIVER step: apply sourceFilter per entry,
// recordFilter+metricFilter per record, invoke Sink.PutMetrics for each
// surviving record, then Sink.Flush once (spec.md §4.5).
func (sa *SinkAdapter) deliver(buf Buffer) error {
	var firstErr error
	for _, entry := range buf.Entries {
		if sa.sourceFilter != nil && !sa.sourceFilter.Accepts(entry.SourceName) {
			continue
		}
		for _, rec := range entry.Records {
			if sa.recordFilter != nil && !sa.recordFilter.AcceptsTags(rec.Tags) {
				continue
			}
			filtered := rec
			if sa.metricFilter != nil {
				filtered.Metrics = filterMetrics(rec.Metrics, sa.metricFilter)
			}
			if err := sa.sink.PutMetrics(filtered); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if err := sa.sink.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func filterMetrics(ms []AbstractMetric, f *Filter) []AbstractMetric {
	out := make([]AbstractMetric, 0, len(ms))
	for _, m := range ms {
		if f.Accepts(m.Info.Name) {
			out = append(out, m)
		}
	}
	return out
}

// sinkQueue is a bounded, drop-head FIFO of Buffer values. It is safe
// for exactly one producer (the orchestrator's single monitor) and one
// consumer (the sink's worker goroutine), matching the ownership model
// in spec.md §3 ("no other component may enqueue outside the
// orchestrator's fan-out").
type sinkQueue struct {
	ch chan Buffer
}

func newSinkQueue(capacity int) *sinkQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &sinkQueue{ch: make(chan Buffer, capacity)}
}

// offer enqueues buf, dropping the oldest queued buffer first if full.
// Returns true if a drop occurred.
func (q *sinkQueue) offer(buf Buffer) (droppedOccurred bool) {
	select {
	case q.ch <- buf:
		return false
	default:
	}
	select {
	case <-q.ch:
		droppedOccurred = true
	default:
	}
	select {
	case q.ch <- buf:
	default:
		// another producer filled the slot we just freed (the consumer only
		// ever removes items, so it cannot cause this); buf is then not
		// enqueued and not counted as dropped.
	}
	return droppedOccurred
}

// offerBlocking enqueues buf, waiting up to timeout for room if full.
// Returns false if the wait expired without enqueuing.
func (q *sinkQueue) offerBlocking(buf Buffer, timeout time.Duration) bool {
	select {
	case q.ch <- buf:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case q.ch <- buf:
		return true
	case <-t.C:
		return false
	}
}

// dequeue blocks until a buffer is available or stop is closed.
func (q *sinkQueue) dequeue(stop <-chan struct{}) (Buffer, bool) {
	select {
	case b := <-q.ch:
		return b, true
	case <-stop:
		return Buffer{}, false
	}
}

func (q *sinkQueue) len() int { return len(q.ch) }
