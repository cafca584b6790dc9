package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kestrel-oss/metricsys/sinks/recording"
)

type countingSource struct {
	Registry *Registry
	Requests Counter `metric:"requests,counter-long"`
}

func newCountingSource(t *testing.T) *countingSource {
	s := &countingSource{}
	_, _, err := BuildSource(s)
	require.NoError(t, err)
	return s
}

func TestOrchestratorBasicCounterRoundTrip(t *testing.T) {
	o := NewOrchestrator("test")
	rec := recording.New()

	src := newCountingSource(t)
	_, err := o.RegisterSource("counting", "counting source", src)
	require.NoError(t, err)
	_, err = o.RegisterSink("recorder", rec)
	require.NoError(t, err)

	require.NoError(t, o.Start())
	defer o.Stop()

	src.Requests.Incr(7)
	o.PublishMetricsNow()
	// delivery happens on the sink's worker goroutine; Flush marks the
	// end of the buffer.
	require.Eventually(t, func() bool { return rec.Flushes() > 0 }, time.Second, 5*time.Millisecond)

	records := rec.Records()
	require.NotEmpty(t, records)

	found := false
	for _, r := range records {
		if m, ok := r.Metric("requests"); ok {
			require.Equal(t, int64(7), m.LongValue())
			found = true
		}
	}
	require.True(t, found)
}

func TestOrchestratorPublishDropsUnderQueuePressure(t *testing.T) {
	o := NewOrchestrator("test")
	blocking := &blockingSink{block: make(chan struct{})}
	_, err := o.RegisterSink("blocker", blocking)
	require.NoError(t, err)
	// A short period keeps PutMetricsImmediate's bounded wait (o.period)
	// from stalling this test for the 10s default.
	require.NoError(t, o.Init(RawConfig{"test.period": "0.05"}))
	defer func() {
		close(blocking.block)
		o.Stop()
	}()

	// first publish is consumed by the worker and blocks it; the queue
	// (capacity 1) fills on the second, and the third has nowhere to go.
	o.PublishMetricsNow()
	o.PublishMetricsNow()
	o.PublishMetricsNow()

	require.Eventually(t, func() bool {
		return o.droppedPubAll.Value() > 0
	}, time.Second, 5*time.Millisecond)
}

type blockingSink struct {
	block chan struct{}
}

func (b *blockingSink) Configure(cfg SubConfig) error { return nil }
func (b *blockingSink) PutMetrics(r Record) error     { <-b.block; return nil }
func (b *blockingSink) Flush() error                  { return nil }

func TestOrchestratorSourceFilterApplies(t *testing.T) {
	o := NewOrchestrator("test")
	rec := recording.New()
	o.sourceFilter = NewFilter(nil, []string{"excluded"}, true)

	included := newCountingSource(t)
	_, err := o.RegisterSource("included", "included", included)
	require.NoError(t, err)

	excludedSrc := newCountingSource(t)
	_, err = o.RegisterSource("excluded", "excluded", excludedSrc)
	require.NoError(t, err)

	_, err = o.RegisterSink("recorder", rec)
	require.NoError(t, err)
	require.NoError(t, o.Start())
	defer o.Stop()

	included.Requests.Incr(1)
	excludedSrc.Requests.Incr(99)
	o.PublishMetricsNow()
	require.Eventually(t, func() bool { return rec.Flushes() > 0 }, time.Second, 5*time.Millisecond)

	// sourceFilter applies to the registration name ("excluded"/"included"),
	// not to the emitted record's own Info.Name (both sources share the
	// same declaratively-bound type and so the same record name); the
	// excluded source's distinctive counter value is what the filter
	// keeps out of delivered records.
	for _, r := range rec.Records() {
		if m, ok := r.Metric("requests"); ok {
			require.NotEqual(t, int64(99), m.LongValue())
		}
	}
}

func TestOrchestratorRestartPreservesRegistrations(t *testing.T) {
	o := NewOrchestrator("test")
	rec := recording.New()
	src := newCountingSource(t)

	_, err := o.RegisterSource("counting", "counting", src)
	require.NoError(t, err)
	_, err = o.RegisterSink("recorder", rec)
	require.NoError(t, err)

	require.NoError(t, o.Start())
	o.Stop()
	require.Equal(t, StateStopped, o.State())

	require.NoError(t, o.Start())
	defer o.Stop()
	require.Equal(t, StateMonitoring, o.State())

	src.Requests.Incr(3)
	o.PublishMetricsNow()
	require.Eventually(t, func() bool { return rec.Flushes() > 0 }, time.Second, 5*time.Millisecond)

	found := false
	for _, r := range rec.Records() {
		if m, ok := r.Metric("requests"); ok {
			require.Equal(t, int64(3), m.LongValue())
			found = true
		}
	}
	require.True(t, found)
}

func TestOrchestratorShutdownRefcounting(t *testing.T) {
	o := NewOrchestrator("test")
	require.NoError(t, o.Init(RawConfig{}))
	require.NoError(t, o.Init(RawConfig{}))
	require.Equal(t, StateMonitoring, o.State())

	require.False(t, o.Shutdown())
	require.Equal(t, StateMonitoring, o.State())
	require.True(t, o.Shutdown())
	require.Equal(t, StateStopped, o.State())
}

func TestOrchestratorInitStandbyModeStaysConfigured(t *testing.T) {
	o := NewOrchestrator("test")
	old := getInitModeEnv
	getInitModeEnv = func() string { return "STANDBY" }
	defer func() { getInitModeEnv = old }()

	require.NoError(t, o.Init(RawConfig{}))
	require.Equal(t, StateConfigured, o.State())
}

func TestOrchestratorSelfSourceDoesNotDeadlock(t *testing.T) {
	o := NewOrchestrator("test")
	rec := recording.New()
	_, err := o.RegisterSink("recorder", rec)
	require.NoError(t, err)
	require.NoError(t, o.Start())
	defer o.Stop()

	done := make(chan struct{})
	go func() {
		o.PublishMetricsNow()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PublishMetricsNow deadlocked sampling the self-source")
	}
	require.Eventually(t, func() bool { return rec.Flushes() > 0 }, time.Second, 5*time.Millisecond)

	names := map[string]bool{}
	for _, r := range rec.Records() {
		names[r.Info.Name] = true
	}
	require.True(t, names["orchestrator"])
}
