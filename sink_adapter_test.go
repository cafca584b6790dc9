package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// flakySink fails its first N PutMetrics calls, then succeeds.
type flakySink struct {
	mu       sync.Mutex
	failN    int
	seen     int
	records  []Record
	flushes  int
}

func (s *flakySink) Configure(cfg SubConfig) error { return nil }

func (s *flakySink) PutMetrics(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen++
	if s.seen <= s.failN {
		return errors.New("transient failure")
	}
	s.records = append(s.records, r)
	return nil
}

func (s *flakySink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	return nil
}

func (s *flakySink) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func testBuffer() Buffer {
	bb := NewBufferBuilder(1)
	bb.Append("src", []Record{{Info: Info("rec", "rec")}})
	return bb.Build()
}

func TestSinkAdapterQueueFullDropsOldest(t *testing.T) {
	sink := &flakySink{}
	sa := NewSinkAdapter("test", sink, SinkAdapterConfig{QueueCapacity: 1})
	// never started: queue fills without a consumer draining it.
	require.True(t, sa.PutMetrics(testBuffer()))
	require.False(t, sa.PutMetrics(testBuffer()))
	require.Equal(t, int64(1), sa.Dropped())
}

func TestSinkAdapterDeliversAfterRetrySucceeds(t *testing.T) {
	sink := &flakySink{failN: 2}
	sa := NewSinkAdapter("test", sink, SinkAdapterConfig{
		QueueCapacity: 4,
		RetryDelay:    time.Millisecond,
		RetryBackoff:  1.0,
		RetryCount:    5,
	})
	sa.Start()
	defer sa.Stop(time.Second)

	require.True(t, sa.PutMetrics(testBuffer()))
	require.Eventually(t, func() bool { return sink.recordCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int64(1), sa.Delivered())
	require.Equal(t, int64(0), sa.Dropped())
}

func TestSinkAdapterDropsAfterRetryExhaustion(t *testing.T) {
	sink := &flakySink{failN: 100}
	sa := NewSinkAdapter("test", sink, SinkAdapterConfig{
		QueueCapacity: 4,
		RetryDelay:    time.Millisecond,
		RetryBackoff:  1.0,
		RetryCount:    2,
	})
	sa.Start()
	defer sa.Stop(time.Second)

	require.True(t, sa.PutMetrics(testBuffer()))
	require.Eventually(t, func() bool { return sa.Dropped() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, int64(0), sa.Delivered())
}

func TestSinkAdapterPutMetricsImmediateTimesOut(t *testing.T) {
	sink := &flakySink{}
	sa := NewSinkAdapter("test", sink, SinkAdapterConfig{QueueCapacity: 1})
	require.True(t, sa.PutMetrics(testBuffer()))
	accepted := sa.PutMetricsImmediate(testBuffer(), 10*time.Millisecond)
	require.False(t, accepted)
	require.Equal(t, int64(1), sa.Dropped())
}

func TestSinkAdapterStopClosesCloser(t *testing.T) {
	cs := &closingSink{}
	sa := NewSinkAdapter("test", cs, SinkAdapterConfig{QueueCapacity: 1})
	sa.Start()
	sa.Stop(time.Second)
	require.True(t, cs.closed)
}

type closingSink struct {
	closed bool
}

func (c *closingSink) Configure(cfg SubConfig) error { return nil }
func (c *closingSink) PutMetrics(r Record) error     { return nil }
func (c *closingSink) Flush() error                  { return nil }
func (c *closingSink) Close() error                  { c.closed = true; return nil }
