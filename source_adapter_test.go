package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSourceAdapterGetMetricsMergesTagsInOrder(t *testing.T) {
	src := SourceFunc(func(c *Collector, all bool) error {
		c.AddRecordByName("rec").Tag(Info("own", "own"), "v")
		return nil
	})
	sa := NewSourceAdapter("s", "s", src, time.Second, 0)

	c := NewCollector(nil, nil)
	injected := []*Tag{NewTag(Info("Hostname", "h"), "box1")}
	records := sa.GetMetrics(c, true, "prod", injected)

	require.Len(t, records, 1)
	names := make([]string, len(records[0].Tags))
	for i, tag := range records[0].Tags {
		names[i] = tag.Info.Name
	}
	require.Equal(t, []string{"Context", "Hostname", "own"}, names)
}

func TestSourceAdapterGetMetricsSwallowsPanic(t *testing.T) {
	src := SourceFunc(func(c *Collector, all bool) error {
		panic("boom")
	})
	sa := NewSourceAdapter("s", "s", src, time.Second, 0)

	c := NewCollector(nil, nil)
	require.NotPanics(t, func() {
		records := sa.GetMetrics(c, true, "", nil)
		require.Nil(t, records)
	})
}

func TestSourceAdapterGetMetricsSwallowsError(t *testing.T) {
	src := SourceFunc(func(c *Collector, all bool) error {
		return errors.New("source exploded")
	})
	sa := NewSourceAdapter("s", "s", src, time.Second, 0)

	c := NewCollector(nil, nil)
	records := sa.GetMetrics(c, true, "", nil)
	require.Nil(t, records)
}

func TestSourceAdapterCachedSnapshotRespectsTTL(t *testing.T) {
	calls := 0
	src := SourceFunc(func(c *Collector, all bool) error {
		calls++
		c.AddRecordByName("rec")
		return nil
	})
	sa := NewSourceAdapter("s", "s", src, time.Second, time.Hour)

	first := sa.CachedSnapshot("", nil)
	second := sa.CachedSnapshot("", nil)

	require.Equal(t, 1, calls)
	require.Equal(t, first, second)
}

func TestSourceAdapterStateLifecycle(t *testing.T) {
	src := SourceFunc(func(c *Collector, all bool) error { return nil })
	sa := NewSourceAdapter("s", "s", src, time.Second, 0)

	require.Equal(t, adapterNew, sa.State())
	sa.Start()
	require.Equal(t, adapterStarted, sa.State())
	sa.Stop()
	require.Equal(t, adapterStopped, sa.State())
}
