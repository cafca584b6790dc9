package prometheus

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	metrics "github.com/kestrel-oss/metricsys"
)

func TestFlattenKeySanitizesForbiddenChars(t *testing.T) {
	key, _ := flattenKey("jvm.heap-used", nil)
	require.Equal(t, "jvm_heap_used", key)
}

func buildRecord(t *testing.T, fill func(b *metrics.RecordBuilder)) metrics.Record {
	t.Helper()
	c := metrics.NewCollector(nil, nil)
	b := c.AddRecordByName("app")
	fill(b)
	records := c.GetRecords()
	require.Len(t, records, 1)
	return records[0]
}

func TestPutMetricsRegistersGaugeAndCounter(t *testing.T) {
	s := New()
	require.NoError(t, s.Configure(metrics.NewSubConfig(metrics.RawConfig{}, "")))

	rec := buildRecord(t, func(b *metrics.RecordBuilder) {
		b.AddGaugeLong(metrics.Info("poolSize", "pool size"), 5)
		b.AddCounterLong(metrics.Info("requests", "requests"), 3)
	})

	require.NoError(t, s.PutMetrics(rec))

	families, err := s.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)

	kinds := map[string]dto.MetricType{}
	for _, f := range families {
		kinds[f.GetName()] = f.GetType()
	}
	require.Equal(t, dto.MetricType_GAUGE, kinds["poolSize"])
	require.Equal(t, dto.MetricType_COUNTER, kinds["requests"])
}

func TestPutMetricsSanitizesDottedNames(t *testing.T) {
	s := New()
	require.NoError(t, s.Configure(metrics.NewSubConfig(metrics.RawConfig{}, "")))

	rec := buildRecord(t, func(b *metrics.RecordBuilder) {
		b.AddGaugeDouble(metrics.Info("jvm.heap.used", "heap"), 1.5)
	})
	require.NoError(t, s.PutMetrics(rec))

	families, err := s.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, "jvm_heap_used", families[0].GetName())
}
