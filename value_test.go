package metrics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAbstractMetricFloat64Widening(t *testing.T) {
	info := Info("x", "x")
	require.Equal(t, float64(7), newCounterIntMetric(info, 7).Float64())
	require.Equal(t, float64(7), newCounterLongMetric(info, 7).Float64())
	require.Equal(t, float64(7), newGaugeIntMetric(info, 7).Float64())
	require.Equal(t, float64(7), newGaugeLongMetric(info, 7).Float64())
	require.InDelta(t, 7.5, newGaugeFloatMetric(info, 7.5).Float64(), 0.0001)
	require.Equal(t, 7.5, newGaugeDoubleMetric(info, 7.5).Float64())

	stat := newStatMetric(info, StatSample{Count: 2, Sum: 10})
	require.Equal(t, 5.0, stat.Float64())
}

func TestAbstractMetricMarshalJSON(t *testing.T) {
	info := Info("latencyMs", "latency")
	m := newGaugeDoubleMetric(info, 42.5)

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "latencyMs", decoded["name"])
	require.Equal(t, "gauge-double", decoded["kind"])
	require.Equal(t, 42.5, decoded["value"])
	require.NotContains(t, decoded, "count")
}

func TestAbstractMetricMarshalJSONStat(t *testing.T) {
	info := Info("reqTime", "req time")
	m := newStatMetric(info, StatSample{Count: 4, Sum: 20, Min: 1, Max: 9})

	raw, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, "stat", decoded["kind"])
	require.Equal(t, 5.0, decoded["value"])
	require.Equal(t, 4.0, decoded["count"])
	require.Equal(t, 1.0, decoded["min"])
	require.Equal(t, 9.0, decoded["max"])
}

func TestStatSampleAvgZeroCount(t *testing.T) {
	var s StatSample
	require.Equal(t, 0.0, s.Avg())
}
