package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSubConfigScopedLookup(t *testing.T) {
	raw := RawConfig{
		"app.sink.file.class":         "recording",
		"app.sink.file.queue.capacity": "5",
		"app.source.db.period":        "2.5",
	}
	cfg := NewSubConfig(raw, "app")

	sinkCfg := cfg.Sub("sink").Sub("file")
	require.Equal(t, "recording", sinkCfg.GetString("class", ""))
	require.Equal(t, 5, sinkCfg.GetInt("queue.capacity", 1))

	require.Equal(t, 2500*time.Millisecond, cfg.Sub("source").Sub("db").GetDurationSeconds("period", defaultPeriod))
}

func TestSubConfigChildNamesDiscoversSiblings(t *testing.T) {
	raw := RawConfig{
		"app.sink.file.class":    "recording",
		"app.sink.console.class": "recording",
		"app.source.db.period":   "1",
	}
	cfg := NewSubConfig(raw, "app")
	names := cfg.Sub("sink").ChildNames()
	require.ElementsMatch(t, []string{"file", "console"}, names)
}

func TestSubConfigDefaultsOnMissingOrUnparsable(t *testing.T) {
	raw := RawConfig{"app.retry.count": "not-a-number"}
	cfg := NewSubConfig(raw, "app")
	require.Equal(t, 3, cfg.GetInt("retry.count", 3))
	require.Equal(t, 7, cfg.GetInt("missing", 7))
}

func TestParseInitModeCaseInsensitive(t *testing.T) {
	require.Equal(t, ModeStandby, ParseInitMode("standby"))
	require.Equal(t, ModeStandby, ParseInitMode(" STANDBY "))
	require.Equal(t, ModeNormal, ParseInitMode("normal"))
	require.Equal(t, ModeNormal, ParseInitMode(""))
}

func TestGetDurationMillis(t *testing.T) {
	raw := RawConfig{"app.retry.delay": "250"}
	cfg := NewSubConfig(raw, "app")
	require.Equal(t, 250*time.Millisecond, cfg.GetDurationMillis("retry.delay", defaultRetryDelay))
}
