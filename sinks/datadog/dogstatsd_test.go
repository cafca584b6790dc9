package datadog

import (
	"testing"

	"github.com/stretchr/testify/require"

	metrics "github.com/kestrel-oss/metricsys"
)

func TestSanitizeKeyReplacesColonsAndSpaces(t *testing.T) {
	require.Equal(t, "a_b_c", sanitizeKey("a:b c"))
}

func TestTagStringsFormatsNameValuePairs(t *testing.T) {
	tags := []*metrics.Tag{
		{Info: metrics.Info("host", "host"), Value: "box1"},
		{Info: metrics.Info("flag", "flag"), Value: ""},
	}
	out := tagStrings(tags)
	require.Equal(t, []string{"host:box1", "flag"}, out)
}

func TestNewDialsWithoutError(t *testing.T) {
	// UDP is connectionless: New should succeed even with no agent
	// listening at addr.
	sink, err := New("127.0.0.1:18125")
	require.NoError(t, err)
	require.NoError(t, sink.Close())
}
