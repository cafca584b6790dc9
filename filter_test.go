package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNilFilterAcceptsEverything(t *testing.T) {
	var f *Filter
	require.True(t, f.Accepts("anything"))
	require.True(t, f.AcceptsTags([]*Tag{{Info: Info("a", "a"), Value: "1"}}))
}

func TestFilterIncludeExcludePrecedence(t *testing.T) {
	f := NewFilter([]string{"jvm.gc"}, []string{"jvm"}, false)
	require.True(t, f.Accepts("jvm.gc.pause"))
	require.False(t, f.Accepts("jvm.heap"))
	require.False(t, f.Accepts("other"))
}

func TestFilterIdenticalPrefixInBothListsBlocks(t *testing.T) {
	f := NewFilter([]string{"jvm.gc"}, []string{"jvm.gc"}, true)
	require.False(t, f.Accepts("jvm.gc.pause"))
}

func TestFilterDefaultAllowWithNoMatch(t *testing.T) {
	f := NewFilter(nil, nil, true)
	require.True(t, f.Accepts("anything.at.all"))
}

func TestAcceptAllFilter(t *testing.T) {
	require.True(t, AcceptAll.Accepts("x"))
}

func TestFilterAcceptsTagsCanonicalization(t *testing.T) {
	// AcceptsTags sorts tags by name before joining, so the match is
	// against the leading "Context=prod" segment regardless of the
	// original tag order passed in.
	f := NewFilter([]string{"Context=prod"}, nil, false)
	tags := []*Tag{
		{Info: Info("Hostname", "h"), Value: "host-b"},
		{Info: Info("Context", "c"), Value: "prod"},
	}
	require.True(t, f.AcceptsTags(tags))
}
