package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoInternsEqualPairsToSamePointer(t *testing.T) {
	a := Info("dup", "a duplicate")
	b := Info("dup", "a duplicate")
	require.Same(t, a, b)
}

func TestInfoDistinctDescriptionsDoNotShare(t *testing.T) {
	a := Info("same-name", "first")
	b := Info("same-name", "second")
	require.NotSame(t, a, b)
}

func TestInfoOrNameDefaultsDescriptionToName(t *testing.T) {
	info := InfoOrName("x", "")
	require.Equal(t, "x", info.Name)
	require.Equal(t, "x", info.Description)
}

func TestNewTagInternsByInfoAndValue(t *testing.T) {
	info := Info("Host", "host")
	a := NewTag(info, "box1")
	b := NewTag(info, "box1")
	require.Same(t, a, b)

	c := NewTag(info, "box2")
	require.NotSame(t, a, c)
}
