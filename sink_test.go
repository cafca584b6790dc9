package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConfigurableSink struct {
	configured bool
	cfg        SubConfig
}

func (f *fakeConfigurableSink) Configure(cfg SubConfig) error {
	f.configured = true
	f.cfg = cfg
	return nil
}
func (f *fakeConfigurableSink) PutMetrics(r Record) error { return nil }
func (f *fakeConfigurableSink) Flush() error              { return nil }

func TestRegisterSinkFactoryAndNewSinkFromConfig(t *testing.T) {
	RegisterSinkFactory("fake-sink-test", func(cfg SubConfig) (Sink, error) {
		return &fakeConfigurableSink{}, nil
	})

	sink, err := NewSinkFromConfig(NewSubConfig(RawConfig{"class": "fake-sink-test"}, ""))
	require.NoError(t, err)

	fake, ok := sink.(*fakeConfigurableSink)
	require.True(t, ok)
	require.True(t, fake.configured)
}

func TestNewSinkFromConfigUnknownClass(t *testing.T) {
	_, err := NewSinkFromConfig(NewSubConfig(RawConfig{"class": "does-not-exist"}, ""))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnknownSinkClass))
}
