package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledProviderUsesGlobalMeter(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{Environment: "Staging"})
	require.NoError(t, err)
	require.False(t, p.Enabled())
	require.NotNil(t, p.Meter("test"))
	require.NoError(t, p.Shutdown(context.Background()))
	require.Equal(t, "staging", Environment())
}

func TestStripScheme(t *testing.T) {
	require.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	require.Equal(t, "collector:4318", stripScheme("collector:4318"))
}

func TestCommandAttributes(t *testing.T) {
	attrs := CommandAttributes("prod", "place", "bid", ResultOK)
	require.Len(t, attrs, 4)
	require.Equal(t, "place", attrs[1].Value.AsString())
	require.Equal(t, AttrChannel, attrs[2].Key)
}
