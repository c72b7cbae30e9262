package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/southbear-club/ars-go/loop"
)

func TestLoaderDefaults(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	m, err := l.Unmarshal()
	require.NoError(t, err)

	assert.Equal(t, int64(5000), m.Loop.ConnectTimeoutMs)
	assert.Equal(t, int64(60000), m.Loop.CloseTimeoutMs)
	assert.Equal(t, int64(75000), m.Loop.KeepaliveMs)
	assert.Equal(t, int64(30000), m.Loop.HeartbeatMs)
	assert.True(t, m.Loop.AutoFree)
	assert.Equal(t, 1, m.Pool.Loops)
}

func TestLoaderFileOverride(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	l.Viper().SetConfigType("yaml")
	require.NoError(t, l.Viper().MergeConfig(strings.NewReader(`
loop:
  keepaliveMs: 9000
channel:
  maxConnections: 100
`)))

	m, err := l.Unmarshal()
	require.NoError(t, err)

	assert.Equal(t, int64(9000), m.Loop.KeepaliveMs)
	assert.Equal(t, uint32(100), m.Channel.MaxConnections)
	// unrelated defaults remain untouched by the partial override.
	assert.Equal(t, int64(5000), m.Loop.ConnectTimeoutMs)
}

func TestLoopOptionsRoundTrip(t *testing.T) {
	l, err := NewLoader()
	require.NoError(t, err)

	m, err := l.Unmarshal()
	require.NoError(t, err)

	opt := m.LoopOptions()
	require.NotNil(t, opt)

	var cfg loop.Config
	opt(&cfg)
	assert.Equal(t, m.Loop.RunOnce, cfg.RunOnce)
	assert.Equal(t, m.Loop.AutoFree, cfg.AutoFree)
	assert.Equal(t, m.Loop.QuitWhenNoActiveEvents, cfg.QuitWhenNoActiveEvents)
	assert.Equal(t, m.Loop.ConnectTimeoutMs, cfg.ConnectTimeoutMs)
	assert.Equal(t, m.Loop.CloseTimeoutMs, cfg.CloseTimeoutMs)
	assert.Equal(t, m.Loop.KeepaliveMs, cfg.KeepaliveMs)
	assert.Equal(t, m.Loop.HeartbeatMs, cfg.HeartbeatMs)
}
