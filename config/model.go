package config

import "time"

// LoopModel mirrors loop.Config's fields for viper binding; kept distinct
// from loop.Config so the config package never imports loop's internals
// beyond the public Option constructors it feeds.
type LoopModel struct {
	RunOnce                bool  `mapstructure:"runOnce"`
	AutoFree               bool  `mapstructure:"autoFree"`
	QuitWhenNoActiveEvents bool  `mapstructure:"quitWhenNoActiveEvents"`
	ConnectTimeoutMs       int64 `mapstructure:"connectTimeoutMs"`
	CloseTimeoutMs         int64 `mapstructure:"closeTimeoutMs"`
	KeepaliveMs            int64 `mapstructure:"keepaliveMs"`
	HeartbeatMs            int64 `mapstructure:"heartbeatMs"`
}

// ChannelModel carries the façade-level settings the distilled spec leaves
// as per-deployment knobs: connection ceiling and reconnect backoff
// (spec §4.F: "min_delay, max_delay, delay_policy: fixed or exponential").
type ChannelModel struct {
	MaxConnections      uint32 `mapstructure:"maxConnections"`
	ReconnectEnabled    bool   `mapstructure:"reconnectEnabled"`
	ReconnectMinDelayMs int64  `mapstructure:"reconnectMinDelayMs"`
	ReconnectMaxDelayMs int64  `mapstructure:"reconnectMaxDelayMs"`
	ReconnectExponential bool  `mapstructure:"reconnectExponential"`
	ReconnectMaxRetries int    `mapstructure:"reconnectMaxRetries"`
}

// PoolModel sizes a channel.LoopThreadPool.
type PoolModel struct {
	Loops int `mapstructure:"loops"`
}

// Model is the root document bound from viper: one key per subsystem,
// following nabbar-golib/config's component-keyed layout without the
// full Component/lifecycle machinery that framework builds on top of it.
type Model struct {
	Loop    LoopModel    `mapstructure:"loop"`
	Channel ChannelModel `mapstructure:"channel"`
	Pool    PoolModel    `mapstructure:"pool"`
}

// ReconnectMinDelay and ReconnectMaxDelay return the channel reconnect
// backoff bounds as time.Duration.
func (c ChannelModel) ReconnectMinDelay() time.Duration {
	return time.Duration(c.ReconnectMinDelayMs) * time.Millisecond
}

func (c ChannelModel) ReconnectMaxDelay() time.Duration {
	return time.Duration(c.ReconnectMaxDelayMs) * time.Millisecond
}
