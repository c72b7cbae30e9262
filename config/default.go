package config

// defaultConfig is the embedded baseline configuration, merged into viper
// before any file/env source so every key resolves even on an empty config
// file. Mirrors nabbar-golib/config's component DefaultConfig() pattern of
// shipping a literal JSON/YAML document alongside the struct it binds to.
var defaultConfig = []byte(`
loop:
  runOnce: false
  autoFree: true
  quitWhenNoActiveEvents: false
  connectTimeoutMs: 5000
  closeTimeoutMs: 60000
  keepaliveMs: 75000
  heartbeatMs: 30000

channel:
  maxConnections: 0
  reconnectEnabled: false
  reconnectMinDelayMs: 1000
  reconnectMaxDelayMs: 30000
  reconnectExponential: true
  reconnectMaxRetries: 0

pool:
  loops: 1
`)

// SetDefaultConfig overrides the embedded baseline, for callers that ship
// their own defaults document instead of this package's.
func SetDefaultConfig(cfg []byte) { defaultConfig = cfg }

// DefaultConfig returns the embedded baseline configuration document.
func DefaultConfig() []byte { return defaultConfig }
