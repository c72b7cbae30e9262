package loop

// Option configures a Loop at construction time (spec §6).
type Option func(*Config)

// WithRunOnce makes Run perform exactly one dispatch iteration and
// return, instead of looping until Stop is called.
func WithRunOnce(v bool) Option {
	return func(c *Config) { c.RunOnce = v }
}

// WithAutoFree releases the loop's watcher fd automatically when Run
// returns.
func WithAutoFree(v bool) Option {
	return func(c *Config) { c.AutoFree = v }
}

// WithQuitWhenNoActiveEvents stops the loop once no user-registered
// event (idle, timer, or I/O handle) remains active.
func WithQuitWhenNoActiveEvents(v bool) Option {
	return func(c *Config) { c.QuitWhenNoActiveEvents = v }
}

// WithConnectTimeout overrides the default connect-timeout (spec §6,
// default 5000ms) applied to handles that don't set their own.
func WithConnectTimeout(ms int64) Option {
	return func(c *Config) { c.ConnectTimeoutMs = ms }
}

// WithCloseTimeout overrides the default close-timeout (default
// 60000ms) given to a write queue to drain before a forced close.
func WithCloseTimeout(ms int64) Option {
	return func(c *Config) { c.CloseTimeoutMs = ms }
}

// WithKeepalive overrides the default keepalive interval (default
// 75000ms) after which an idle connection is closed with ErrTimeout.
func WithKeepalive(ms int64) Option {
	return func(c *Config) { c.KeepaliveMs = ms }
}

// WithHeartbeat sets Config.HeartbeatMs (default 30000ms). Handle
// heartbeats take their interval only from SetHeartbeat or
// SetHeartbeatCallback; the loop does not apply this value to them.
func WithHeartbeat(ms int64) Option {
	return func(c *Config) { c.HeartbeatMs = ms }
}

// WithConfig replaces the loop's configuration wholesale, e.g. with one
// produced by the config package's viper-backed loader.
func WithConfig(cfg Config) Option {
	return func(c *Config) { *c = cfg }
}

// WithLogger installs a structured logger (e.g. a *StumpyLogger) in
// place of the default no-op logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) { c.Logger = logger }
}
