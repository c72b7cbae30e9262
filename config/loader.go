package config

import (
	"bytes"
	"io"
	"strings"

	spfvpr "github.com/spf13/viper"

	"github.com/southbear-club/ars-go/loop"
)

// EnvPrefix is the prefix viper requires on environment variables, e.g.
// ARS_LOOP_KEEPALIVEMS overrides loop.keepaliveMs.
const EnvPrefix = "ARS"

// Loader loads a Model from a config file plus environment overrides via
// viper, grounded on nabbar-golib/config's viper-backed component
// configuration: defaults are merged in before any file/env source is
// read, so every key always resolves to something.
type Loader struct {
	vpr *spfvpr.Viper
}

// NewLoader constructs a Loader with the embedded defaults pre-merged.
func NewLoader() (*Loader, error) {
	v := spfvpr.New()
	v.SetConfigType("yaml")
	if err := v.MergeConfig(bytes.NewReader(DefaultConfig())); err != nil {
		return nil, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{vpr: v}, nil
}

// LoadFile merges path's contents over the current configuration (file
// values win over defaults, env still wins over both at Unmarshal time).
func (l *Loader) LoadFile(path string) error {
	l.vpr.SetConfigFile(path)
	return l.vpr.MergeInConfig()
}

// LoadReader merges r's contents (format given by typ, e.g. "yaml",
// "json") over the current configuration.
func (l *Loader) LoadReader(r io.Reader, typ string) error {
	l.vpr.SetConfigType(typ)
	return l.vpr.MergeConfig(r)
}

// Viper exposes the underlying *viper.Viper, e.g. for BindPFlag wiring
// against a cobra command in the host application.
func (l *Loader) Viper() *spfvpr.Viper { return l.vpr }

// Unmarshal decodes the merged configuration into a Model.
func (l *Loader) Unmarshal() (Model, error) {
	var m Model
	if err := l.vpr.Unmarshal(&m); err != nil {
		return Model{}, err
	}
	return m, nil
}

// LoopOptions converts m.Loop into a loop.Option suitable for loop.New,
// via loop.WithConfig so every field transfers in one step.
func (m Model) LoopOptions() loop.Option {
	return loop.WithConfig(loop.Config{
		RunOnce:                m.Loop.RunOnce,
		AutoFree:               m.Loop.AutoFree,
		QuitWhenNoActiveEvents: m.Loop.QuitWhenNoActiveEvents,
		ConnectTimeoutMs:       m.Loop.ConnectTimeoutMs,
		CloseTimeoutMs:         m.Loop.CloseTimeoutMs,
		KeepaliveMs:            m.Loop.KeepaliveMs,
		HeartbeatMs:            m.Loop.HeartbeatMs,
	})
}
