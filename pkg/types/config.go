package types

import (
	"errors"
	"time"
)

// Config holds store selection and parameters for casebook.Open.
type Config struct {
	DataDir  string       `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel string       `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	Local    LocalConfig  `json:"local" yaml:"local" mapstructure:"local"`
	Remote   RemoteConfig `json:"remote" yaml:"remote" mapstructure:"remote"`
}

// LocalConfig selects the local record store.
type LocalConfig struct {
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`
}

// RemoteConfig selects the remote store and its connection parameters.
// Only the fields relevant to Driver are read.
type RemoteConfig struct {
	Driver   string        `json:"driver" yaml:"driver" mapstructure:"driver"`
	DSN      string        `json:"dsn" yaml:"dsn" mapstructure:"dsn"`                // postgres
	Table    string        `json:"table" yaml:"table" mapstructure:"table"`          // dynamo
	Region   string        `json:"region" yaml:"region" mapstructure:"region"`       // dynamo
	Endpoint string        `json:"endpoint" yaml:"endpoint" mapstructure:"endpoint"` // dynamo
	Addr     string        `json:"addr" yaml:"addr" mapstructure:"addr"`             // redis
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`
}

// Local store drivers.
const (
	LocalJSONL  = "jsonl"
	LocalSQLite = "sqlite"
	LocalBadger = "badger"
)

// Remote store drivers.
const (
	RemoteMemory   = "memory"
	RemotePostgres = "postgres"
	RemoteDynamo   = "dynamo"
	RemoteRedis    = "redis"
)

// DefaultRemoteTimeout bounds each remote call when Config leaves it unset.
const DefaultRemoteTimeout = 5 * time.Second

// Config validation errors.
var (
	ErrLocalDriverUnknown  = errors.New("unknown local store driver")
	ErrRemoteDriverUnknown = errors.New("unknown remote store driver")
	ErrTimeoutInvalid      = errors.New("remote timeout must be positive")
	ErrLogLevelUnknown     = errors.New("unknown log level")
)

var knownLocalDrivers = map[string]bool{
	LocalJSONL:  true,
	LocalSQLite: true,
	LocalBadger: true,
}

var knownRemoteDrivers = map[string]bool{
	RemoteMemory:   true,
	RemotePostgres: true,
	RemoteDynamo:   true,
	RemoteRedis:    true,
}

var knownLogLevels = map[string]bool{
	"":      true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// WithDefaults returns a copy with unset drivers and timeout filled in.
func (c Config) WithDefaults() Config {
	if c.Local.Driver == "" {
		c.Local.Driver = LocalJSONL
	}
	if c.Remote.Driver == "" {
		c.Remote.Driver = RemoteMemory
	}
	if c.Remote.Timeout == 0 {
		c.Remote.Timeout = DefaultRemoteTimeout
	}
	return c
}

// Validate checks that the Config is well-formed after defaults are
// applied. It returns a sentinel error from this package on failure.
func (c Config) Validate() error {
	c = c.WithDefaults()
	if !knownLocalDrivers[c.Local.Driver] {
		return ErrLocalDriverUnknown
	}
	if !knownRemoteDrivers[c.Remote.Driver] {
		return ErrRemoteDriverUnknown
	}
	if c.Remote.Timeout < 0 {
		return ErrTimeoutInvalid
	}
	if !knownLogLevels[c.LogLevel] {
		return ErrLogLevelUnknown
	}
	return nil
}
