// Config loading for the casebook CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/mesh-intelligence/casebook/internal/paths"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	envPrefix      = "CASEBOOK"

	cfgKeyDataDir        = "data_dir"
	cfgKeyLogLevel       = "log_level"
	cfgKeyLocalDriver    = "local.driver"
	cfgKeyRemoteDriver   = "remote.driver"
	cfgKeyRemoteDSN      = "remote.dsn"
	cfgKeyRemoteTable    = "remote.table"
	cfgKeyRemoteRegion   = "remote.region"
	cfgKeyRemoteEndpoint = "remote.endpoint"
	cfgKeyRemoteAddr     = "remote.addr"
	cfgKeyRemoteTimeout  = "remote.timeout"
	cfgKeyMetricsAddr    = "metrics_addr"
	cfgKeySessionToken   = "token"

	defaultMetricsAddr = "127.0.0.1:9464"
	sessionFileName    = "session.yaml"
)

// envKeyReplacer maps nested keys to variable names: remote.dsn is read
// from CASEBOOK_REMOTE_DSN.
var envKeyReplacer = strings.NewReplacer(".", "_")

// defaultConfigYAML is written to config.yaml on first run.
const defaultConfigYAML = `# Casebook CLI configuration

# Local snapshot store: jsonl, sqlite or badger
local:
  driver: jsonl

# Remote store: memory, postgres, dynamo or redis
remote:
  driver: memory
  timeout: 5s
  # dsn: postgres://localhost/casebook?sslmode=disable
  # table: casebook
  # region: us-east-1
  # endpoint: http://localhost:8000
  # addr: localhost:6379

# Data directory (optional; overridable by --data-dir flag)
# data_dir:

log_level: warn
metrics_addr: 127.0.0.1:9464
`

// loadConfig reads config.yaml from configDir using Viper. It creates the
// directory and a default config.yaml on first run. Environment variables
// prefixed CASEBOOK_ override file values.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := ensureConfigDir(configDir); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyLocalDriver, types.LocalJSONL)
	v.SetDefault(cfgKeyRemoteDriver, types.RemoteMemory)
	v.SetDefault(cfgKeyRemoteTimeout, types.DefaultRemoteTimeout)
	v.SetDefault(cfgKeyLogLevel, "warn")
	v.SetDefault(cfgKeyMetricsAddr, defaultMetricsAddr)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(envKeyReplacer)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// decodeConfig builds a types.Config from the loaded keys and validates it.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	cfg := types.Config{
		DataDir:  v.GetString(cfgKeyDataDir),
		LogLevel: v.GetString(cfgKeyLogLevel),
		Local:    types.LocalConfig{Driver: v.GetString(cfgKeyLocalDriver)},
		Remote: types.RemoteConfig{
			Driver:   v.GetString(cfgKeyRemoteDriver),
			DSN:      v.GetString(cfgKeyRemoteDSN),
			Table:    v.GetString(cfgKeyRemoteTable),
			Region:   v.GetString(cfgKeyRemoteRegion),
			Endpoint: v.GetString(cfgKeyRemoteEndpoint),
			Addr:     v.GetString(cfgKeyRemoteAddr),
			Timeout:  v.GetDuration(cfgKeyRemoteTimeout),
		},
	}
	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("config %s: %w", v.ConfigFileUsed(), err)
	}
	return cfg, nil
}

// loadSessionToken returns the token saved by login, or "" when no
// session is recorded.
func loadSessionToken(configDir string) (string, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, sessionFileName))
	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read session: %w", err)
	}
	return v.GetString(cfgKeySessionToken), nil
}

// saveSessionToken records the token of the logged-in session. An empty
// token clears it.
func saveSessionToken(configDir, token string) error {
	v := viper.New()
	v.SetConfigFile(filepath.Join(configDir, sessionFileName))
	v.Set(cfgKeySessionToken, token)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return os.Chmod(filepath.Join(configDir, sessionFileName), 0o600)
}

func ensureConfigDir(configDir string) error {
	return os.MkdirAll(configDir, 0o755)
}

// ensureDefaultConfigFile creates a default config.yaml if none exists.
func ensureDefaultConfigFile(configDir string) error {
	path := paths.ConfigFile(configDir)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}
