// Package paths resolves where casebook keeps its configuration and its
// local data. Each location follows a precedence chain of command-line
// flag, then configuration or environment, then a default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// AppName names the per-user directories.
const AppName = "casebook"

// Directory and file names.
const (
	DefaultDataDirName = ".casebook-data"
	ConfigFileName     = "config.yaml"
	OverridesFileName  = "entities.yaml"
)

// Environment variables that override directory locations.
const (
	EnvConfigDir = "CASEBOOK_CONFIG_DIR"
	EnvDataDir   = "CASEBOOK_DATA_DIR"
)

// platformDir holds platform lookups so tests can replace them.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the per-user configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/casebook (fallback ~/.config/casebook)
// macOS:   ~/Library/Application Support/casebook
// Windows: %APPDATA%/casebook
func DefaultConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DefaultDataDir returns the per-user data directory.
//
// Linux:   $XDG_DATA_HOME/casebook (fallback ~/.local/share/casebook)
// macOS and Windows: same as DefaultConfigDir.
func DefaultDataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, homeRel string) (string, error) {
	if runtime.GOOS != "linux" {
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, AppName), nil
	}
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, homeRel, AppName), nil
}

// ResolveConfigDir returns flag if set, else $CASEBOOK_CONFIG_DIR, else
// DefaultConfigDir.
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the first set of flag, the config file's
// data_dir and $CASEBOOK_DATA_DIR. With none set it falls back to
// DefaultDataDirName under the working directory, so each checkout gets
// its own local snapshot.
func ResolveDataDir(flag, configValue string) (string, error) {
	for _, dir := range []string{flag, configValue, os.Getenv(EnvDataDir)} {
		if dir != "" {
			return filepath.Abs(dir)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ConfigFile returns the path of config.yaml in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName)
}

// OverridesFile returns the path of the entity overrides file in configDir.
func OverridesFile(configDir string) string {
	return filepath.Join(configDir, OverridesFileName)
}
