// Root command for the casebook CLI.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/internal/paths"
	"github.com/mesh-intelligence/casebook/pkg/casebook"
	"github.com/mesh-intelligence/casebook/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
)

// Set by PersistentPreRunE so all subcommands can use them.
var (
	configDir string
	appConfig types.Config
	logger    = slog.Default()

	// metricsListen is the serve-metrics listen address.
	metricsListen string
)

var rootCmd = &cobra.Command{
	Use:           "casebook",
	Short:         "Casebook is a collection back office with a local-first record store",
	Version:       casebook.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := paths.ResolveConfigDir(flagConfigDir)
		if err != nil {
			return err
		}
		configDir = dir

		v, err := loadConfig(configDir)
		if err != nil {
			return err
		}
		cfg, err := decodeConfig(v)
		if err != nil {
			return err
		}
		cfg.DataDir, err = paths.ResolveDataDir(flagDataDir, cfg.DataDir)
		if err != nil {
			return err
		}
		appConfig = cfg
		metricsListen = v.GetString(cfgKeyMetricsAddr)

		logger = newLogger(cfg.LogLevel)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/casebook)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.casebook-data)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(bulkCreateCmd)
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(addUserCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
