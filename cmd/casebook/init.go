// Init command for the casebook CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize casebook storage",
	Long: `Init creates the configuration directory with a default config.yaml
and opens the configured stores, creating the local data directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Casebook initialized successfully")
		fmt.Fprintln(out, "  config:", configDir)
		fmt.Fprintln(out, "  data:  ", appConfig.DataDir)
		fmt.Fprintln(out, "  local: ", appConfig.Local.Driver)
		fmt.Fprintln(out, "  remote:", appConfig.WithDefaults().Remote.Driver)
		return nil
	},
}
