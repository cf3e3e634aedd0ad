// Version command for the casebook CLI.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/pkg/casebook"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the casebook version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "casebook", casebook.Version)
	},
}
