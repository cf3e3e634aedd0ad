// Get command retrieves a record by id.
package main

import (
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <entity> <id>",
	Short: "Get a record by id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		rec, err := cb.Get(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printRecord(cmd.OutOrStdout(), rec)
	},
}
