// Delete command removes a record.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <entity> <id>",
	Short: "Delete a record",
	Long:  `Delete removes the record. Deleting a missing id succeeds.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		if err := cb.Delete(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		if !flagJSON {
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[1])
		}
		return nil
	},
}
