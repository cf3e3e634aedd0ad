// Update command merges fields into a record.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update <entity> <id> (<json> | <key=value>...)",
	Short: "Update record fields",
	Long: `Update merges the given fields into the record and sets updated_at.
Fields not named are left unchanged.

Example:
  casebook update cases 0190c8a2-... status=active assigned_to=u-7`,
	Args: cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(args[2:])
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		rec, err := cb.Update(cmd.Context(), args[0], args[1], fields)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", rec.ID)
		return nil
	},
}
