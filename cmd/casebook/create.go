// Create and bulk-create commands.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <entity> (<json> | <key=value>...)",
	Short: "Create a record",
	Long: `Create assigns an id and timestamps and stores the record according to
the entity's category. Fields are given as one JSON object or as key=value
pairs whose values are parsed as JSON when possible.

Example:
  casebook create cases debtor_name="Jane Doe" amount=1500 status=new
  casebook create vendors '{"name":"Acme","vendor_type":"agency"}'`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(args[1:])
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		rec, err := cb.Create(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rec.ID)
		return nil
	},
}

var bulkCreateCmd = &cobra.Command{
	Use:   "bulk-create <entity> <file.json|->",
	Short: "Create records from a JSON array in one remote batch",
	Long: `Bulk-create reads a JSON array of field objects and stores them in the
remote store as one batch. Either every record is created or none is.
Post-create hooks do not run.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := readFieldsFile(args[1])
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		created, err := cb.BulkCreate(cmd.Context(), args[0], items)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), created)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d %s\n", len(created), args[0])
		return nil
	},
}
