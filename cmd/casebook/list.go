// List and filter commands query records of an entity.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var (
	listOrderFlag   string
	filterOrderFlag string
)

var listCmd = &cobra.Command{
	Use:   "list <entity>",
	Short: "List every record of an entity",
	Long: `List returns every record of the entity. Remote-primary entities are
read from the remote store, falling back to the local snapshot when the
remote store is unavailable and the entity allows it.

Example:
  casebook list cases --order -created_at`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		records, err := cb.List(cmd.Context(), args[0], types.OrderBy(listOrderFlag))
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), records)
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <entity> <key=value>...",
	Short: "List records matching every condition",
	Long: `Filter returns the records whose fields match every condition.
A value with commas, or a JSON array, matches any of its elements.

Example:
  casebook filter cases status=active
  casebook filter payments status=pending,failed
  casebook filter cases amount=1500`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := parseFilter(args[1:])
		if err != nil {
			return err
		}

		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		records, err := cb.Filter(cmd.Context(), args[0], filter, types.OrderBy(filterOrderFlag))
		if err != nil {
			return err
		}
		return printRecords(cmd.OutOrStdout(), records)
	},
}

func init() {
	listCmd.Flags().StringVar(&listOrderFlag, "order", "", `sort field; prefix with "-" for descending`)
	filterCmd.Flags().StringVar(&filterOrderFlag, "order", "", `sort field; prefix with "-" for descending`)
}
