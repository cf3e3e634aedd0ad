// Entities command lists the catalog.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/pkg/types"
)

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List entity names with their category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		var schemas []types.Schema
		for _, name := range cb.Entities() {
			s, err := cb.Schema(name)
			if err != nil {
				return err
			}
			schemas = append(schemas, s)
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), schemas)
		}
		for _, s := range schemas {
			fallback := ""
			if s.Category == types.CategoryRemotePrimary && s.Fallback {
				fallback = "fallback"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %-15s %s\n", s.Name, s.Category, fallback)
		}
		return nil
	},
}
