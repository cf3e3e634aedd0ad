// Stats command prints the collection dashboard.
package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/casebook/internal/dashboard"
)

var statsMonthsFlag int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize placements, collections and projected recovery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cb, err := openCasebook(cmd.Context())
		if err != nil {
			return err
		}
		defer cb.Close()

		s, err := cb.Dashboard(cmd.Context(), dashboard.Options{ProjectMonths: statsMonthsFlag})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), s)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Placed:      %12.2f\n", s.TotalPlaced)
		fmt.Fprintf(out, "Collected:   %12.2f\n", s.TotalCollected)
		fmt.Fprintf(out, "Outstanding: %12.2f\n", s.Outstanding)
		fmt.Fprintf(out, "Rate:        %11.1f%%\n", s.CollectionRate*100)
		fmt.Fprintln(out)
		for _, status := range slices.Sorted(maps.Keys(s.CasesByStatus)) {
			fmt.Fprintf(out, "  %-16s %d\n", status, s.CasesByStatus[status])
		}
		if len(s.Portfolios) > 0 {
			fmt.Fprintln(out, "\nPortfolios:")
			for _, p := range s.Portfolios {
				id := p.PortfolioID
				if id == "" {
					id = "(none)"
				}
				fmt.Fprintf(out, "  %-38s %5d %12.2f %12.2f\n", id, p.Cases, p.Placed, p.Collected)
			}
		}
		if len(s.Projection) > 0 {
			fmt.Fprintln(out, "\nProjection:")
			for _, m := range s.Projection {
				fmt.Fprintf(out, "  %s %12.2f\n", m.Month, m.Amount)
			}
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().IntVar(&statsMonthsFlag, "months", 6, "months of projected recovery")
}
