package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the inventory snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	return cmd
}

func runStats(cmd *cobra.Command, configPath string) error {
	a, err := buildApp(configPath)
	if err != nil {
		return err
	}
	st, err := a.inv.Stats(a.geo)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Inventory: %s active, %s sold, %s past TTL\n",
		humanize.Comma(st.TotalActive), humanize.Comma(st.TotalSold), humanize.Comma(st.TotalExpired))
	if st.PriceRange.Max > 0 {
		fmt.Fprintf(out, "Prices: $%s – $%s (avg $%s)\n",
			humanize.CommafWithDigits(st.PriceRange.Min, 0),
			humanize.CommafWithDigits(st.PriceRange.Max, 0),
			humanize.CommafWithDigits(st.PriceRange.Avg, 0))
	}
	fmt.Fprintf(out, "Price tiers: %d under $20k, %d $20k-$40k, %d over $40k\n",
		st.PriceDistribution.Under20K, st.PriceDistribution.From20To40K, st.PriceDistribution.Over40K)

	fmt.Fprintln(out, "\nBy make:")
	printCounts(out, st.ByMake)
	if len(st.ByMetro) > 0 {
		fmt.Fprintln(out, "\nBy metro:")
		printCounts(out, st.ByMetro)
	}

	fmt.Fprintf(out, "\nLeads: %s events across %s profiles\n",
		humanize.Comma(st.TotalLeadEvents), humanize.Comma(st.TotalLeadProfiles))
	fmt.Fprintf(out, "Freshness: %d verified in 24h, %d in 7d, %d stale\n",
		st.Freshness.VerifiedWithin24h, st.Freshness.VerifiedWithin7d, st.Freshness.StaleOver7d)
	return nil
}

// printCounts renders a label:count map sorted by count, largest first.
func printCounts(out io.Writer, counts map[string]int64) {
	type row struct {
		label string
		n     int64
	}
	rows := make([]row, 0, len(counts))
	for label, n := range counts {
		rows = append(rows, row{label, n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].n != rows[j].n {
			return rows[i].n > rows[j].n
		}
		return rows[i].label < rows[j].label
	})
	for _, r := range rows {
		fmt.Fprintf(out, "  %-24s %d\n", r.label, r.n)
	}
}
