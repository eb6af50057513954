package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lotline/lotline/internal/leads"
)

func newLeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Lead queue and lead details",
	}

	cmd.AddCommand(newLeadsHotCmd())
	cmd.AddCommand(newLeadsShowCmd())
	return cmd
}

func newLeadsHotCmd() *cobra.Command {
	var (
		configPath string
		limit      int
		minScore   float64
		dealerZip  string
		days       int
	)

	cmd := &cobra.Command{
		Use:   "hot",
		Short: "List the leads worth calling back, hottest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			rows, err := a.eng.HotLeads(leads.HotLeadFilters{
				Limit:     limit,
				MinScore:  minScore,
				DealerZip: dealerZip,
				Days:      days,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No leads above the engaged threshold.")
				return nil
			}
			for _, hl := range rows {
				who := hl.CustomerName
				if who == "" {
					who = hl.ID
				}
				fmt.Fprintf(out, "%-6s %6.1f  %-24s %-10s last active %s (%d events)\n",
					hl.Band, hl.Score, who, hl.Status,
					humanize.Time(hl.LastActivityAt), hl.EventCount)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "maximum leads to list")
	cmd.Flags().Float64Var(&minScore, "min-score", 0, "score floor (defaults to the engaged threshold)")
	cmd.Flags().StringVar(&dealerZip, "zip", "", "only leads whose last-touched vehicle sits at this dealer zip")
	cmd.Flags().IntVar(&days, "days", 0, "only leads active within the last N days (default 30, -1 for all time)")
	return cmd
}

func newLeadsShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <lead-id>",
		Short: "Show one lead's profile and event history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			d, err := a.eng.LeadDetail(args[0])
			if err != nil {
				return err
			}
			if d == nil {
				return fmt.Errorf("lead %s not found", args[0])
			}
			out := cmd.OutOrStdout()

			p := d.Profile
			fmt.Fprintf(out, "%s  [%s, %s]  score %.1f\n", p.ID, p.Status, d.Band, p.Score)
			if p.CustomerName != "" || p.CustomerContact != "" {
				fmt.Fprintf(out, "Customer: %s %s\n", p.CustomerName, p.CustomerContact)
			}
			fmt.Fprintf(out, "First seen %s, last active %s\n",
				humanize.Time(p.FirstSeenAt), humanize.Time(p.LastActivityAt))
			if len(d.RecentSignals) > 0 {
				fmt.Fprintf(out, "Recent signals: %v\n", d.RecentSignals)
			}

			fmt.Fprintf(out, "\nHistory (%d events):\n", len(d.Events))
			for _, ev := range d.Events {
				fmt.Fprintf(out, "  %s  %-20s %-12s +%.1f\n",
					ev.CreatedAt.Format("2006-01-02 15:04"), ev.Action, ev.VehicleID, ev.Contribution)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	return cmd
}
