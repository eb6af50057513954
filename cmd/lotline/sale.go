package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lotline/lotline/internal/sales"
)

func newSaleCmd() *cobra.Command {
	var (
		configPath string
		leadID     string
		price      float64
		source     string
		archive    bool
	)

	cmd := &cobra.Command{
		Use:   "sale <vehicle-id>",
		Short: "Record a closed sale for a vehicle",
		Long: `Record a closed sale. The vehicle stays visible as "sold" (or is
archived from every view with --archive) and, when a lead id is given,
that lead is marked won with a closing event on its history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(configPath)
			if err != nil {
				return err
			}
			req := sales.Request{
				VehicleID:      args[0],
				LeadID:         leadID,
				SourceChannel:  source,
				ArchiveVehicle: archive,
			}
			if cmd.Flags().Changed("price") {
				req.SoldPrice = &price
			}
			res, err := a.rec.RecordSale(req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			s := res.Sale
			fmt.Fprintf(out, "Recorded sale %s: %s for $%s (listed $%s)\n",
				s.ID, s.VehicleID,
				humanize.CommafWithDigits(s.SoldPrice, 2),
				humanize.CommafWithDigits(s.ListedPrice, 2))
			if res.LeadStatus != nil {
				fmt.Fprintf(out, "Lead %s marked %s\n", leadID, *res.LeadStatus)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Lotline config file")
	cmd.Flags().StringVar(&leadID, "lead", "", "lead profile to credit with the sale")
	cmd.Flags().Float64Var(&price, "price", 0, "sold price (defaults to the listed price)")
	cmd.Flags().StringVar(&source, "source", "", "source channel for the closing event")
	cmd.Flags().BoolVar(&archive, "archive", false, "archive the vehicle from every view instead of keeping it visible as sold")
	return cmd
}
