package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/creatorpulse/enrich-cli/internal/cost"
)

var (
	estimateSource   string
	estimateItems    int
	estimateStartFee bool
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate paid scraper cost for a batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		rates := cost.DefaultRates()
		if cfg.Pricing.RatesFile != "" {
			loaded, err := cost.LoadRates(cfg.Pricing.RatesFile)
			if err != nil {
				return err
			}
			rates = loaded
		}

		est := cost.NewEstimator(rates).Estimate([]cost.Batch{{
			SourceKey:       estimateSource,
			ItemCount:       estimateItems,
			IncludeStartFee: estimateStartFee,
		}})

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(est)
	},
}

func init() {
	estimateCmd.Flags().StringVar(&estimateSource, "source", "apify-instagram-profile", "source key to price")
	estimateCmd.Flags().IntVar(&estimateItems, "items", 0, "number of profiles")
	estimateCmd.Flags().BoolVar(&estimateStartFee, "start-fee", true, "include the per-run start fee")
	rootCmd.AddCommand(estimateCmd)
}
