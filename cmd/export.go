package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/cost"
	"github.com/creatorpulse/enrich-cli/internal/model"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the profile cache to an xlsx workbook",
	Long:  "Writes every cached profile row, including provenance and fetch time, into a spreadsheet for cost and data audits.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ListProfiles(ctx)
		if err != nil {
			return err
		}

		rates := cost.DefaultRates()
		if cfg.Pricing.RatesFile != "" {
			if rates, err = cost.LoadRates(cfg.Pricing.RatesFile); err != nil {
				return err
			}
		}

		if err := writeWorkbook(exportOut, recs, rates); err != nil {
			return err
		}
		zap.L().Info("export complete",
			zap.String("path", exportOut),
			zap.Int("profiles", len(recs)),
		)
		return nil
	},
}

func writeWorkbook(path string, recs []*model.ProfileRecord, rates cost.Rates) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Profiles")
	if err != nil {
		return eris.Wrap(err, "add sheet")
	}

	header := sheet.AddRow()
	for _, col := range []string{
		"Username", "Scope", "Subject ID", "Platform", "Source",
		"Followers", "Following", "Posts", "Full Name", "Bio",
		"Picture Path", "Verified", "Private", "Score", "Last Fetched",
		"Assumed Cost USD",
	} {
		header.AddCell().Value = col
	}

	for _, rec := range recs {
		row := sheet.AddRow()
		row.AddCell().Value = rec.Username
		row.AddCell().Value = string(rec.Scope)
		row.AddCell().Value = rec.OwnerID
		row.AddCell().Value = string(rec.Platform)
		row.AddCell().Value = string(rec.Source)
		addOptionalInt(row, rec.Followers)
		addOptionalInt(row, rec.Following)
		addOptionalInt(row, rec.PostsCount)
		addOptionalString(row, rec.FullName)
		addOptionalString(row, rec.Bio)
		addOptionalString(row, rec.ProfilePicStoragePath)
		row.AddCell().SetBool(rec.IsVerified)
		row.AddCell().SetBool(rec.IsPrivate)
		row.AddCell().SetInt(rec.EnrichmentScore())
		row.AddCell().Value = rec.LastFetchedAt.UTC().Format("2006-01-02 15:04:05")
		row.AddCell().SetFloat(assumedCost(rec, rates))
	}

	return eris.Wrapf(file.Save(path), "save workbook %s", path)
}

// assumedCost prices what the row's last write is estimated to have cost:
// the paid tier's per-item rate for its platform, zero for free sources.
func assumedCost(rec *model.ProfileRecord, rates cost.Rates) float64 {
	if rec.Source != model.SourcePaidScraper {
		return 0
	}
	rate, ok := rates[fmt.Sprintf("apify-%s-profile", rec.Platform)]
	if !ok {
		return 0
	}
	return rate.PerItem
}

func addOptionalInt(row *xlsx.Row, v *int64) {
	cell := row.AddCell()
	if v != nil {
		cell.SetInt64(*v)
	}
}

func addOptionalString(row *xlsx.Row, v *string) {
	cell := row.AddCell()
	if v != nil {
		cell.Value = *v
	}
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "profiles.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
