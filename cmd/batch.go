package main

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
)

var (
	batchFile     string
	batchScope    string
	batchPlatform string
)

var batchCmd = &cobra.Command{
	Use:   "batch [username...]",
	Short: "Resolve many usernames with a single paid run",
	Long:  "Reads usernames from arguments or --file (one per line), partitions them by cache freshness, tries the free tiers concurrently, and sends the remainder to the paid scraper in one batched call.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		usernames := append([]string{}, args...)
		if batchFile != "" {
			fromFile, err := readUsernames(batchFile)
			if err != nil {
				return err
			}
			usernames = append(usernames, fromFile...)
		}
		if len(usernames) == 0 {
			return eris.New("no usernames given; pass arguments or --file")
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		reqs := make([]resolve.Request, len(usernames))
		for i, u := range usernames {
			reqs[i] = resolve.Request{
				Username: u,
				Scope:    model.OwnerScope(batchScope),
				Platform: model.Platform(batchPlatform),
			}
		}

		outcomes, err := env.Resolver.ResolveBatch(ctx, reqs)
		if err != nil {
			zap.L().Warn("batch finished with a failed paid run", zap.Error(err))
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	},
}

func readUsernames(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			out = append(out, line)
		}
	}
	return out, eris.Wrap(scanner.Err(), "read usernames")
}

func init() {
	batchCmd.Flags().StringVar(&batchFile, "file", "", "file with one username per line")
	batchCmd.Flags().StringVar(&batchScope, "scope", "external", "owner scope for all usernames")
	batchCmd.Flags().StringVar(&batchPlatform, "platform", "instagram", "platform for all usernames")
	rootCmd.AddCommand(batchCmd)
}
