package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/creatorpulse/enrich-cli/internal/model"
	"github.com/creatorpulse/enrich-cli/internal/resolve"
)

var (
	resolveScope     string
	resolveSubjectID string
	resolvePlatform  string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <username>",
	Short: "Resolve one username through the tier chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Resolver.Resolve(ctx, resolve.Request{
			Username:  args[0],
			Scope:     model.OwnerScope(resolveScope),
			SubjectID: resolveSubjectID,
			Platform:  model.Platform(resolvePlatform),
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	resolveCmd.Flags().StringVar(&resolveScope, "scope", "external", "owner scope (creator|company|external)")
	resolveCmd.Flags().StringVar(&resolveSubjectID, "subject", "", "subject id for avatar reuse and snapshot write-back")
	resolveCmd.Flags().StringVar(&resolvePlatform, "platform", "instagram", "platform (instagram|tiktok|youtube)")
	rootCmd.AddCommand(resolveCmd)
}
