package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/creatorpulse/enrich-cli/internal/syncjob"
)

var syncDaemon bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh stale cached profiles for all subjects",
	Long:  "Collects handles from every subject collection, filters them against per-kind staleness windows, and resolves the rest in chunks. With --daemon, runs on the configured daily schedule instead of once.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if syncDaemon {
			sched, err := syncjob.NewDailyScheduler(env.Job, cfg.Sync.Hour, cfg.Sync.Timezone)
			if err != nil {
				return err
			}
			if err := sched.Start(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		}

		stats, err := env.Job.Run(ctx)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDaemon, "daemon", false, "run on the daily schedule instead of once")
	rootCmd.AddCommand(syncCmd)
}
