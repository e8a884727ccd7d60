package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/accounts"
	"github.com/perfsync/perfsync/internal/pipeline"
)

var (
	syncDateFrom string
	syncDateTo   string
	syncTypes    string
	syncWorkers  int
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull reports for every active account and load them",
	Long:  "Fans the requested date range and report types out over all active accounts with a bounded worker pool, bulk-loads the payloads, then removes superseded duplicate rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		jobs, err := parseJobs(syncDateFrom, syncDateTo, syncTypes)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		dir := accounts.NewPostgresDirectory(env.Pool)
		accs, err := dir.Active(ctx)
		if err != nil {
			return eris.Wrap(err, "resolve active accounts")
		}

		workers := syncWorkers
		if workers == 0 {
			workers = cfg.Sync.Workers
		}

		orch := pipeline.NewOrchestrator(env.Pool, env.Fetch, vendorClient, env.Opts, workers)
		if _, err := orch.Sync(ctx, accs, jobs); err != nil {
			return eris.Wrap(err, "sync")
		}

		zap.L().Info("sync finished")
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncDateFrom, "date-from", "", "report range start (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncDateTo, "date-to", "", "report range end (YYYY-MM-DD)")
	syncCmd.Flags().StringVar(&syncTypes, "types", "TRAFFIC_SOURCES", "comma-separated report types")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "worker pool size (default from config)")
	_ = syncCmd.MarkFlagRequired("date-from")
	_ = syncCmd.MarkFlagRequired("date-to")
	rootCmd.AddCommand(syncCmd)
}
