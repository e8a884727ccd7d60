package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/perfsync/perfsync/internal/db"
	"github.com/perfsync/perfsync/internal/loader"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Remove superseded duplicate report rows",
	Long:  "Partitions the reports table by (page_type, sku, date, account_id) and keeps only the most recently inserted row in each partition. Safe to run repeatedly.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		removed, err := db.DeleteDuplicates(ctx, env.Pool, db.DedupConfig{
			Table:    loader.Table,
			Key:      loader.DedupKey,
			Sequence: "id",
		})
		if err != nil {
			return eris.Wrap(err, "dedup")
		}

		zap.L().Info("dedup pass complete", zap.Int64("rows_removed", removed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}
