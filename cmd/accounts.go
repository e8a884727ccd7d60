package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/perfsync/perfsync/internal/accounts"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List the active accounts a sync would process",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

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

		for _, acc := range accs {
			fmt.Printf("%d\t%s\n", acc.ID, acc.ClientID)
		}
		fmt.Printf("%d active account(s)\n", len(accs))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)
}
