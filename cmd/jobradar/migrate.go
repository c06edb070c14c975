package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/db"
)

var migratePrint bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if migratePrint {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), db.Schema())
			return err
		}
		a, err := loadApp(cmd.ErrOrStderr(), false)
		if err != nil {
			return err
		}
		store, err := a.openStore(cmd.Context())
		if err != nil {
			return err
		}
		store.Close()
		a.logger.Info("database schema is up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "Print the schema SQL instead of applying it")
	rootCmd.AddCommand(migrateCmd)
}
