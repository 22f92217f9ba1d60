package main

import (
	"timeout-exchange-go/internal/database"

	"github.com/spf13/cobra"
)

var resetSchema bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the schema and seeds the configured stocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if resetSchema {
			a.log.Warn("Dropping every table")
			if err := database.Reset(a.db, &a.cfg); err != nil {
				return err
			}
		}
		a.log.Info("Schema is up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&resetSchema, "reset", false, "Drop all tables first, wiping balances and trades")
}
