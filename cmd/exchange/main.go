package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   "exchange",
		Short: "Virtual stock exchange for the timeout economy",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./configs", "Directory containing config.yml")

	rootCmd.AddCommand(serveCmd, migrateCmd, marketCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing exchange CLI: %s\n", err)
		os.Exit(1)
	}
}
