// chatme-cli bundles operational tooling: seeding demo data and load
// testing a running server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatme-cli",
		Short: "Operational tooling for the chatme server",
	}
	rootCmd.AddCommand(newSeedCmd())
	rootCmd.AddCommand(newLoadTestCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
