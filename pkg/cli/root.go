package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// Execute runs the command tree. version is injected at build time.
func Execute(version string) {
	rootCmd := &cobra.Command{
		Use:           "legacymigrate",
		Short:         "Legacy clinical record migration and parity verification engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().String("config", "config.yaml", "path to the configuration file")

	rootCmd.AddCommand(importCmd(version))
	rootCmd.AddCommand(verifyCmd(version))
	rootCmd.AddCommand(backfillCmd(version))
	rootCmd.AddCommand(mappingsCmd(version))
	rootCmd.AddCommand(migrateCmd(version))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
