package main

import (
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stride",
		Short:         "Personal Strava analytics",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(
		serveCmd(),
		authCmd(),
		cacheCmd(),
		tokenCmd(),
	)

	return cmd
}
