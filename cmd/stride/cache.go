package main

import (
	"fmt"

	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/server"
	"github.com/spf13/cobra"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Drop every cached response",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read()
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			store, closeCache, err := server.NewCacheStore(cfg)
			if err != nil {
				return fmt.Errorf("failed to open cache: %w", err)
			}
			defer closeCache()

			if err := store.InvalidateAll(cmd.Context()); err != nil {
				return fmt.Errorf("failed to purge cache: %w", err)
			}

			fmt.Println("Cache purged.")
			return nil
		},
	})

	return cmd
}
