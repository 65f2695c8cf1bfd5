package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/server"
	"github.com/dittrime/stride/internal/tokenstore"
	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect the stored credential",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the stored credential's status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Read()
			if err != nil {
				return fmt.Errorf("failed to read config: %w", err)
			}

			tokens, closeTokens, err := server.NewTokenStore(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to open token store: %w", err)
			}
			defer closeTokens()

			cred, err := tokens.Load(cmd.Context())
			if errors.Is(err, tokenstore.ErrNoCredential) {
				fmt.Println("No credential stored. Run `stride auth` to authorize.")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to load credential: %w", err)
			}

			status := "valid"
			if time.Now().After(cred.Expiry) {
				status = "expired (will refresh on next use)"
			}

			fmt.Printf("Athlete:  %d\n", cred.AthleteID)
			fmt.Printf("Expiry:   %s (%s)\n", cred.Expiry.Format(time.RFC3339), status)
			fmt.Printf("Access:   %s…\n", prefix(cred.AccessToken, 8))
			fmt.Printf("Refresh:  %s…\n", prefix(cred.RefreshToken, 8))
			return nil
		},
	})

	return cmd
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
