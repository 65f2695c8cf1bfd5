package main

import (
	"fmt"

	"github.com/dittrime/stride/internal/config"
	"github.com/dittrime/stride/internal/oauth"
	"github.com/dittrime/stride/internal/server"
	"github.com/spf13/cobra"
)

func authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize with Strava via the browser",
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

			auth := oauth.NewAuthenticator(oauth.NewConfig(cfg.Strava), tokens)
			flow, err := oauth.NewFlow(auth)
			if err != nil {
				return err
			}

			cred, err := flow.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Printf("Authorized athlete %d, token valid until %s\n",
				cred.AthleteID, cred.Expiry.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}
