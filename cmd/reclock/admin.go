package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/obelixia/reclock/internal/auth"
	"github.com/obelixia/reclock/internal/config"
	"github.com/obelixia/reclock/internal/store"
)

func tokenCmd() *cobra.Command {
	var (
		tenantID string
		secret   string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a JWT for a tenant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("--secret or RECLOCK_JWT_SECRET is required")
			}
			token, err := auth.NewJWTManager(secret).GenerateToken(tenantID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the token grants access to")
	cmd.Flags().StringVar(&secret, "secret", envOr("RECLOCK_JWT_SECRET", ""), "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime, 0 for no expiry")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

// apiKeyCmd provisions keys directly in the configured database, so it runs
// next to the server rather than against its API.
func apiKeyCmd() *cobra.Command {
	var (
		tenantID    string
		description string
	)
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Create an API key in the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.DB.Driver == config.DriverMemory {
				return fmt.Errorf("api keys cannot be provisioned for the memory driver")
			}

			ctx := cmd.Context()
			s, err := store.Open(ctx, cfg.DB)
			if err != nil {
				return err
			}
			defer s.Close()

			key, err := auth.GenerateKey()
			if err != nil {
				return err
			}
			if err := s.APIKeys.Add(ctx, tenantID, auth.HashKey(key), description); err != nil {
				return fmt.Errorf("store api key: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant the key grants access to")
	cmd.Flags().StringVar(&description, "description", "", "note stored with the key")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}
