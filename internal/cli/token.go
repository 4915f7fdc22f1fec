package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"quizhub-service/internal/auth"
	"quizhub-service/internal/config"
)

// NewTokenCmd signs a bearer token with the configured secret. It is meant
// for local development where no identity provider is running.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret not configured")
			}
			token, err := auth.NewJWTVerifier(cfg.Auth.Secret, cfg.Auth.Issuer).Issue(subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
