package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/job-radar/internal/config"
	"github.com/jonathan/job-radar/internal/server"
	"github.com/jonathan/job-radar/internal/types"
)

var (
	tokenSubject string
	tokenHours   int
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the mutating API endpoints",
	Long: `Sign a JWT with JWT_SECRET for use as "Authorization: Bearer <token>" on
POST /cycles, POST /config/reload and PATCH /postings/{fingerprint}/flags.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		req := types.TokenRequest{Subject: tokenSubject, Hours: tokenHours}
		if err := req.Validate(); err != nil {
			return fmt.Errorf("invalid token request: %w", err)
		}

		auth, err := config.NewAuthConfig()
		if err != nil {
			return err
		}
		if auth == nil {
			return fmt.Errorf("JWT_SECRET is not set; the API accepts unauthenticated requests")
		}

		token, err := server.NewJWTService(auth).GenerateToken(req.Subject, time.Duration(req.Hours)*time.Hour)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "Subject recorded in the token and request logs")
	tokenCmd.Flags().IntVar(&tokenHours, "hours", 0, "Lifetime in hours (0 uses JWT_EXPIRATION_HOURS)")
	rootCmd.AddCommand(tokenCmd)
}
