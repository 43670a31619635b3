/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/cropscan/apiserver/config"
	"github.com/cropscan/apiserver/internal/handlers"
	"github.com/spf13/cobra"
)

var (
	tokenTTL     time.Duration
	tokenSubject string
)

// tokenCmd mints admin tokens for DELETE /api/scans.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin JWT signed with ADMIN_JWT_SECRET",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.Auth.AdminJWTSecret == "" {
			return errors.New("ADMIN_JWT_SECRET is not set")
		}

		token, err := handlers.IssueAdminToken(cfg.Auth.AdminJWTSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "subject claim recorded in clear logs")
}
