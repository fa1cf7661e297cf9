package main

import (
	"fmt"

	"github.com/caat/supper/internal/config"
	"github.com/caat/supper/internal/sync"
	"github.com/spf13/cobra"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored Microsoft 365 token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		a, err := sync.NewAuthenticator(cfg)
		if err != nil {
			return err
		}
		if err := a.Logout(); err != nil {
			return fmt.Errorf("clear token store: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed stored token %s\n", cfg.TokenPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
