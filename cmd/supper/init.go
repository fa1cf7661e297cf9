package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caat/supper/internal/config"
	"github.com/spf13/cobra"
)

var force bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a template config file",
	Long: `Writes a config file with placeholders for the Azure AD application,
the out-of-office mailbox and the staff list. Edit it before the first run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgFile); err == nil && !force {
			return fmt.Errorf("%s already exists, use --force to overwrite", cfgFile)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}

		if err := templateConfig().Save(cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote config template to %s\n", cfgFile)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}

func templateConfig() *config.Config {
	return &config.Config{
		ClientID:     "00000000-0000-0000-0000-000000000000",
		ClientSecret: "change-me",
		TenantID:     "00000000-0000-0000-0000-000000000000",
		OOOEmail:     "outofoffice@example.org",
		Users:        []string{"alice", "bob"},
	}
}
