package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stencilcms/stencil/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Validate the configuration file and print a summary.

Examples:
  stencil validate
  stencil validate --config /etc/stencil/config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("Configuration valid")
	fmt.Printf("  Server:   %s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("  Database: %s (%s)\n", cfg.Database.Driver, cfg.Database.DSN)
	fmt.Printf("  Email:    %s\n", cfg.Email.Provider)
	fmt.Printf("  Metrics:  %t\n", cfg.Metrics.Enabled)
	if cfg.Admin.Email != "" {
		fmt.Printf("  Admin:    %s\n", cfg.Admin.Email)
	}
	return nil
}
