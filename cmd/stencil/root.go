package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Schema-driven headless CMS with a dynamic content API",
	Long: `Stencil is a self-hosted headless CMS.

Content schemas are defined at runtime; each schema gets typed fields,
versioned documents, and its own REST routes under /content. An admin
API under /api/v1 manages schemas, fields, documents, users, roles,
and webhooks.

Quick start:
  stencil serve     # Start the server

Management:
  stencil users     # Manage accounts
  stencil validate  # Validate configuration`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "stencil.yaml", "config file path")
}
