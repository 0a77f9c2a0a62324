package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stencilcms/stencil/bootstrap"
	"github.com/stencilcms/stencil/config"
)

var (
	hotReload bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the content server",
	Long: `Start the Stencil server.

The server will:
  - Load configuration from stencil.yaml (or --config)
  - Or load configuration from STENCIL_* environment variables
  - Open the database and run migrations
  - Bootstrap the admin account on first run
  - Serve the admin API under /api/v1 and content under /content

Environment variables (for Docker deployments):
  STENCIL_AUTH_JWT_SECRET   - Token signing secret (required)
  STENCIL_DATABASE_DSN      - Database path (default: stencil.db)
  STENCIL_SERVER_PORT       - Server port (default: 8080)
  STENCIL_ADMIN_EMAIL       - Admin email for first-run bootstrap
  STENCIL_ADMIN_PASSWORD    - Admin password for first-run bootstrap
  STENCIL_LOG_LEVEL         - Log level: debug, info, warn, error

Examples:
  stencil serve
  stencil serve --config /etc/stencil/config.yaml
  stencil serve --hot-reload=false

  # Docker (env vars only):
  STENCIL_AUTH_JWT_SECRET=change-me stencil serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	hasEnvConfig := config.HasEnvConfig()

	// No configuration at all
	if !hasConfigFile && !hasEnvConfig {
		fmt.Println("No configuration found.")
		fmt.Println()
		fmt.Printf("Option 1: Create %s with at least auth.jwt_secret set\n", cfgFile)
		fmt.Println("Option 2: Set STENCIL_AUTH_JWT_SECRET environment variable")
		fmt.Println()
		fmt.Println("Example (env vars):")
		fmt.Println("  STENCIL_AUTH_JWT_SECRET=change-me stencil serve")
		return nil
	}

	var app *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with a config file
		app, err = bootstrap.NewWithHotReload(cfgFile)
	} else {
		cfg, loadErr := config.LoadWithFallback(cfgFile)
		if loadErr != nil {
			return fmt.Errorf("error loading config: %w", loadErr)
		}

		if !hasConfigFile {
			fmt.Println("Running with environment variables (no config file)")
		}

		app, err = bootstrap.NewFromConfig(cfg)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
