package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stencilcms/stencil/adapters/hasher"
	"github.com/stencilcms/stencil/adapters/sqlite"
	"github.com/stencilcms/stencil/config"
	"github.com/stencilcms/stencil/domain/access"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/ports"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage accounts",
	Long: `Manage accounts directly against the database.

These commands bypass the HTTP API, which is useful for first-time
setup and for recovering access when no admin can log in.`,
}

var usersCreateScopes []string
var usersCreateAdmin bool

var usersCreateCmd = &cobra.Command{
	Use:   "create <email> <password>",
	Short: "Create an account",
	Long: `Create an account with the given email and password.

Examples:
  stencil users create admin@example.com 'Sup3rSecret' --admin
  stencil users create writer@example.com 'hunter2!!' --scope internal:document:create --scope internal:document:read`,
	Args: cobra.ExactArgs(2),
	RunE: runUsersCreate,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUsersList,
}

var usersSetPasswordCmd = &cobra.Command{
	Use:   "set-password <email> <password>",
	Short: "Reset an account's password",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersSetPassword,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersSetPasswordCmd)

	usersCreateCmd.Flags().StringArrayVar(&usersCreateScopes, "scope", nil, "grant a scope (repeatable)")
	usersCreateCmd.Flags().BoolVar(&usersCreateAdmin, "admin", false, "grant the full admin scope set")
}

// openUserStore opens the configured sqlite database and returns its
// user store. The caller must Close the database.
func openUserStore() (ports.UserStore, *sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Database.Driver == "memory" {
		return nil, nil, errors.New("user management requires a persistent database")
	}

	db, err := sqlite.Open(cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("error migrating database: %w", err)
	}
	return sqlite.NewUserStore(db), db, nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	email, password := strings.ToLower(strings.TrimSpace(args[0])), args[1]

	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	if _, err := users.GetByEmail(ctx, email); err == nil {
		return fmt.Errorf("account %s already exists", email)
	}

	hash, err := hasher.NewBcrypt(0).Hash(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}

	scopes := usersCreateScopes
	if usersCreateAdmin {
		scopes = append(scopes, access.AdminScopes()...)
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    "Admin",
		PasswordHash: hash,
		Scopes:       scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("error creating account: %w", err)
	}

	fmt.Printf("Created %s (%d scopes)\n", email, len(scopes))
	return nil
}

func runUsersList(cmd *cobra.Command, args []string) error {
	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	page := 1
	total := 0
	printed := 0
	for {
		batch, n, err := users.List(ctx, page, 100)
		if err != nil {
			return fmt.Errorf("error listing accounts: %w", err)
		}
		total = n
		for _, u := range batch {
			fmt.Printf("%-36s  %-30s  %d scopes, %d roles\n", u.ID, u.Email, len(u.Scopes), len(u.Roles))
			printed++
		}
		if len(batch) == 0 || printed >= total {
			break
		}
		page++
	}

	fmt.Printf("%d account(s)\n", total)
	return nil
}

func runUsersSetPassword(cmd *cobra.Command, args []string) error {
	email, password := strings.ToLower(strings.TrimSpace(args[0])), args[1]

	users, db, err := openUserStore()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	u, err := users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("account %s not found", email)
	}

	hash, err := hasher.NewBcrypt(0).Hash(password)
	if err != nil {
		return fmt.Errorf("error hashing password: %w", err)
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now().UTC()

	if err := users.Update(ctx, u); err != nil {
		return fmt.Errorf("error updating account: %w", err)
	}

	fmt.Printf("Password updated for %s\n", email)
	return nil
}
