package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/example/eventhub/internal/config"
	"github.com/example/eventhub/internal/database"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "eventctl",
		Short:        "Eventhub operator tooling",
		Version:      Version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(promoteCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDB loads configuration, connects and migrates, then runs fn.
func withDB(fn func(cfg *config.Config, db *gorm.DB) error) error {
	cfg := config.Load()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)

	return fn(cfg, db)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database if needed and apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, db *gorm.DB) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Migrated %s database\n", cfg.DatabaseDriver)
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an existing user",
		Long: `Mint a bearer token for an existing user.

Examples:
  eventctl token --email ops@example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, db *gorm.DB) error {
				token, err := issueToken(cmd.Context(), db, cfg, email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func promoteCmd() *cobra.Command {
	var email, role string

	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change a user's role",
		Long: `Change a user's role. This is the only way to create admins.

Examples:
  eventctl promote --email ops@example.com --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(cfg *config.Config, db *gorm.DB) error {
				user, err := promoteUser(cmd.Context(), db, email, role)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Email, user.Role)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&role, "role", "r", "", "attendee, vendor, organizer or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")

	return cmd
}
