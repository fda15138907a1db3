// Command hubctl runs maintenance tasks against the OurPaintHUB database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"ourpainthub/internal/auth"
	"ourpainthub/internal/config"
	"ourpainthub/internal/domain"
	"ourpainthub/internal/service"
	"ourpainthub/internal/store/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dsn string
	root := &cobra.Command{
		Use:           "hubctl",
		Short:         "OurPaintHUB maintenance commands",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dsn, "dsn", "", "postgres DSN (defaults to APP_DB_DSN)")

	open := func(ctx context.Context) (*pgxpool.Pool, error) {
		if dsn == "" {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			dsn = cfg.DBDSN
		}
		if dsn == "" {
			return nil, errors.New("no database: pass --dsn or set APP_DB_DSN")
		}
		return postgres.Open(ctx, dsn)
	}

	root.AddCommand(newMigrateCmd(open), newCreateAdminCmd(open), newSetAdminCmd(open))
	return root
}

type openFunc func(ctx context.Context) (*pgxpool.Pool, error)

func logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}

func newMigrateCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			return postgres.Migrate(cmd.Context(), pool, logger())
		},
	}
}

func newCreateAdminCmd(open openFunc) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "create-admin EMAIL",
		Short: "Create an admin account, or promote an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("HUBCTL_ADMIN_PASSWORD")
			}
			pool, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			u, err := service.EnsureAdmin(cmd.Context(), postgres.NewUsersStore(pool), logger(), args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tadmin\n", u.ID, u.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password for a new account (or HUBCTL_ADMIN_PASSWORD)")
	return cmd
}

func newSetAdminCmd(open openFunc) *cobra.Command {
	var revoke bool
	cmd := &cobra.Command{
		Use:   "set-admin EMAIL",
		Short: "Grant or revoke the admin flag of an existing account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			users := postgres.NewUsersStore(pool)
			existing, err := users.GetUserByEmail(cmd.Context(), auth.NormalizeEmail(args[0]))
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no account for %s", args[0])
			}
			if err != nil {
				return err
			}
			u, err := users.SetAdmin(cmd.Context(), existing.ID, !revoke)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tadmin=%t\n", u.ID, u.Email, u.IsAdmin)
			return nil
		},
	}
	cmd.Flags().BoolVar(&revoke, "revoke", false, "remove the admin flag instead of granting it")
	return cmd
}
