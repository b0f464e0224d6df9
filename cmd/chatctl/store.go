package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/auth"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/config"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/factory"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/model"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/services"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/store"
	"github.com/de180551chauvuonghoang-svg/SWP-FlyUp/internal/validate"
)

const commandTimeout = 30 * time.Second

func init() {
	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return runMigrate(cmd.Context(), cfg, os.Stdout)
			},
		},
		&cobra.Command{
			Use:   "token USER_ID",
			Short: "Issue a session token for an existing user",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				return runToken(cmd.Context(), cfg, args[0], os.Stdout)
			},
		},
	)

	usersCmd := &cobra.Command{Use: "users", Short: "User operations"}

	var fullName, email, password string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runUserCreate(cmd.Context(), cfg, fullName, email, password, os.Stdout)
		},
	}
	createCmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name (required)")
	createCmd.Flags().StringVarP(&email, "email", "e", "", "Email (required)")
	createCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	_ = createCmd.MarkFlagRequired("name")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(createCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runUserList(cmd.Context(), cfg, os.Stdout)
		},
	}
	usersCmd.AddCommand(listCmd)

	rootCmd.AddCommand(usersCmd)
}

// withStore opens the configured store (ensuring its schema), runs fn and
// closes it again.
func withStore(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, st store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	st, closer, err := factory.NewStore(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	return fn(ctx, st)
}

func runMigrate(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withStore(ctx, cfg, func(context.Context, store.Store) error {
		_, err := fmt.Fprintf(out, "schema up to date (%s)\n", cfg.DBDriver)
		return err
	})
}

func runToken(ctx context.Context, cfg *config.Config, userID string, out io.Writer) error {
	return withStore(ctx, cfg, func(ctx context.Context, st store.Store) error {
		if _, err := st.Users().Get(ctx, userID); err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		token, err := auth.NewTokens(cfg.JWTSecret).Issue(userID)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, token)
		return err
	})
}

func runUserCreate(ctx context.Context, cfg *config.Config, fullName, email, password string, out io.Writer) error {
	email = store.NormalizeEmail(email)
	for _, check := range []error{
		validate.FullName(fullName),
		validate.Email(email),
		validate.Password(password),
	} {
		if check != nil {
			return check
		}
	}
	hash, err := services.HashPassword(password)
	if err != nil {
		return err
	}
	return withStore(ctx, cfg, func(ctx context.Context, st store.Store) error {
		u, err := st.Users().Create(ctx, &model.Identity{FullName: fullName, Email: email}, hash)
		if err != nil {
			return err
		}
		return writeJSON(out, u)
	})
}

func runUserList(ctx context.Context, cfg *config.Config, out io.Writer) error {
	return withStore(ctx, cfg, func(ctx context.Context, st store.Store) error {
		users, err := st.Users().ListExcept(ctx, "")
		if err != nil {
			return err
		}
		if users == nil {
			users = []*model.Identity{}
		}
		return writeJSON(out, users)
	})
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
