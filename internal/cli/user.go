package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Account and session commands",
	}

	cmd.AddCommand(newUserRegisterCmd())
	cmd.AddCommand(newUserLoginCmd())
	cmd.AddCommand(newUserRefreshCmd())
	cmd.AddCommand(newUserLogoutCmd())
	cmd.AddCommand(newUserMeCmd())
	cmd.AddCommand(newUserPasswordCmd())
	cmd.AddCommand(newUserRepairCmd())

	return cmd
}

func newUserRegisterCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username": user,
				"password": pass,
			}
			var result User

			if err := client.Post(cmd.Context(), "/api/v1/users/register", req, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserLoginCmd() *cobra.Command {
	var user, pass string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login and save the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"username": user,
				"password": pass,
			}
			var result Tokens

			if err := client.Post(cmd.Context(), "/api/v1/users/login", req, &result); err != nil {
				return err
			}

			// Save tokens
			if err := cfg.SaveTokens(result.AccessToken, result.RefreshToken); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (required)")
	cmd.Flags().StringVar(&pass, "pass", "", "Password (required)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("pass")

	return cmd
}

func newUserRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the saved refresh token for a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := refreshSession(cmd.Context())
			if err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

// refreshSession rotates the saved refresh token and persists the new pair.
// It uses its own client so a rejected refresh never triggers another one.
func refreshSession(ctx context.Context) (Tokens, error) {
	var result Tokens
	if cfg.RefreshToken == "" {
		return result, errors.New("no saved session, run 'user login' first")
	}

	req := map[string]string{"refresh_token": cfg.RefreshToken}
	if err := NewClient(cfg.ServerURL, "").Post(ctx, "/api/v1/users/refresh", req, &result); err != nil {
		return result, err
	}
	if err := cfg.SaveTokens(result.AccessToken, result.RefreshToken); err != nil {
		return result, fmt.Errorf("failed to save token: %w", err)
	}
	return result, nil
}

func newUserLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.RefreshToken != "" {
				req := map[string]string{"refresh_token": cfg.RefreshToken}
				if err := client.Post(cmd.Context(), "/api/v1/users/logout", req, nil); err != nil {
					return err
				}
			}

			if err := cfg.ClearTokens(); err != nil {
				return fmt.Errorf("failed to remove token file: %w", err)
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Logged out")
			return nil
		},
	}
}

func newUserMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show current user and their groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result User

			if err := client.Get(cmd.Context(), "/api/v1/users/me", &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}

func newUserPasswordCmd() *cobra.Command {
	var oldPass, newPass string

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change password",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]string{
				"old_password": oldPass,
				"new_password": newPass,
			}

			if err := client.Put(cmd.Context(), "/api/v1/users/me/password", req, nil); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.PrintMessage("Password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&oldPass, "old", "", "Current password (required)")
	cmd.Flags().StringVar(&newPass, "new", "", "New password (required)")
	_ = cmd.MarkFlagRequired("old")
	_ = cmd.MarkFlagRequired("new")

	return cmd
}

func newUserRepairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Reconcile your group list with the groups you belong to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result RepairResult

			if err := client.Post(cmd.Context(), "/api/v1/users/me/repair", nil, &result); err != nil {
				return err
			}

			out := NewOutput(cfg.Output)
			out.Print(result)
			return nil
		},
	}
}
