package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mcoot/geoduel/internal/config"
	"github.com/mcoot/geoduel/internal/factory"
)

func newAccountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Account management commands",
		Long: `Account management commands.

These talk to the account store directly, using the same GEODUEL_*
environment (and .env file) as the server.`,
	}

	cmd.AddCommand(newAccountCreateCmd())

	return cmd
}

func newAccountCreateCmd() *cobra.Command {
	var noSave bool

	cmd := &cobra.Command{
		Use:   "create <username>",
		Short: "Create an account and save its secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			serverCfg, err := config.Load(".env")
			if err != nil {
				return err
			}

			level := slog.LevelWarn
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			appCfg, err := factory.ConfigFrom(serverCfg, logger)
			if err != nil {
				return err
			}
			app, err := factory.New(appCfg)
			if err != nil {
				return err
			}
			defer func() { _ = app.Close() }()

			account, err := app.AuthService.CreateAccount(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to create account: %w", err)
			}

			if !noSave {
				if err := cfg.SaveToken(account.Secret); err != nil {
					return fmt.Errorf("failed to save token: %w", err)
				}
			}

			NewOutput(cfg.Output).Print(AccountResult{
				ID:       string(account.ID),
				Username: account.Username,
				Secret:   account.Secret,
				Rating:   account.Rating,
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSave, "no-save", false, "Print the secret without saving it to the token file")

	return cmd
}
