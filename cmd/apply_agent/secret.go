package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/secrets"
)

func newSecretCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage form passwords in the OS keyring",
		Long: `Form passwords are never stored in configuration, drafts or the database. They are read at
fill time from the environment variable named by password_env, then from the OS keyring.`,
	}
	cmd.AddCommand(newSecretSetCmd(root), newSecretDeleteCmd(root))
	return cmd
}

func newSecretSetCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "set [name]",
		Short: "Store a secret read from standard input",
		Long:  "Reads the first line of standard input and stores it under name (default: password_env).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			name := secretName(args, cfg.PasswordEnv)

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read secret from stdin: %w", err)
			}
			source := &secrets.KeyringSource{Service: cfg.KeyringService, Account: cfg.KeyringAccount}
			if err := source.Set(name, strings.TrimRight(line, "\r\n")); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Stored %s in keyring service %s\n", name, cfg.KeyringService)
			return nil
		},
	}
}

func newSecretDeleteCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [name]",
		Short: "Remove a secret from the keyring",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			name := secretName(args, cfg.PasswordEnv)
			source := &secrets.KeyringSource{Service: cfg.KeyringService, Account: cfg.KeyringAccount}
			if err := source.Delete(name); err != nil {
				if errors.Is(err, secrets.ErrNotFound) {
					return fmt.Errorf("no secret named %s in keyring service %s", name, cfg.KeyringService)
				}
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s from keyring service %s\n", name, cfg.KeyringService)
			return nil
		},
	}
}

func secretName(args []string, fallback string) string {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0])
	}
	return fallback
}
