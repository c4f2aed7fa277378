// Package main provides the apply_agent CLI: posting intake, form cataloging, single pipeline
// runs and capped batch runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	store      string
	logMode    string
	logLevel   string
	userID     string
	actorID    string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "apply_agent",
		Short: "Job application autopilot",
		Long: `Discovers job postings, drafts grounded application materials, fills application forms and
records every step for review. Final submission stays disabled unless the configuration allows it.

Configuration is read from --config (JSON), then the environment (.env is loaded when present),
then command-line flags.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config.json")
	flags.StringVar(&opts.store, "store", "", "Persistence backend: postgres or memory (default: postgres when database_url is set)")
	flags.StringVar(&opts.logMode, "log-mode", "", "Log encoding: dev or prod")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.userID, "user", "", "User id (overrides user_id)")
	flags.StringVar(&opts.actorID, "actor", "", "Actor id recorded in audit events (overrides actor_id)")

	cmd.AddCommand(
		newRunCmd(opts),
		newBatchCmd(opts),
		newFetchFormCmd(opts),
		newResolveCmd(opts),
		newIngestCmd(opts),
		newMigrateCmd(opts),
		newSecretCmd(opts),
	)
	return cmd
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
