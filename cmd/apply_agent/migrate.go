package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/apply-autopilot/internal/db"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Creates the job, application, form field, submission, artifact and audit tables. Safe to run repeatedly.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("migrate needs database_url or DATABASE_URL")
			}
			ctx := cmd.Context()
			pg, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()

			if err := pg.Migrate(ctx); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Schema applied")
			return nil
		},
	}
}
