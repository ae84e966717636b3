package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"tokenaudit/internal/pkg/logger"
	"tokenaudit/internal/platform/audit"
	"tokenaudit/internal/platform/config"
	"tokenaudit/internal/platform/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the audit log schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		// GitLab and SMTP settings are not needed here, so the full
		// validation is skipped.
		cfg, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		logger.Init(cfg.Logging)

		db, err := database.Open(cfg.Audit)
		if errors.Is(err, database.ErrDisabled) {
			return errors.New("audit.database_path (AUDIT_DATABASE_PATH) is not set")
		}
		if err != nil {
			return fmt.Errorf("open audit database: %w", err)
		}
		defer db.Close()

		if err := audit.NewRecorder(db).EnsureSchema(context.Background()); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Migration completed successfully")
		return nil
	},
}
