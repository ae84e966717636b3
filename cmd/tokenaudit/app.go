package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"tokenaudit/internal/engine/monitor"
	"tokenaudit/internal/engine/report"
	"tokenaudit/internal/engine/webhooks"
	"tokenaudit/internal/pkg/logger"
	"tokenaudit/internal/platform/audit"
	"tokenaudit/internal/platform/config"
	"tokenaudit/internal/platform/database"
	"tokenaudit/internal/platform/gitlab"
	"tokenaudit/internal/platform/mailer"
)

const directoryTTL = time.Hour

// loadConfig reads and validates configuration and initialises logging.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging)
	log.Info().
		Str("gitlab_url", cfg.GitLab.URL).
		Bool("admin_token_set", cfg.HasAdminToken()).
		Str("smtp_server", cfg.SMTP.Server).
		Int("smtp_port", cfg.SMTP.Port).
		Strs("to", cfg.SMTP.ToEmails).
		Msg("configuration loaded")
	return cfg, nil
}

type app struct {
	cfg      *config.Config
	auditDB  *sql.DB
	recorder *audit.Recorder
	monitor  *monitor.Monitor
}

// newApp wires the monitor. The audit log is optional: if it cannot be
// opened the run continues without it.
func newApp(ctx context.Context, cfg *config.Config) *app {
	a := &app{cfg: cfg}

	db, err := database.Open(cfg.Audit)
	switch {
	case errors.Is(err, database.ErrDisabled):
	case err != nil:
		log.Error().Err(err).Str("path", cfg.Audit.DatabasePath).Msg("failed to open audit database, continuing without audit log")
	default:
		recorder := audit.NewRecorder(db)
		if err := recorder.EnsureSchema(ctx); err != nil {
			log.Error().Err(err).Msg("failed to prepare audit schema, continuing without audit log")
			db.Close()
		} else {
			a.auditDB = db
			a.recorder = recorder
		}
	}

	client := gitlab.NewClient(cfg.GitLab)
	renderer := report.NewRenderer(cfg.GitLab.URL, report.NewDirectory(client, directoryTTL))
	notifier := report.NewNotifier(renderer, mailer.NewSMTPSender(cfg.SMTP))

	var options []monitor.Option
	if a.recorder != nil {
		options = append(options, monitor.WithRecorder(a.recorder))
	}
	if cfg.Webhook.URL != "" {
		options = append(options, monitor.WithRecorder(webhooks.NewDispatcher(cfg.Webhook, cfg.GitLab.URL)))
	}
	a.monitor = monitor.New(client, notifier, monitor.OptionsFromConfig(cfg.Monitor), options...)
	return a
}

func (a *app) Close() {
	if a.auditDB != nil {
		a.auditDB.Close()
	}
}
