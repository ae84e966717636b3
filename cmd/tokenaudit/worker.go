package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"tokenaudit/internal/api"
	"tokenaudit/internal/api/handlers"
	"tokenaudit/internal/platform/database"
	"tokenaudit/internal/workers"
)

const shutdownTimeout = 5 * time.Second

var flagRunNow bool

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the audit daily and serve health, metrics and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp(ctx, cfg)
		defer a.Close()

		scheduler := workers.NewScheduler(a.monitor, cfg.Worker.RunAtHour)

		var runs handlers.RunLister
		if a.recorder != nil {
			runs = a.recorder
		}
		router := api.NewRouter(&api.Dependencies{
			HealthHandler:  handlers.NewHealthHandler(database.NewAuditDBWrapper(a.auditDB), scheduler),
			MetricsHandler: handlers.NewMetricsHandler(),
			RunsHandler:    handlers.NewRunsHandler(scheduler, runs),
		})

		srv := &http.Server{
			Addr:              cfg.Worker.Addr,
			Handler:           router,
			ReadHeaderTimeout: cfg.Worker.ReadTimeout,
			ReadTimeout:       cfg.Worker.ReadTimeout,
			WriteTimeout:      cfg.Worker.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", cfg.Worker.Addr).Msg("worker api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		if flagRunNow {
			go scheduler.RunOnce(ctx)
		}
		go scheduler.Start(ctx)

		select {
		case err := <-errCh:
			return fmt.Errorf("worker api: %w", err)
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("worker api shutdown: %w", err)
		}
		log.Info().Msg("worker stopped")
		return nil
	},
}

func init() {
	workerCmd.Flags().BoolVar(&flagRunNow, "run-now", false, "Run one audit immediately on startup")
}
