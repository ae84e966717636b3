package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a single token audit and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a := newApp(ctx, cfg)
		defer a.Close()

		res, err := a.monitor.Run(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("token audit interrupted")
			return nil
		}
		if res.FetchErrors != nil {
			log.Warn().Int("fetch_errors", res.FetchErrorCount()).Msg("token audit completed with partial data")
		}
		return nil
	},
}
