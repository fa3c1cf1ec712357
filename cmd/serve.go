package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sansure/trust-cli/internal/api"
	"github.com/sansure/trust-cli/internal/monitoring"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Serve the verification, adjudication, trust and ledger endpoints for
the village dashboard and the investor console. Also runs the background
health checker and replays audit records parked during ledger outages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEngine(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := api.New(api.Config{
			Port:           port,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			Engine:         env.Engine,
			Registry:       env.Registry,
			Ledger:         env.Ledger,
			ProviderName:   env.ProviderName,
		})

		// Background health checks against the ledger and engine state.
		collector := monitoring.NewCollector(env.Ledger, env.Engine)
		alerter := monitoring.NewAlerter(cfg.Monitoring)
		checker := monitoring.NewChecker(collector, alerter, cfg.Monitoring)
		go checker.Run(ctx)

		go replayLoop(ctx, env)

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// replayLoop periodically retries audit records that could not be written
// to the ledger when their operation ran.
func replayLoop(ctx context.Context, env *engineEnv) {
	interval := time.Duration(cfg.Retry.DLQReplayIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if env.Engine.UnrecordedCount() == 0 {
				continue
			}
			replayed, failed := env.Engine.ReplayUnrecorded(ctx)
			zap.L().Info("audit replay pass",
				zap.Int("replayed", replayed),
				zap.Int("failed", failed),
				zap.Int("remaining", env.Engine.UnrecordedCount()))
		}
	}
}
