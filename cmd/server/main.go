package main

import (
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	fxmodules "arena-bot/internal/fx"
	"arena-bot/internal/middleware"
	"arena-bot/internal/server"
	"arena-bot/internal/service"
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	var flags config.Flags
	pflag.StringVar(&flags.EnvFile, "env-file", "", "path to a .env file to load")
	pflag.StringVarP(&flags.Port, "port", "p", "", "HTTP port, overrides SERVER_PORT")
	pflag.Parse()

	fx.New(
		fx.Supply(flags),
		fxmodules.Module,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	arenaServer *server.ArenaServer,
	ledger *service.PingLedger,
	registry *prometheus.Registry,
	cfg *config.Config,
	logger zerolog.Logger,
) {
	mux := arenaServer.Routes()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:      middleware.RequestID(logger)(c.Handler(mux)),
		ReadTimeout:  constants.RequestTimeout,
		WriteTimeout: constants.RequestTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			cfg.Log(logger)

			// expiry timers do not survive a restart, so start from an empty ledger
			cleared, err := ledger.ClearAll(ctx)
			if err != nil {
				return fmt.Errorf("failed to purge pings on startup: %w", err)
			}
			logger.Info().Int("cleared", cleared).Msg("ping ledger purged")

			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			arenaServer.Wait()
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}
