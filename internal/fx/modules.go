package fx

import (
	"arena-bot/internal/api"
	"arena-bot/internal/config"
	"arena-bot/internal/constants"
	"arena-bot/internal/database"
	"arena-bot/internal/logger"
	"arena-bot/internal/metrics"
	"arena-bot/internal/repository"
	"arena-bot/internal/scheduler"
	"arena-bot/internal/server"
	"arena-bot/internal/service"
	"arena-bot/internal/store"
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func ProvideRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// ProvideStore opens the backend named by STORE_DRIVER and closes it on shutdown.
func ProvideStore(lc fx.Lifecycle, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	var s store.Store

	switch cfg.StoreDriver {
	case config.DriverSQLite:
		db, err := database.New(cfg, logger)
		if err != nil {
			return nil, err
		}
		s = store.NewSQLiteStore(db, logger)
	case config.DriverRedis:
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		rdb, err := store.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		s = store.NewRedisStore(rdb)
	case config.DriverPostgres:
		ctx, cancel := context.WithTimeout(context.Background(), constants.DatabaseTimeout)
		defer cancel()
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		s = pg
	case config.DriverMemory:
		s = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	logger.Info().Str("driver", cfg.StoreDriver).Msg("store opened")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := s.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing store")
			}
			return nil
		},
	})
	return s, nil
}

func ProvideScheduler(lc fx.Lifecycle, logger zerolog.Logger) *scheduler.Scheduler {
	sched := scheduler.New(logger, constants.ExpiryTaskTimeout)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return sched.Stop(ctx)
		},
	})
	return sched
}

var Module = fx.Options(
	config.Module,
	logger.Module,
	fx.Provide(ProvideRegistry),
	fx.Provide(metrics.NewMetrics),
	fx.Provide(ProvideStore),
	fx.Provide(ProvideScheduler),
	// repos
	fx.Provide(repository.NewPingRepository),
	fx.Provide(repository.NewRatingRepository),
	// role webhook client
	fx.Provide(api.NewRoleClient),
	// svc
	fx.Provide(service.NewPingLedger),
	fx.Provide(service.NewRankingEngine),
	// server
	fx.Provide(server.NewArenaServer),
)
