package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glowbook/marketplace-booking/internal/booking"
	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/config"
	"github.com/glowbook/marketplace-booking/internal/db"
	"github.com/glowbook/marketplace-booking/internal/notify"
	redisclient "github.com/glowbook/marketplace-booking/internal/redis"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env).With().Str("service", "expiry-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	repo := calendar.NewPgRepository(pgPool)
	cache, err := schedule.NewSlotCache(cfg.SlotCacheSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("slot cache init error")
	}
	gen := schedule.NewGenerator(repo, cfg.SlotGranularity, cache)
	locker := redisclient.NewRedisProviderLocker(rdb, cfg.LockTTL, cfg.LockWait)
	svc := booking.NewService(repo, gen, locker, notify.Disabled{Log: logger}, cache, cfg, logger)

	// Run once at startup
	runOnce(rootCtx, svc, logger)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping expiry worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, svc, logger)
		}
	}
}

func runOnce(ctx context.Context, svc *booking.Service, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := svc.ExpirePendingHolds(runCtx); err != nil {
		logger.Error().Err(err).Msg("expiry run error")
		return
	}
	logger.Info().Dur("took", time.Since(start)).Msg("expiry run complete")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
