package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/glowbook/marketplace-booking/internal/api"
	"github.com/glowbook/marketplace-booking/internal/booking"
	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/config"
	"github.com/glowbook/marketplace-booking/internal/db"
	"github.com/glowbook/marketplace-booking/internal/notify"
	redisclient "github.com/glowbook/marketplace-booking/internal/redis"
	"github.com/glowbook/marketplace-booking/internal/schedule"
	"github.com/glowbook/marketplace-booking/internal/search"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("config load error")
	}

	logger := newLogger(cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("starting up")

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

	// Connect Redis
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

	var notifier booking.Notifier
	if cfg.KafkaBrokers != "" {
		publisher := notify.NewKafkaPublisher(cfg.KafkaBrokers, cfg.NotifyTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka writer")
			}
		}()
		notifier = publisher
		logger.Info().Str("topic", cfg.NotifyTopic).Msg("booking notifications enabled")
	} else {
		notifier = notify.Disabled{Log: logger}
		logger.Info().Msg("no KAFKA_BROKERS configured, booking notifications disabled")
	}

	svc := booking.NewService(repo, gen, locker, notifier, cache, cfg, logger)
	ranker := search.NewRanker(repo, gen)

	router := api.NewRouter(api.RouterConfig{
		Booking: svc,
		Ranker:  ranker,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  logger,
		Env:     cfg.Env,
		Version: version,
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	logger.Info().Msg("api-server stopped")
}

func newLogger(env string) zerolog.Logger {
	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
