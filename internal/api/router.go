package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/glowbook/marketplace-booking/internal/booking"
	"github.com/glowbook/marketplace-booking/internal/search"
)

type RouterConfig struct {
	Booking *booking.Service
	Ranker  *search.Ranker
	PgPool  *pgxpool.Pool
	Redis   *redis.Client
	Logger  zerolog.Logger
	Env     string
	Version string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Provider endpoints
	r.Get("/providers/search", searchNearbyHandler(cfg.Ranker))
	r.Get("/providers/{providerID}/availability", getAvailabilityHandler(cfg.Booking))

	// Appointment endpoints
	r.Post("/appointments", createAppointmentHandler(cfg.Booking))
	r.Get("/appointments/{id}", getAppointmentHandler(cfg.Booking))

	return r
}
