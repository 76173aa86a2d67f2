package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/glowbook/marketplace-booking/internal/geo"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

var (
	ErrProviderNotFound    = errors.New("provider not found")
	ErrServiceNotFound     = errors.New("service not found")
	ErrClientNotFound      = errors.New("client not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrAppointmentOverlap is returned by CreateAppointment when the requested
	// interval loses against a committed active appointment, whether caught by
	// the in-transaction re-check or by the storage exclusion constraint.
	ErrAppointmentOverlap = errors.New("appointment interval overlaps an existing booking")
)

// Repository contains all store interactions needed by the scheduling core.
// Provider, service and blackout rows are written by external management
// operations; this core only reads them and writes appointment rows.
type Repository interface {
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error)
	GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error)

	// Slot generation reads
	ListWorkingHours(ctx context.Context, providerID uuid.UUID) ([]WorkingHourRule, error)
	ListBlackouts(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlackoutPeriod, error)
	ListActiveAppointments(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error)
	// BusyIntervals returns active appointments with their service's
	// after-buffer already applied to the end, for availability subtraction.
	BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Interval, error)

	// Proximity reads
	ListProvidersWithin(ctx context.Context, box geo.BoundingBox) ([]Provider, error)

	// Guarded write: all conflict re-checks and the insert run in one
	// transaction serialized on the provider row.
	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)
}
