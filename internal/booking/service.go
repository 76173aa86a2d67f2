package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/config"
	redisclient "github.com/glowbook/marketplace-booking/internal/redis"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

// Notifier enqueues the post-booking notification job. Delivery is an
// external collaborator's concern; enqueue failures are logged, never
// propagated to the booking caller.
type Notifier interface {
	EnqueueBookingNotice(ctx context.Context, appointmentID uuid.UUID) error
}

// Service is the booking orchestrator. It offers availability through the
// slot generator and commits bookings through the conflict guard; generator
// output is advisory only and every commit re-runs the full check sequence.
type Service struct {
	repo     calendar.Repository
	gen      *schedule.Generator
	cache    *schedule.SlotCache // may be nil
	locker   redisclient.Locker
	notifier Notifier
	log      zerolog.Logger

	commitTimeout time.Duration
	holdTTL       time.Duration
}

func NewService(repo calendar.Repository, gen *schedule.Generator, locker redisclient.Locker, notifier Notifier, cache *schedule.SlotCache, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:          repo,
		gen:           gen,
		cache:         cache,
		locker:        locker,
		notifier:      notifier,
		log:           log,
		commitTimeout: cfg.CommitTimeout,
		holdTTL:       cfg.HoldTTL,
	}
}

type CreateRequest struct {
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	ClientID   uuid.UUID
	Start      time.Time
	Hold       bool // reserve as a pending hold with an expiry instead of confirming
}

// Availability returns candidate slots for the service within [from, to).
func (s *Service) Availability(ctx context.Context, providerID, serviceID uuid.UUID, from, to time.Time) ([]schedule.Slot, error) {
	if !to.After(from) {
		return nil, newError(KindValidation, "to", "range end must be after range start")
	}

	svc, err := s.resolveService(ctx, providerID, serviceID)
	if err != nil {
		return nil, err
	}

	return s.gen.Slots(ctx, schedule.Request{
		ProviderID: providerID,
		ServiceID:  serviceID,
		Duration:   svc.Duration,
		From:       from.UTC(),
		To:         to.UTC(),
	})
}

// CreateAppointment attempts to commit a booking. The redis provider lock
// serializes writers so that the in-order checks (closed, blackout, conflict)
// observe committed state, and the store transaction plus its exclusion
// constraint guarantee at most one winner even if the lock fails us.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*calendar.Appointment, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	svc, err := s.resolveService(ctx, req.ProviderID, req.ServiceID)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetClientByID(ctx, req.ClientID); err != nil {
		if errors.Is(err, calendar.ErrClientNotFound) {
			return nil, newError(KindNotFound, "client_id", "unknown client %s", req.ClientID)
		}
		return nil, fmt.Errorf("load client: %w", err)
	}

	start := req.Start.UTC()
	end := start.Add(svc.Duration)

	var created *calendar.Appointment

	err = s.locker.WithProviderLock(ctx, req.ProviderID, func(lockCtx context.Context) error {
		if err := s.checkOpen(lockCtx, req.ProviderID, start, end); err != nil {
			return err
		}
		if err := s.checkBlackouts(lockCtx, req.ProviderID, start, end); err != nil {
			return err
		}
		if err := s.checkConflicts(lockCtx, req.ProviderID, start, end); err != nil {
			return err
		}

		appt := &calendar.Appointment{
			ID:         uuid.New(),
			ProviderID: req.ProviderID,
			ServiceID:  req.ServiceID,
			ClientID:   req.ClientID,
			Start:      start,
			End:        end,
			Status:     calendar.StatusConfirmed,
		}
		if req.Hold {
			expiresAt := time.Now().Add(s.holdTTL)
			appt.Status = calendar.StatusPending
			appt.ExpiresAt = &expiresAt
		}

		commitCtx, cancel := context.WithTimeout(lockCtx, s.commitTimeout)
		defer cancel()

		committed, commitErr := s.repo.CreateAppointment(commitCtx, appt)
		if commitErr != nil {
			switch {
			case errors.Is(commitErr, calendar.ErrAppointmentOverlap):
				return newError(KindConflict, "start", "requested time was booked by someone else")
			case errors.Is(commitErr, context.DeadlineExceeded):
				return newError(KindTransient, "", "booking commit timed out, try again")
			case errors.Is(commitErr, calendar.ErrProviderNotFound):
				return newError(KindNotFound, "provider_id", "unknown provider %s", req.ProviderID)
			default:
				return fmt.Errorf("commit appointment: %w", commitErr)
			}
		}
		created = committed
		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, newError(KindTransient, "", "provider calendar is busy, try again")
		}
		return nil, err
	}

	if s.cache != nil {
		s.cache.Invalidate(req.ProviderID)
	}

	go s.dispatchNotice(created.ID)

	return created, nil
}

// GetAppointment retrieves an appointment by ID.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*calendar.Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, calendar.ErrAppointmentNotFound) {
			return nil, newError(KindNotFound, "id", "unknown appointment %s", id)
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ExpirePendingHolds cancels pending holds whose expiry has passed. Called
// periodically by the expiry worker.
func (s *Service) ExpirePendingHolds(ctx context.Context) error {
	now := time.Now()
	expired, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired pending holds: %w", err)
	}

	for _, appt := range expired {
		_, err := s.repo.UpdateAppointmentStatus(ctx, appt.ID, calendar.StatusPending, calendar.StatusCancelled)
		if err != nil {
			if errors.Is(err, calendar.ErrAppointmentNotFound) {
				continue // confirmed or cancelled in the meantime
			}
			s.log.Error().Err(err).Stringer("appointment_id", appt.ID).Msg("failed to expire pending hold")
			continue
		}
		if s.cache != nil {
			s.cache.Invalidate(appt.ProviderID)
		}
		s.log.Info().
			Stringer("appointment_id", appt.ID).
			Stringer("provider_id", appt.ProviderID).
			Time("expired_at", *appt.ExpiresAt).
			Msg("pending hold expired")
	}

	return nil
}

func validateCreate(req CreateRequest) error {
	switch {
	case req.ProviderID == uuid.Nil:
		return newError(KindValidation, "provider_id", "provider_id is required")
	case req.ServiceID == uuid.Nil:
		return newError(KindValidation, "service_id", "service_id is required")
	case req.ClientID == uuid.Nil:
		return newError(KindValidation, "client_id", "client_id is required")
	case req.Start.IsZero():
		return newError(KindValidation, "start", "start is required")
	}
	return nil
}

func (s *Service) resolveService(ctx context.Context, providerID, serviceID uuid.UUID) (*calendar.Service, error) {
	if _, err := s.repo.GetProviderByID(ctx, providerID); err != nil {
		if errors.Is(err, calendar.ErrProviderNotFound) {
			return nil, newError(KindNotFound, "provider_id", "unknown provider %s", providerID)
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}

	svc, err := s.repo.GetServiceByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, calendar.ErrServiceNotFound) {
			return nil, newError(KindNotFound, "service_id", "unknown service %s", serviceID)
		}
		return nil, fmt.Errorf("load service: %w", err)
	}
	if svc.ProviderID != providerID {
		return nil, newError(KindNotFound, "service_id", "service %s does not belong to provider %s", serviceID, providerID)
	}
	return svc, nil
}

// checkOpen requires a working-hour window covering the full [start, end)
// span, not just the instant of start. Spans crossing midnight or bridging
// two windows are rejected.
func (s *Service) checkOpen(ctx context.Context, providerID uuid.UUID, start, end time.Time) error {
	rules, err := s.repo.ListWorkingHours(ctx, providerID)
	if err != nil {
		return fmt.Errorf("load working hours: %w", err)
	}

	day := start.UTC().Truncate(24 * time.Hour)
	for _, rule := range rules {
		if rule.Weekday != day.Weekday() {
			continue
		}
		wStart, wEnd := rule.Window(day)
		if !start.Before(wStart) && !end.After(wEnd) {
			return nil
		}
	}
	return newError(KindClosed, "start", "provider is not open from %s to %s",
		start.Format(time.RFC3339), end.Format(time.RFC3339))
}

func (s *Service) checkBlackouts(ctx context.Context, providerID uuid.UUID, start, end time.Time) error {
	blackouts, err := s.repo.ListBlackouts(ctx, providerID, start, end)
	if err != nil {
		return fmt.Errorf("load blackouts: %w", err)
	}
	if len(blackouts) > 0 {
		return newError(KindBlackout, "start", "requested time falls in a blackout period (%s)", blackouts[0].Reason)
	}
	return nil
}

func (s *Service) checkConflicts(ctx context.Context, providerID uuid.UUID, start, end time.Time) error {
	existing, err := s.repo.ListActiveAppointments(ctx, providerID, start, end)
	if err != nil {
		return fmt.Errorf("load active appointments: %w", err)
	}
	if len(existing) > 0 {
		return newError(KindConflict, "start", "requested time overlaps an existing appointment")
	}
	return nil
}

// dispatchNotice is fire and forget: the booking is already committed, so a
// failed enqueue only gets logged.
func (s *Service) dispatchNotice(appointmentID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.notifier.EnqueueBookingNotice(ctx, appointmentID); err != nil {
		s.log.Warn().Err(err).Stringer("appointment_id", appointmentID).Msg("failed to enqueue booking notification")
	}
}
