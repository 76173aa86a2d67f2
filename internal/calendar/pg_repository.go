package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/glowbook/marketplace-booking/internal/geo"
	"github.com/glowbook/marketplace-booking/internal/schedule"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanProvider(row pgx.Row) (*Provider, error) {
	var p Provider

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Latitude,
		&p.Longitude,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service
	var durationMin, bufferMin int

	err := row.Scan(
		&s.ID,
		&s.ProviderID,
		&s.Name,
		&durationMin,
		&bufferMin,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}

	s.Duration = time.Duration(durationMin) * time.Minute
	s.BufferAfter = time.Duration(bufferMin) * time.Minute
	return &s, nil
}

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	var email *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&email,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}

	c.Email = email
	return &c, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var expiresAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.ServiceID,
		&a.ClientID,
		&a.Start,
		&a.End,
		&a.Status,
		&expiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ExpiresAt = expiresAt
	return &a, nil
}

const appointmentColumns = `id, provider_id, service_id, client_id, start_time, end_time, status, expires_at, created_at, updated_at`

// Interface methods

func (r *PgRepository) GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM providers
		WHERE id = $1
	`, id)
	return scanProvider(row)
}

func (r *PgRepository) GetServiceByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, provider_id, name, duration_min, buffer_after_min, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (r *PgRepository) GetClientByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM clients
		WHERE id = $1
	`, id)
	return scanClient(row)
}

func (r *PgRepository) ListWorkingHours(ctx context.Context, providerID uuid.UUID) ([]WorkingHourRule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT provider_id, weekday, open_minute, close_minute
		FROM working_hours
		WHERE provider_id = $1
		ORDER BY weekday, open_minute
	`, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WorkingHourRule
	for rows.Next() {
		var rule WorkingHourRule
		var weekday int
		if err := rows.Scan(&rule.ProviderID, &weekday, &rule.OpenMinute, &rule.CloseMinute); err != nil {
			return nil, err
		}
		rule.Weekday = time.Weekday(weekday)
		result = append(result, rule)
	}
	return result, rows.Err()
}

// WorkingWindows materializes the provider's weekday rules onto a concrete
// date, satisfying the slot generator's reader contract.
func (r *PgRepository) WorkingWindows(ctx context.Context, providerID uuid.UUID, day time.Time) ([]schedule.Interval, error) {
	day = day.UTC().Truncate(24 * time.Hour)

	rows, err := r.pool.Query(ctx, `
		SELECT open_minute, close_minute
		FROM working_hours
		WHERE provider_id = $1 AND weekday = $2
		ORDER BY open_minute
	`, providerID, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []schedule.Interval
	for rows.Next() {
		var openMin, closeMin int
		if err := rows.Scan(&openMin, &closeMin); err != nil {
			return nil, err
		}
		windows = append(windows, schedule.Interval{
			Start: day.Add(time.Duration(openMin) * time.Minute),
			End:   day.Add(time.Duration(closeMin) * time.Minute),
		})
	}
	return windows, rows.Err()
}

func (r *PgRepository) ListBlackouts(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]BlackoutPeriod, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, provider_id, start_time, end_time, reason, created_at
		FROM blackout_periods
		WHERE provider_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BlackoutPeriod
	for rows.Next() {
		var b BlackoutPeriod
		if err := rows.Scan(&b.ID, &b.ProviderID, &b.Start, &b.End, &b.Reason, &b.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

func (r *PgRepository) BlackoutIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Interval, error) {
	blackouts, err := r.ListBlackouts(ctx, providerID, from, to)
	if err != nil {
		return nil, err
	}
	intervals := make([]schedule.Interval, len(blackouts))
	for i, b := range blackouts {
		intervals[i] = schedule.Interval{Start: b.Start, End: b.End}
	}
	return intervals, nil
}

func (r *PgRepository) ListActiveAppointments(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status IN ('pending', 'confirmed')
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

// BusyIntervals extends each active appointment's end by its service's
// after-buffer, so the generator treats the buffer as occupied time.
func (r *PgRepository) BusyIntervals(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]schedule.Interval, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT a.start_time,
		       a.end_time + make_interval(mins => s.buffer_after_min)
		FROM appointments a
		JOIN services s ON s.id = a.service_id
		WHERE a.provider_id = $1
		  AND a.status IN ('pending', 'confirmed')
		  AND a.start_time < $3
		  AND a.end_time + make_interval(mins => s.buffer_after_min) > $2
		ORDER BY a.start_time
	`, providerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var intervals []schedule.Interval
	for rows.Next() {
		var iv schedule.Interval
		if err := rows.Scan(&iv.Start, &iv.End); err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, rows.Err()
}

func (r *PgRepository) ListProvidersWithin(ctx context.Context, box geo.BoundingBox) ([]Provider, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, latitude, longitude, created_at, updated_at
		FROM providers
		WHERE latitude BETWEEN $1 AND $2
		  AND longitude BETWEEN $3 AND $4
		ORDER BY id
	`, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Provider
	for rows.Next() {
		var p Provider
		if err := rows.Scan(&p.ID, &p.Name, &p.Latitude, &p.Longitude, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// CreateAppointment commits the requested interval as one atomic unit of work
// scoped to the provider: the provider row lock serializes writers, the
// re-check gives a clean rejection, and the appointments_no_overlap exclusion
// constraint backstops both in case of anything slipping through.
func (r *PgRepository) CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var providerID uuid.UUID
	err = tx.QueryRow(ctx, `
		SELECT id FROM providers WHERE id = $1 FOR UPDATE
	`, appt.ProviderID).Scan(&providerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProviderNotFound
		}
		return nil, fmt.Errorf("lock provider row: %w", err)
	}

	var overlaps bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE provider_id = $1
			  AND status IN ('pending', 'confirmed')
			  AND start_time < $3
			  AND end_time > $2
		)
	`, appt.ProviderID, appt.Start, appt.End).Scan(&overlaps)
	if err != nil {
		return nil, fmt.Errorf("check overlap: %w", err)
	}
	if overlaps {
		return nil, ErrAppointmentOverlap
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, provider_id, service_id, client_id, start_time, end_time, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
		RETURNING `+appointmentColumns+`
	`, appt.ID, appt.ProviderID, appt.ServiceID, appt.ClientID, appt.Start, appt.End, appt.Status, appt.ExpiresAt)

	created, err := scanAppointment(row)
	if err != nil {
		if isExclusionViolation(err) {
			return nil, ErrAppointmentOverlap
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if isExclusionViolation(err) {
			return nil, ErrAppointmentOverlap
		}
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}

	return created, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'pending'
		  AND expires_at IS NOT NULL
		  AND expires_at < $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isExclusionViolation matches Postgres error 23P01 (exclusion_violation),
// raised by appointments_no_overlap when two writers race past the re-check.
func isExclusionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}
