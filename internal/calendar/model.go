package calendar

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// Active reports whether the status counts against the provider's calendar.
// Cancelled and completed appointments never block availability.
func (s AppointmentStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Provider struct {
	ID        uuid.UUID
	Name      string
	Latitude  float64
	Longitude float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Client struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Service struct {
	ID          uuid.UUID
	ProviderID  uuid.UUID
	Name        string
	Duration    time.Duration
	BufferAfter time.Duration // dead time appended after the service end, before the calendar frees up
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WorkingHourRule is one open window on one weekday. Minutes count from
// midnight UTC; close may be 1440 (end of day). Rules for the same weekday
// never overlap.
type WorkingHourRule struct {
	ProviderID  uuid.UUID
	Weekday     time.Weekday
	OpenMinute  int
	CloseMinute int
}

// Window materializes the rule onto a concrete date. day is truncated to
// midnight UTC before the offsets are applied.
func (r WorkingHourRule) Window(day time.Time) (start, end time.Time) {
	midnight := day.UTC().Truncate(24 * time.Hour)
	return midnight.Add(time.Duration(r.OpenMinute) * time.Minute),
		midnight.Add(time.Duration(r.CloseMinute) * time.Minute)
}

type BlackoutPeriod struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Start      time.Time
	End        time.Time
	Reason     string
	CreatedAt  time.Time
}

type Appointment struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	ServiceID  uuid.UUID
	ClientID   uuid.UUID
	Start      time.Time
	End        time.Time
	Status     AppointmentStatus
	ExpiresAt  *time.Time // set only for pending holds
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
