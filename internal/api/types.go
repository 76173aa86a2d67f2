package api

import (
	"time"

	"github.com/google/uuid"
)

type CreateAppointmentRequest struct {
	ProviderID string `json:"provider_id"`
	ServiceID  string `json:"service_id"`
	ClientID   string `json:"client_id"`
	Start      string `json:"start"`          // RFC 3339
	Hold       bool   `json:"hold,omitempty"` // reserve as an expiring pending hold
}

type AppointmentResponse struct {
	ID         uuid.UUID  `json:"id"`
	ProviderID uuid.UUID  `json:"provider_id"`
	ServiceID  uuid.UUID  `json:"service_id"`
	ClientID   uuid.UUID  `json:"client_id"`
	Status     string     `json:"status"`
	Start      time.Time  `json:"start"`
	End        time.Time  `json:"end"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type SlotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type AvailabilityResponse struct {
	ProviderID uuid.UUID      `json:"provider_id"`
	ServiceID  uuid.UUID      `json:"service_id"`
	Slots      []SlotResponse `json:"slots"`
}

type ProviderResult struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	DistanceMeters float64   `json:"distance_m"`
}

type SearchResponse struct {
	Results []ProviderResult `json:"results"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}
