package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/glowbook/marketplace-booking/internal/booking"
	"github.com/glowbook/marketplace-booking/internal/calendar"
	"github.com/glowbook/marketplace-booking/internal/geo"
	"github.com/glowbook/marketplace-booking/internal/search"
)

func getAvailabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providerID, err := uuid.Parse(chi.URLParam(r, "providerID"))
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id", "must be a valid UUID")
			return
		}

		serviceID, err := uuid.Parse(r.URL.Query().Get("service_id"))
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_service_id", "service_id", "must be a valid UUID")
			return
		}

		// Default range: today (UTC).
		from := time.Now().UTC().Truncate(24 * time.Hour)
		to := from.AddDate(0, 0, 1)
		if raw := r.URL.Query().Get("from"); raw != "" {
			from, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeFieldError(w, http.StatusBadRequest, "invalid_from", "from", "must be RFC 3339")
				return
			}
			to = from.AddDate(0, 0, 1)
		}
		if raw := r.URL.Query().Get("to"); raw != "" {
			to, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				writeFieldError(w, http.StatusBadRequest, "invalid_to", "to", "must be RFC 3339")
				return
			}
		}

		slots, err := svc.Availability(r.Context(), providerID, serviceID, from, to)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := AvailabilityResponse{
			ProviderID: providerID,
			ServiceID:  serviceID,
			Slots:      make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Start: s.Start, End: s.End})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func searchNearbyHandler(ranker *search.Ranker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, err := strconv.ParseFloat(q.Get("lat"), 64)
		if err != nil || lat < -90 || lat > 90 {
			writeFieldError(w, http.StatusBadRequest, "invalid_lat", "lat", "must be a latitude in [-90, 90]")
			return
		}
		lng, err := strconv.ParseFloat(q.Get("lng"), 64)
		if err != nil || lng < -180 || lng > 180 {
			writeFieldError(w, http.StatusBadRequest, "invalid_lng", "lng", "must be a longitude in [-180, 180]")
			return
		}
		radius, err := strconv.ParseFloat(q.Get("radius_m"), 64)
		if err != nil || radius <= 0 {
			writeFieldError(w, http.StatusBadRequest, "invalid_radius", "radius_m", "must be a positive number of meters")
			return
		}

		query := search.Query{
			Origin:       geo.Point{Lat: lat, Lng: lng},
			RadiusMeters: radius,
		}

		if raw := q.Get("date"); raw != "" {
			day, err := time.Parse("2006-01-02", raw)
			if err != nil {
				writeFieldError(w, http.StatusBadRequest, "invalid_date", "date", "must be YYYY-MM-DD")
				return
			}
			query.Day = day
			if rawDur := q.Get("duration_min"); rawDur != "" {
				mins, err := strconv.Atoi(rawDur)
				if err != nil || mins <= 0 {
					writeFieldError(w, http.StatusBadRequest, "invalid_duration", "duration_min", "must be a positive integer")
					return
				}
				query.Duration = time.Duration(mins) * time.Minute
			}
		}

		results, err := ranker.SearchNearby(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := SearchResponse{Results: make([]ProviderResult, 0, len(results))}
		for _, res := range results {
			resp.Results = append(resp.Results, ProviderResult{
				ID:             res.Provider.ID,
				Name:           res.Provider.Name,
				Latitude:       res.Provider.Latitude,
				Longitude:      res.Provider.Longitude,
				DistanceMeters: res.DistanceMeters,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id", "must be a valid UUID")
			return
		}
		serviceID, err := uuid.Parse(req.ServiceID)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_service_id", "service_id", "must be a valid UUID")
			return
		}
		clientID, err := uuid.Parse(req.ClientID)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_client_id", "client_id", "must be a valid UUID")
			return
		}
		start, err := time.Parse(time.RFC3339, req.Start)
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_start", "start", "must be RFC 3339")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), booking.CreateRequest{
			ProviderID: providerID,
			ServiceID:  serviceID,
			ClientID:   clientID,
			Start:      start,
			Hold:       req.Hold,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeFieldError(w, http.StatusBadRequest, "invalid_appointment_id", "id", "must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func toAppointmentResponse(appt *calendar.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:         appt.ID,
		ProviderID: appt.ProviderID,
		ServiceID:  appt.ServiceID,
		ClientID:   appt.ClientID,
		Status:     string(appt.Status),
		Start:      appt.Start,
		End:        appt.End,
		ExpiresAt:  appt.ExpiresAt,
	}
}

// handleBookingError maps the booking error taxonomy onto HTTP statuses.
// Expected rejections are client errors; anything unclassified is a 500.
func handleBookingError(w http.ResponseWriter, err error) {
	var berr *booking.Error
	if !errors.As(err, &berr) {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	status := http.StatusInternalServerError
	switch berr.Kind {
	case booking.KindValidation:
		status = http.StatusBadRequest
	case booking.KindNotFound:
		status = http.StatusNotFound
	case booking.KindClosed, booking.KindBlackout, booking.KindConflict:
		status = http.StatusConflict
	case booking.KindTransient:
		status = http.StatusServiceUnavailable
	}

	writeFieldError(w, status, string(berr.Kind), berr.Field, berr.Message)
}
