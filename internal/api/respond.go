package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: request body is empty", appointment.ErrMalformedInput)
	case errors.Is(err, appointment.ErrInvalidType), errors.Is(err, appointment.ErrMalformedInput):
		return err
	default:
		return fmt.Errorf("%w: could not parse JSON: %v", appointment.ErrMalformedInput, err)
	}
}

// classify maps service errors onto an HTTP status and error code.
func classify(err error) (int, string) {
	var verr *schedule.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, string(verr.Reason)
	case errors.Is(err, appointment.ErrInvalidDoctor):
		return http.StatusBadRequest, "invalid_doctor"
	case errors.Is(err, appointment.ErrInvalidRoom):
		return http.StatusBadRequest, "invalid_room"
	case errors.Is(err, appointment.ErrInvalidType):
		return http.StatusBadRequest, "invalid_appointment_type"
	case errors.Is(err, appointment.ErrMalformedInput):
		return http.StatusBadRequest, "malformed_input"
	case errors.Is(err, appointment.ErrPatientNotFound):
		return http.StatusNotFound, "patient_not_found"
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		return http.StatusNotFound, "appointment_not_found"
	case errors.Is(err, appointment.ErrNoSlotFound):
		return http.StatusConflict, "no_slot_found"
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return http.StatusInternalServerError, "lock_not_acquired"
	case errors.Is(err, redisclient.ErrLockLost):
		return http.StatusInternalServerError, "lock_lost"
	case errors.Is(err, appointment.ErrStoreUnavailable):
		return http.StatusInternalServerError, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)

	resp := ErrorResponse{Error: code, Details: err.Error()}
	var rerr *appointment.RescheduleError
	if errors.As(err, &rerr) {
		resp.Committed = rerr.Committed
	}

	if status >= http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("code", code).Msg("request failed")
	}

	writeJSON(w, status, resp)
}
