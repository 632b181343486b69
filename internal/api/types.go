package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

type CreateAppointmentRequest struct {
	StartTime       *appointment.LocalTime `json:"start_time"`
	AppointmentType *appointment.Type      `json:"appointment_type"`
	PatientID       *uuid.UUID             `json:"patient_id"`
	Doctor          *uint32                `json:"doctor"`
	RoomNr          *uint32                `json:"room_nr"`
}

func (req CreateAppointmentRequest) command() (appointment.CreateAppointmentCommand, error) {
	var missing []string
	if req.StartTime == nil {
		missing = append(missing, "start_time")
	}
	if req.AppointmentType == nil {
		missing = append(missing, "appointment_type")
	}
	if req.PatientID == nil {
		missing = append(missing, "patient_id")
	}
	if req.Doctor == nil {
		missing = append(missing, "doctor")
	}
	if req.RoomNr == nil {
		missing = append(missing, "room_nr")
	}
	if len(missing) > 0 {
		return appointment.CreateAppointmentCommand{}, missingFields(missing)
	}

	return appointment.CreateAppointmentCommand{
		StartTime: req.StartTime.Time,
		Type:      *req.AppointmentType,
		PatientID: *req.PatientID,
		Doctor:    *req.Doctor,
		RoomNr:    *req.RoomNr,
	}, nil
}

// UpdateAppointmentRequest is a partial update; absent fields keep their value.
type UpdateAppointmentRequest struct {
	StartTime       *appointment.LocalTime `json:"start_time"`
	AppointmentType *appointment.Type      `json:"appointment_type"`
	Doctor          *uint32                `json:"doctor"`
	RoomNr          *uint32                `json:"room_nr"`
}

func (req UpdateAppointmentRequest) command() appointment.UpdateAppointmentCommand {
	cmd := appointment.UpdateAppointmentCommand{
		Type:   req.AppointmentType,
		Doctor: req.Doctor,
		RoomNr: req.RoomNr,
	}
	if req.StartTime != nil {
		start := req.StartTime.Time
		cmd.StartTime = &start
	}
	return cmd
}

type MassRescheduleRequest struct {
	DoctorID  *uint32 `json:"doctor_id"`
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
}

func (req MassRescheduleRequest) command() (appointment.MassRescheduleCommand, error) {
	if req.DoctorID == nil {
		return appointment.MassRescheduleCommand{}, missingFields([]string{"doctor_id"})
	}

	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		return appointment.MassRescheduleCommand{}, err
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		return appointment.MassRescheduleCommand{}, err
	}

	return appointment.MassRescheduleCommand{
		DoctorID:  *req.DoctorID,
		StartDate: start,
		EndDate:   end,
	}, nil
}

type CreatePatientRequest struct {
	Name            string  `json:"name"`
	PhoneNumber     string  `json:"phone_number"`
	InsuranceNumber *string `json:"insurance_number"`
}

type UpdatePatientRequest struct {
	Name            *string `json:"name"`
	PhoneNumber     *string `json:"phone_number"`
	InsuranceNumber *string `json:"insurance_number"`
}

type DataResponse struct {
	Data any `json:"data"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// Committed lists the moves a failed mass reschedule already persisted.
	Committed []appointment.AppointmentDetail `json:"committed,omitempty"`
}

func missingFields(fields []string) error {
	return fmt.Errorf("%w: missing required fields: %s", appointment.ErrMalformedInput, strings.Join(fields, ", "))
}

func parseDate(field, value string) (time.Time, error) {
	d, err := schedule.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", appointment.ErrMalformedInput, field)
	}
	return d, nil
}
