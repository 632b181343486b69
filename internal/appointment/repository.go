package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStoreUnavailable    = errors.New("appointment store unavailable")
)

// Repository contains all DB interactions needed by the service.
// Appointment reads are denormalized with their patient.
type Repository interface {
	// Patients
	CreatePatient(ctx context.Context, p Patient) (*Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	ListPatients(ctx context.Context) ([]Patient, error)
	UpdatePatient(ctx context.Context, p Patient) (*Patient, error)
	// DeletePatient also removes every appointment of the patient.
	DeletePatient(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Appointments
	CreateAppointment(ctx context.Context, a Appointment) (*AppointmentDetail, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, a Appointment) (*AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Filtered reads, ordered by start time
	ListAppointments(ctx context.Context) ([]AppointmentDetail, error)
	ListAppointmentsByDay(ctx context.Context, day time.Time) ([]AppointmentDetail, error)
	ListAppointmentsByMonth(ctx context.Context, year int, month time.Month) ([]AppointmentDetail, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error)
	ListAppointmentsByDoctor(ctx context.Context, doctor uint32) ([]AppointmentDetail, error)
	ListAppointmentsByRoom(ctx context.Context, room uint32) ([]AppointmentDetail, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
