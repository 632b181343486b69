package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/metrics"
	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

const (
	EventAppointmentCreated     = "APPOINTMENT_CREATED"
	EventAppointmentUpdated     = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted     = "APPOINTMENT_DELETED"
	EventAppointmentRescheduled = "APPOINTMENT_RESCHEDULED"
)

var (
	ErrInvalidDoctor  = errors.New("doctor not found")
	ErrInvalidRoom    = errors.New("room not found")
	ErrInvalidType    = errors.New("invalid appointment type")
	ErrMalformedInput = errors.New("malformed input")
	ErrNoSlotFound    = errors.New("no free slot found within the reschedule horizon")
)

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cfg     config.Config
	log     zerolog.Logger
	metrics *metrics.Collector
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		cfg:     cfg,
		log:     log.With().Str("component", "appointment_service").Logger(),
		metrics: m,
	}
}

func (s *Service) Calendar() schedule.Calendar {
	return s.cfg.Calendar
}

type CreateAppointmentCommand struct {
	StartTime time.Time
	Type      Type
	PatientID uuid.UUID
	Doctor    uint32
	RoomNr    uint32
}

// UpdateAppointmentCommand carries the fields to change; nil fields are kept.
type UpdateAppointmentCommand struct {
	StartTime *time.Time
	Type      *Type
	Doctor    *uint32
	RoomNr    *uint32
}

type CreatePatientCommand struct {
	Name            string
	PhoneNumber     string
	InsuranceNumber *string
}

type UpdatePatientCommand struct {
	Name            *string
	PhoneNumber     *string
	InsuranceNumber *string
}

func (s *Service) checkDoctor(doctor uint32) error {
	if !s.cfg.Calendar.IsValidDoctor(doctor) {
		return fmt.Errorf("%w: the configured maximum doctor is %d, count starts at 0",
			ErrInvalidDoctor, s.cfg.Calendar.DoctorAmount-1)
	}
	return nil
}

func (s *Service) checkRoom(room uint32) error {
	if !s.cfg.Calendar.IsValidRoom(room) {
		return fmt.Errorf("%w: the configured maximum room is %d, count starts at 0",
			ErrInvalidRoom, s.cfg.Calendar.RoomAmount-1)
	}
	return nil
}

// validateOnDay checks the candidate against every appointment of its own
// calendar day except skip. Overlaps can only happen within the same day.
func (s *Service) validateOnDay(ctx context.Context, a Appointment, skip uuid.UUID) error {
	sameDay, err := s.repo.ListAppointmentsByDay(ctx, schedule.Day(a.StartTime.Time))
	if err != nil {
		return fmt.Errorf("load appointments of day: %w", err)
	}

	err = schedule.ValidateTimeframe(a.StartTime.Time, a.EndTime.Time, a.Doctor, a.RoomNr,
		slotsOf(sameDay, skip), s.cfg.Calendar)
	if err != nil {
		s.metrics.ObserveRejection(err)
		return err
	}
	return nil
}

// withStoreLock runs fn as the single writer of the appointment store.
func (s *Service) withStoreLock(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	requested := time.Now()
	return s.locker.WithStoreLock(ctx, func(lockCtx context.Context) error {
		s.metrics.ObserveLockWait(op, time.Since(requested))
		return fn(lockCtx)
	})
}

// CreateAppointment derives the end time, checks bounds and the timeframe
// against the candidate's day and persists the appointment.
func (s *Service) CreateAppointment(ctx context.Context, cmd CreateAppointmentCommand) (*AppointmentDetail, error) {
	if !cmd.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, cmd.Type)
	}
	if err := s.checkDoctor(cmd.Doctor); err != nil {
		return nil, err
	}
	if err := s.checkRoom(cmd.RoomNr); err != nil {
		return nil, err
	}

	candidate := Appointment{
		StartTime: LocalTime{cmd.StartTime},
		Type:      cmd.Type,
		PatientID: cmd.PatientID,
		Doctor:    cmd.Doctor,
		RoomNr:    cmd.RoomNr,
	}
	candidate.RecalculateEndTime()

	var created *AppointmentDetail

	err := s.withStoreLock(ctx, "create", func(lockCtx context.Context) error {
		if err := s.validateOnDay(lockCtx, candidate, uuid.Nil); err != nil {
			return err
		}

		d, err := s.repo.CreateAppointment(lockCtx, candidate)
		if err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return err
			}
			return fmt.Errorf("create appointment: %w", err)
		}
		created = d

		s.logEvent(lockCtx, d.ID, EventAppointmentCreated, map[string]any{
			"start_time": d.StartTime,
			"end_time":   d.EndTime,
			"doctor":     d.Doctor,
			"room_nr":    d.RoomNr,
			"patient_id": d.PatientID.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAppointments("created")
	return created, nil
}

// UpdateAppointment merges the present fields into the stored record and
// revalidates it against the new day, excluding the record itself.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, cmd UpdateAppointmentCommand) (*AppointmentDetail, error) {
	var updated *AppointmentDetail

	err := s.withStoreLock(ctx, "update", func(lockCtx context.Context) error {
		current, err := s.repo.GetAppointment(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("load appointment: %w", err)
		}

		a := current.Appointment
		if cmd.StartTime != nil {
			a.StartTime = LocalTime{*cmd.StartTime}
			a.RecalculateEndTime()
		}
		if cmd.Type != nil {
			if !cmd.Type.IsValid() {
				return fmt.Errorf("%w: %q", ErrInvalidType, *cmd.Type)
			}
			a.Type = *cmd.Type
			a.RecalculateEndTime()
		}
		if cmd.Doctor != nil {
			if err := s.checkDoctor(*cmd.Doctor); err != nil {
				return err
			}
			a.Doctor = *cmd.Doctor
		}
		if cmd.RoomNr != nil {
			if err := s.checkRoom(*cmd.RoomNr); err != nil {
				return err
			}
			a.RoomNr = *cmd.RoomNr
		}

		if err := s.validateOnDay(lockCtx, a, id); err != nil {
			return err
		}

		d, err := s.repo.UpdateAppointment(lockCtx, id, a)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = d

		s.logEvent(lockCtx, id, EventAppointmentUpdated, map[string]any{
			"old_start_time": current.StartTime,
			"start_time":     d.StartTime,
			"end_time":       d.EndTime,
			"doctor":         d.Doctor,
			"room_nr":        d.RoomNr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAppointments("updated")
	return updated, nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	var deleted *Appointment

	err := s.withStoreLock(ctx, "delete", func(lockCtx context.Context) error {
		a, err := s.repo.DeleteAppointment(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return err
			}
			return fmt.Errorf("delete appointment: %w", err)
		}
		deleted = a
		s.logEvent(lockCtx, id, EventAppointmentDeleted, map[string]any{})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncAppointments("deleted")
	return deleted, nil
}

// GetAppointment retrieves an appointment together with its patient
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	d, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return d, nil
}

// ListAppointments returns the appointments selected by f, or all of them when f is nil.
// Reads do not take the store lock.
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error) {
	var (
		list []AppointmentDetail
		err  error
	)

	switch f := f.(type) {
	case nil:
		list, err = s.repo.ListAppointments(ctx)
	case DayFilter:
		list, err = s.repo.ListAppointmentsByDay(ctx, f.Day)
	case MonthFilter:
		list, err = s.repo.ListAppointmentsByMonth(ctx, f.Year, f.Month)
	case PatientFilter:
		list, err = s.repo.ListAppointmentsByPatient(ctx, f.PatientID)
	case DoctorFilter:
		list, err = s.repo.ListAppointmentsByDoctor(ctx, f.Doctor)
	case RoomFilter:
		list, err = s.repo.ListAppointmentsByRoom(ctx, f.Room)
	default:
		return nil, fmt.Errorf("%w: unsupported filter %T", ErrMalformedInput, f)
	}
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

// Patients

func (s *Service) CreatePatient(ctx context.Context, cmd CreatePatientCommand) (*Patient, error) {
	if cmd.Name == "" || cmd.PhoneNumber == "" {
		return nil, fmt.Errorf("%w: name and phone_number are required", ErrMalformedInput)
	}

	p, err := s.repo.CreatePatient(ctx, Patient{
		Name:            cmd.Name,
		PhoneNumber:     cmd.PhoneNumber,
		InsuranceNumber: cmd.InsuranceNumber,
	})
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context) ([]Patient, error) {
	list, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	return list, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, cmd UpdatePatientCommand) (*Patient, error) {
	p, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		p.Name = *cmd.Name
	}
	if cmd.PhoneNumber != nil {
		p.PhoneNumber = *cmd.PhoneNumber
	}
	if cmd.InsuranceNumber != nil {
		p.InsuranceNumber = cmd.InsuranceNumber
	}

	updated, err := s.repo.UpdatePatient(ctx, *p)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return updated, nil
}

// DeletePatient removes the patient and, transitively, all of its appointments.
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var deleted *Patient

	err := s.withStoreLock(ctx, "delete_patient", func(lockCtx context.Context) error {
		p, err := s.repo.DeletePatient(lockCtx, id)
		if err != nil {
			if errors.Is(err, ErrPatientNotFound) {
				return err
			}
			return fmt.Errorf("delete patient: %w", err)
		}
		deleted = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}
