package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/metrics"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

// AppointmentService is the part of *appointment.Service the HTTP layer uses.
type AppointmentService interface {
	CreateAppointment(ctx context.Context, cmd appointment.CreateAppointmentCommand) (*appointment.AppointmentDetail, error)
	GetAppointment(ctx context.Context, id uuid.UUID) (*appointment.AppointmentDetail, error)
	ListAppointments(ctx context.Context, f appointment.Filter) ([]appointment.AppointmentDetail, error)
	UpdateAppointment(ctx context.Context, id uuid.UUID, cmd appointment.UpdateAppointmentCommand) (*appointment.AppointmentDetail, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	MassReschedule(ctx context.Context, cmd appointment.MassRescheduleCommand) ([]appointment.AppointmentDetail, error)

	CreatePatient(ctx context.Context, cmd appointment.CreatePatientCommand) (*appointment.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error)
	ListPatients(ctx context.Context) ([]appointment.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, cmd appointment.UpdatePatientCommand) (*appointment.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) (*appointment.Patient, error)

	Calendar() schedule.Calendar
}

var _ AppointmentService = (*appointment.Service)(nil)

type RouterConfig struct {
	Service AppointmentService
	Health  *HealthHandler
	Metrics *metrics.Collector
	Logger  zerolog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	if cfg.Health != nil {
		r.Get("/health/live", cfg.Health.Liveness)
		r.Get("/health/ready", cfg.Health.Readiness)
	}

	svc := cfg.Service
	r.Route("/api", func(r chi.Router) {
		r.Route("/appointment", func(r chi.Router) {
			r.Post("/", createAppointmentHandler(svc))
			r.Get("/", listAppointmentsHandler(svc))
			r.Post("/mass_reschedule", massRescheduleHandler(svc))
			r.Get("/{id}", getAppointmentHandler(svc))
			r.Put("/{id}", updateAppointmentHandler(svc))
			r.Delete("/{id}", deleteAppointmentHandler(svc))
		})

		r.Route("/patient", func(r chi.Router) {
			r.Post("/", createPatientHandler(svc))
			r.Get("/", listPatientsHandler(svc))
			r.Get("/{id}", getPatientHandler(svc))
			r.Put("/{id}", updatePatientHandler(svc))
			r.Delete("/{id}", deletePatientHandler(svc))
		})

		r.Route("/config", func(r chi.Router) {
			r.Get("/doctor_amount", doctorAmountHandler(svc))
			r.Get("/room_amount", roomAmountHandler(svc))
			r.Get("/calendar", calendarHandler(svc))
		})
	})

	return r
}
