package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
)

func parseID(w http.ResponseWriter, r *http.Request, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// Appointments

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		cmd, err := req.command()
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), cmd)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, appt)
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter, err := appointment.ParseFilter(q.Get("filter"), q.Get("value"))
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		list, err := svc.ListAppointments(r.Context(), filter)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, list)
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, appt)
	}
}

func updateAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req UpdateAppointmentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		appt, err := svc.UpdateAppointment(r.Context(), id, req.command())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, appt)
	}
}

func deleteAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.DeleteAppointment(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, appt)
	}
}

func massRescheduleHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MassRescheduleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		cmd, err := req.command()
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		moved, err := svc.MassReschedule(r.Context(), cmd)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, moved)
	}
}

// Patients

func createPatientHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreatePatientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		p, err := svc.CreatePatient(r.Context(), appointment.CreatePatientCommand{
			Name:            req.Name,
			PhoneNumber:     req.PhoneNumber,
			InsuranceNumber: req.InsuranceNumber,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusCreated, p)
	}
}

func listPatientsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.ListPatients(r.Context())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, list)
	}
}

func getPatientHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		p, err := svc.GetPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, p)
	}
}

func updatePatientHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		var req UpdatePatientRequest
		if err := decodeJSON(w, r, &req); err != nil {
			handleServiceError(w, r, err)
			return
		}

		p, err := svc.UpdatePatient(r.Context(), id, appointment.UpdatePatientCommand{
			Name:            req.Name,
			PhoneNumber:     req.PhoneNumber,
			InsuranceNumber: req.InsuranceNumber,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, p)
	}
}

func deletePatientHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseID(w, r, "invalid_patient_id")
		if !ok {
			return
		}

		p, err := svc.DeletePatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeData(w, http.StatusOK, p)
	}
}

// Config

func doctorAmountHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// highest valid doctor id
		writeData(w, http.StatusOK, svc.Calendar().DoctorAmount-1)
	}
}

func roomAmountHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, svc.Calendar().RoomAmount-1)
	}
}

func calendarHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeData(w, http.StatusOK, svc.Calendar())
	}
}
