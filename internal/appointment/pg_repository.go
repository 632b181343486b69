package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE foreign_key_violation
const pgForeignKeyViolation = "23503"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const patientColumns = `id, name, phone_number, insurance_number, created_at, updated_at`

const appointmentColumns = `id, start_time, end_time, appointment_type, patient_id, doctor, room_nr, created_at, updated_at`

const detailSelect = `
	SELECT a.id, a.start_time, a.end_time, a.appointment_type, a.patient_id, a.doctor, a.room_nr,
	       a.created_at, a.updated_at,
	       p.id, p.name, p.phone_number, p.insurance_number, p.created_at, p.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id`

// Helpers

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.InsuranceNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, storeError("scan patient", err)
	}

	return &p, nil
}

type appointmentRow struct {
	start, end     time.Time
	kind           string
	doctor, roomNr int32
}

func (r appointmentRow) into(a *Appointment) {
	a.StartTime = LocalTime{r.start}
	a.EndTime = LocalTime{r.end}
	a.Type = Type(r.kind)
	a.Doctor = uint32(r.doctor)
	a.RoomNr = uint32(r.roomNr)
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var r appointmentRow

	err := row.Scan(
		&a.ID,
		&r.start,
		&r.end,
		&r.kind,
		&a.PatientID,
		&r.doctor,
		&r.roomNr,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeError("scan appointment", err)
	}

	r.into(&a)
	return &a, nil
}

func scanAppointmentDetail(row pgx.Row) (*AppointmentDetail, error) {
	var d AppointmentDetail
	var r appointmentRow
	var p Patient

	err := row.Scan(
		&d.ID,
		&r.start,
		&r.end,
		&r.kind,
		&d.PatientID,
		&r.doctor,
		&r.roomNr,
		&d.CreatedAt,
		&d.UpdatedAt,
		&p.ID,
		&p.Name,
		&p.PhoneNumber,
		&p.InsuranceNumber,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, storeError("scan appointment", err)
	}

	r.into(&d.Appointment)
	d.Patient = &p
	return &d, nil
}

func (r *PgRepository) queryDetails(ctx context.Context, where string, args ...any) ([]AppointmentDetail, error) {
	rows, err := r.pool.Query(ctx, detailSelect+"\n"+where+"\nORDER BY a.start_time, a.created_at", args...)
	if err != nil {
		return nil, storeError("query appointments", err)
	}
	defer rows.Close()

	result := []AppointmentDetail{}
	for rows.Next() {
		d, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate appointments", err)
	}

	return result, nil
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// Patients

func (r *PgRepository) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, name, phone_number, insurance_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		RETURNING `+patientColumns,
		uuid.New(), p.Name, p.PhoneNumber, p.InsuranceNumber)
	return scanPatient(row)
}

func (r *PgRepository) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListPatients(ctx context.Context) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+patientColumns+`
		FROM patients
		ORDER BY name, created_at
	`)
	if err != nil {
		return nil, storeError("query patients", err)
	}
	defer rows.Close()

	result := []Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, storeError("iterate patients", err)
	}

	return result, nil
}

func (r *PgRepository) UpdatePatient(ctx context.Context, p Patient) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE patients
		SET name = $2,
		    phone_number = $3,
		    insurance_number = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+patientColumns,
		p.ID, p.Name, p.PhoneNumber, p.InsuranceNumber)
	return scanPatient(row)
}

func (r *PgRepository) DeletePatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	// appointments.patient_id cascades
	row := r.pool.QueryRow(ctx, `
		DELETE FROM patients
		WHERE id = $1
		RETURNING `+patientColumns, id)
	return scanPatient(row)
}

// Appointments

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			INSERT INTO appointments (id, start_time, end_time, appointment_type, patient_id, doctor, room_nr, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			RETURNING `+appointmentColumns+`
		)
		SELECT a.id, a.start_time, a.end_time, a.appointment_type, a.patient_id, a.doctor, a.room_nr,
		       a.created_at, a.updated_at,
		       p.id, p.name, p.phone_number, p.insurance_number, p.created_at, p.updated_at
		FROM a
		JOIN patients p ON p.id = a.patient_id
	`, uuid.New(), a.StartTime.Time, a.EndTime.Time, string(a.Type), a.PatientID, int64(a.Doctor), int64(a.RoomNr))

	d, err := scanAppointmentDetail(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}
	return d, nil
}

func (r *PgRepository) GetAppointment(ctx context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, detailSelect+"\nWHERE a.id = $1", id)
	return scanAppointmentDetail(row)
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, id uuid.UUID, a Appointment) (*AppointmentDetail, error) {
	row := r.pool.QueryRow(ctx, `
		WITH a AS (
			UPDATE appointments
			SET start_time = $2,
			    end_time = $3,
			    appointment_type = $4,
			    doctor = $5,
			    room_nr = $6,
			    updated_at = now()
			WHERE id = $1
			RETURNING `+appointmentColumns+`
		)
		SELECT a.id, a.start_time, a.end_time, a.appointment_type, a.patient_id, a.doctor, a.room_nr,
		       a.created_at, a.updated_at,
		       p.id, p.name, p.phone_number, p.insurance_number, p.created_at, p.updated_at
		FROM a
		JOIN patients p ON p.id = a.patient_id
	`, id, a.StartTime.Time, a.EndTime.Time, string(a.Type), int64(a.Doctor), int64(a.RoomNr))
	return scanAppointmentDetail(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		DELETE FROM appointments
		WHERE id = $1
		RETURNING `+appointmentColumns, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointments(ctx context.Context) ([]AppointmentDetail, error) {
	return r.queryDetails(ctx, "")
}

func (r *PgRepository) ListAppointmentsByDay(ctx context.Context, day time.Time) ([]AppointmentDetail, error) {
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return r.queryDetails(ctx, "WHERE a.start_time >= $1 AND a.start_time < $2", from, from.AddDate(0, 0, 1))
}

func (r *PgRepository) ListAppointmentsByMonth(ctx context.Context, year int, month time.Month) ([]AppointmentDetail, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return r.queryDetails(ctx, "WHERE a.start_time >= $1 AND a.start_time < $2", from, from.AddDate(0, 1, 0))
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	return r.queryDetails(ctx, "WHERE a.patient_id = $1", patientID)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctor uint32) ([]AppointmentDetail, error) {
	return r.queryDetails(ctx, "WHERE a.doctor = $1", int64(doctor))
}

func (r *PgRepository) ListAppointmentsByRoom(ctx context.Context, room uint32) ([]AppointmentDetail, error) {
	return r.queryDetails(ctx, "WHERE a.room_nr = $1", int64(room))
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
