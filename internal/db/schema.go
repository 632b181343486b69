package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Timestamps are naive: start and end times carry no zone and are compared
// as wall clock values.
const schema = `
CREATE TABLE IF NOT EXISTS patients (
    id               UUID PRIMARY KEY,
    name             TEXT NOT NULL,
    phone_number     TEXT NOT NULL,
    insurance_number TEXT,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS appointments (
    id               UUID PRIMARY KEY,
    start_time       TIMESTAMP NOT NULL,
    end_time         TIMESTAMP NOT NULL,
    appointment_type TEXT NOT NULL CHECK (appointment_type IN ('quick_checkup', 'extensive_care', 'surgery')),
    patient_id       UUID NOT NULL REFERENCES patients (id) ON DELETE CASCADE,
    doctor           BIGINT NOT NULL CHECK (doctor >= 0),
    room_nr          BIGINT NOT NULL CHECK (room_nr >= 0),
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (end_time > start_time)
);

CREATE INDEX IF NOT EXISTS idx_appointments_start_time ON appointments (start_time);
CREATE INDEX IF NOT EXISTS idx_appointments_patient_id ON appointments (patient_id);
CREATE INDEX IF NOT EXISTS idx_appointments_doctor ON appointments (doctor, start_time);
CREATE INDEX IF NOT EXISTS idx_appointments_room_nr ON appointments (room_nr, start_time);

CREATE TABLE IF NOT EXISTS event_logs (
    id             BIGSERIAL PRIMARY KEY,
    event_type     TEXT NOT NULL,
    appointment_id UUID,
    payload        JSONB,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_event_logs_appointment_id ON event_logs (appointment_id);
`

// EnsureSchema creates the tables the appointment store needs. It is safe to
// run on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
