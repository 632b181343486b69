package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-appointment-scheduling/internal/app"
	"github.com/hackgods/clinic-appointment-scheduling/internal/appointment"
	"github.com/hackgods/clinic-appointment-scheduling/internal/config"
	"github.com/hackgods/clinic-appointment-scheduling/internal/logger"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

var appointmentTypes = []appointment.Type{
	appointment.TypeQuickCheckup,
	appointment.TypeExtensiveCare,
	appointment.TypeSurgery,
}

func main() {
	if err := run(); err != nil {
		fallback := zerolog.New(os.Stderr).With().Timestamp().Str("service", "seed").Logger()
		fallback.Fatal().Err(err).Msg("seed failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger setup: %w", err)
	}
	log = log.With().Str("service", "seed").Logger()
	log.Info().Msg("seed starting")

	ctx := context.Background()
	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer a.Close()

	patients, err := seedPatients(ctx, a.Pool, log, getInt("SEED_PATIENTS", 500))
	if err != nil {
		return fmt.Errorf("seed patients: %w", err)
	}

	start := schedule.Day(time.Now()).AddDate(0, 0, 1)
	if err := seedAppointments(ctx, a.Service, log, patients, start, getInt("SEED_DAYS", 10), getInt("SEED_ATTEMPTS_PER_DAY", 60)); err != nil {
		return fmt.Errorf("seed appointments: %w", err)
	}

	log.Info().Msg("seed complete")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger, count int) ([]uuid.UUID, error) {
	log.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	ids := make([]uuid.UUID, 0, count)

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			var insurance *string
			if gofakeit.Bool() {
				n := gofakeit.Numerify("INS-########")
				insurance = &n
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone_number, insurance_number, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, gofakeit.Name(), gofakeit.Phone(), insurance)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Info().Int("seeded", end).Int("total", count).Msg("patients batch committed")
	}

	return ids, nil
}

// seedAppointments books random candidates through the service so that every
// stored appointment passes timeframe validation. Rejected candidates are
// skipped.
func seedAppointments(ctx context.Context, svc *appointment.Service, log zerolog.Logger, patients []uuid.UUID, from time.Time, days, attempts int) error {
	if len(patients) == 0 {
		return nil
	}
	cal := svc.Calendar()
	quarters := int(time.Duration(cal.ClosingTime-cal.OpeningTime) / (15 * time.Minute))

	booked, rejected := 0, 0
	for d := 0; d < days; d++ {
		day := from.AddDate(0, 0, d)
		for i := 0; i < attempts; i++ {
			offset := time.Duration(gofakeit.Number(0, quarters-1)) * 15 * time.Minute
			_, err := svc.CreateAppointment(ctx, appointment.CreateAppointmentCommand{
				StartTime: day.Add(time.Duration(cal.OpeningTime) + offset),
				Type:      appointmentTypes[gofakeit.Number(0, len(appointmentTypes)-1)],
				PatientID: patients[gofakeit.Number(0, len(patients)-1)],
				Doctor:    uint32(gofakeit.Number(0, int(cal.DoctorAmount)-1)),
				RoomNr:    uint32(gofakeit.Number(0, int(cal.RoomAmount)-1)),
			})
			var verr *schedule.ValidationError
			switch {
			case err == nil:
				booked++
			case errors.As(err, &verr):
				rejected++
			default:
				return err
			}
		}
		log.Info().Str("day", day.Format(schedule.DateLayout)).Int("booked", booked).Msg("day seeded")
	}

	log.Info().Int("booked", booked).Int("rejected", rejected).Msg("appointments seeded")
	return nil
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
