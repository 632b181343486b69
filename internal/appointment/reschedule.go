package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

const (
	defaultRescheduleHorizonDays = 365
	maxLeaveWindowDays           = 366
)

type MassRescheduleCommand struct {
	DoctorID  uint32
	StartDate time.Time
	EndDate   time.Time
}

// RescheduleError aborts a mass reschedule run. Moves committed before the
// failure are not rolled back and are listed in Committed.
type RescheduleError struct {
	Committed []AppointmentDetail
	Err       error
}

func (e *RescheduleError) Error() string {
	return fmt.Sprintf("mass reschedule aborted after %d committed moves: %v", len(e.Committed), e.Err)
}

func (e *RescheduleError) Unwrap() error {
	return e.Err
}

// MassReschedule moves every appointment of the doctor dated inside the leave
// window to the first day after the window on which it passes timeframe
// validation, keeping its clock time. Appointments are processed one at a
// time and each move is committed before the next one is probed, so later
// moves see earlier ones. The whole run holds the store lock.
func (s *Service) MassReschedule(ctx context.Context, cmd MassRescheduleCommand) ([]AppointmentDetail, error) {
	if err := s.checkDoctor(cmd.DoctorID); err != nil {
		return nil, err
	}

	from, to := schedule.Day(cmd.StartDate), schedule.Day(cmd.EndDate)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: end_date %s is before start_date %s", ErrMalformedInput,
			to.Format(schedule.DateLayout), from.Format(schedule.DateLayout))
	}
	if days := int(to.Sub(from).Round(24*time.Hour)/(24*time.Hour)) + 1; days > maxLeaveWindowDays {
		return nil, fmt.Errorf("%w: leave window of %d days exceeds %d days", ErrMalformedInput, days, maxLeaveWindowDays)
	}

	log := s.log.With().
		Uint32("doctor", cmd.DoctorID).
		Str("leave_start", from.Format(schedule.DateLayout)).
		Str("leave_end", to.Format(schedule.DateLayout)).
		Logger()

	var updated []AppointmentDetail

	err := s.withStoreLock(ctx, "mass_reschedule", func(lockCtx context.Context) error {
		affected, err := s.affectedAppointments(lockCtx, cmd.DoctorID, from, to)
		if err != nil {
			return err
		}
		log.Info().Int("affected", len(affected)).Msg("mass reschedule started")

		firstDay := to.AddDate(0, 0, 1)
		for _, a := range affected {
			d, err := s.relocate(lockCtx, a, firstDay)
			if err != nil {
				return err
			}
			updated = append(updated, *d)
			s.metrics.IncRescheduled()
		}
		return nil
	})
	if err != nil {
		if len(updated) > 0 {
			log.Warn().Err(err).Int("committed", len(updated)).
				Msg("mass reschedule aborted, committed moves were not rolled back")
		}
		var runErr *rescheduleRunError
		if errors.As(err, &runErr) {
			cause := runErr.err
			if errors.Is(err, redisclient.ErrLockLost) && !errors.Is(cause, redisclient.ErrLockLost) {
				cause = fmt.Errorf("%w: %w", redisclient.ErrLockLost, cause)
			}
			return nil, &RescheduleError{Committed: updated, Err: cause}
		}
		return nil, err
	}

	log.Info().Int("moved", len(updated)).Msg("mass reschedule complete")
	if updated == nil {
		updated = []AppointmentDetail{}
	}
	return updated, nil
}

// rescheduleRunError marks failures that happened inside the run, as opposed
// to failing to acquire the store lock.
type rescheduleRunError struct{ err error }

func (e *rescheduleRunError) Error() string { return e.err.Error() }
func (e *rescheduleRunError) Unwrap() error { return e.err }

// affectedAppointments collects the doctor's appointments day by day over the
// inclusive window. Rooms are not filtered on.
func (s *Service) affectedAppointments(ctx context.Context, doctor uint32, from, to time.Time) ([]AppointmentDetail, error) {
	var affected []AppointmentDetail
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		list, err := s.repo.ListAppointmentsByDay(ctx, day)
		if err != nil {
			return nil, &rescheduleRunError{fmt.Errorf("load appointments of %s: %w", day.Format(schedule.DateLayout), err)}
		}
		for _, a := range list {
			if a.Doctor == doctor {
				affected = append(affected, a)
			}
		}
	}
	return affected, nil
}

// relocate probes forward one day at a time starting at firstDay and commits
// the appointment on the first day where it validates.
func (s *Service) relocate(ctx context.Context, current AppointmentDetail, firstDay time.Time) (*AppointmentDetail, error) {
	horizon := s.cfg.RescheduleHorizonDays
	if horizon <= 0 {
		horizon = defaultRescheduleHorizonDays
	}

	a := current.Appointment
	day := firstDay
	for probe := 0; probe < horizon; probe++ {
		if err := ctx.Err(); err != nil {
			return nil, &rescheduleRunError{err}
		}

		a.StartTime = LocalTime{schedule.OnDate(current.StartTime.Time, day)}
		a.EndTime = LocalTime{schedule.OnDate(current.EndTime.Time, day)}

		sameDay, err := s.repo.ListAppointmentsByDay(ctx, day)
		if err != nil {
			return nil, &rescheduleRunError{fmt.Errorf("load appointments of %s: %w", day.Format(schedule.DateLayout), err)}
		}

		err = schedule.ValidateTimeframe(a.StartTime.Time, a.EndTime.Time, a.Doctor, a.RoomNr,
			slotsOf(sameDay, a.ID), s.cfg.Calendar)
		if err == nil {
			d, err := s.repo.UpdateAppointment(ctx, a.ID, a)
			if err != nil {
				return nil, &rescheduleRunError{fmt.Errorf("update appointment %s: %w", a.ID, err)}
			}

			s.logEvent(ctx, a.ID, EventAppointmentRescheduled, map[string]any{
				"old_start_time": current.StartTime,
				"start_time":     d.StartTime,
				"end_time":       d.EndTime,
				"probed_days":    probe + 1,
			})
			return d, nil
		}

		var verr *schedule.ValidationError
		if !errors.As(err, &verr) {
			return nil, &rescheduleRunError{err}
		}
		day = day.AddDate(0, 0, 1)
	}

	return nil, &rescheduleRunError{fmt.Errorf("%w: appointment %s after %d days", ErrNoSlotFound, a.ID, horizon)}
}
