package appointment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

func (f *fixture) seed(t *testing.T, start string, typ Type, doctor, room uint32) Appointment {
	t.Helper()
	return f.repo.seed(Appointment{
		StartTime: LocalTime{ts(t, start)},
		Type:      typ,
		PatientID: f.patient.ID,
		Doctor:    doctor,
		RoomNr:    room,
	})
}

func (f *fixture) reschedule(t *testing.T, doctor uint32, from, to string) ([]AppointmentDetail, error) {
	t.Helper()
	return f.svc.MassReschedule(context.Background(), MassRescheduleCommand{
		DoctorID:  doctor,
		StartDate: date(t, from),
		EndDate:   date(t, to),
	})
}

func TestMassRescheduleMovesToFirstDayAfterLeave(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "2021-01-10T10:00:00", TypeExtensiveCare, 1, 3)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, 1)

	assert.Equal(t, a.ID, moved[0].ID)
	assert.Equal(t, ts(t, "2021-02-01T10:00:00"), moved[0].StartTime.Time)
	assert.Equal(t, ts(t, "2021-02-01T11:00:00"), moved[0].EndTime.Time)
	assert.Equal(t, uint32(3), moved[0].RoomNr)
	assert.Equal(t, []string{EventAppointmentRescheduled}, f.repo.eventTypes())
	assert.Equal(t, 1, f.locker.calls, "the whole run holds one lock")
}

func TestMassRescheduleProbesPastBlockedDays(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2021-02-01T10:00:00", TypeQuickCheckup, 1, 7)  // same doctor blocks day one
	f.seed(t, "2021-02-02T10:15:00", TypeQuickCheckup, 4, 3)  // same room blocks day two
	f.seed(t, "2021-02-03T10:00:00", TypeExtensiveCare, 2, 2) // unrelated doctor and room
	a := f.seed(t, "2021-01-10T10:00:00", TypeExtensiveCare, 1, 3)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, 1)

	assert.Equal(t, a.ID, moved[0].ID)
	assert.Equal(t, ts(t, "2021-02-03T10:00:00"), moved[0].StartTime.Time)
}

func TestMassRescheduleLaterMovesSeeEarlierOnes(t *testing.T) {
	f := newFixture(t)
	first := f.seed(t, "2021-01-10T10:00:00", TypeExtensiveCare, 1, 3)
	second := f.seed(t, "2021-01-11T10:30:00", TypeQuickCheckup, 1, 4)
	third := f.seed(t, "2021-01-11T15:00:00", TypeQuickCheckup, 1, 4)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, 3)

	assert.Equal(t, first.ID, moved[0].ID)
	assert.Equal(t, ts(t, "2021-02-01T10:00:00"), moved[0].StartTime.Time)
	assert.Equal(t, second.ID, moved[1].ID)
	assert.Equal(t, ts(t, "2021-02-02T10:30:00"), moved[1].StartTime.Time)
	assert.Equal(t, third.ID, moved[2].ID)
	assert.Equal(t, ts(t, "2021-02-01T15:00:00"), moved[2].StartTime.Time)
}

func TestMassRescheduleDiscoveryOrder(t *testing.T) {
	f := newFixture(t)
	late := f.seed(t, "2021-01-20T09:00:00", TypeQuickCheckup, 1, 1)
	early := f.seed(t, "2021-01-05T14:00:00", TypeQuickCheckup, 1, 1)
	earlyMorning := f.seed(t, "2021-01-05T08:00:00", TypeQuickCheckup, 1, 2)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, 3)

	assert.Equal(t, earlyMorning.ID, moved[0].ID)
	assert.Equal(t, early.ID, moved[1].ID)
	assert.Equal(t, late.ID, moved[2].ID)
}

func TestMassRescheduleLeavesOthersAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	otherDoctor := f.seed(t, "2021-01-10T10:00:00", TypeQuickCheckup, 2, 3)
	before := f.seed(t, "2020-12-31T10:00:00", TypeQuickCheckup, 1, 3)
	after := f.seed(t, "2021-02-05T10:00:00", TypeQuickCheckup, 1, 3)
	onFirst := f.seed(t, "2021-01-01T16:00:00", TypeQuickCheckup, 1, 3)
	onLast := f.seed(t, "2021-01-31T08:00:00", TypeQuickCheckup, 1, 3)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, 2, "both boundary days of the window are included")
	assert.Equal(t, onFirst.ID, moved[0].ID)
	assert.Equal(t, onLast.ID, moved[1].ID)

	for _, untouched := range []Appointment{otherDoctor, before, after} {
		stored, err := f.svc.GetAppointment(ctx, untouched.ID)
		require.NoError(t, err)
		assert.Equal(t, untouched.StartTime, stored.StartTime)
	}
}

func TestMassRescheduleResultPassesValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cal := f.svc.Calendar()

	f.seed(t, "2021-02-01T08:00:00", TypeSurgery, 1, 1)
	f.seed(t, "2021-02-01T13:00:00", TypeSurgery, 3, 2)
	f.seed(t, "2021-02-02T09:00:00", TypeExtensiveCare, 0, 2)
	originals := map[string]schedule.Clock{}
	for _, start := range []string{
		"2021-01-04T08:00:00", "2021-01-04T09:00:00", "2021-01-05T08:30:00",
		"2021-01-05T13:00:00", "2021-01-06T14:00:00", "2021-01-07T09:00:00",
	} {
		a := f.seed(t, start, TypeExtensiveCare, 1, 2)
		originals[a.ID.String()] = schedule.ClockOf(a.StartTime.Time)
	}

	moved, err := f.reschedule(t, 1, "2021-01-04", "2021-01-31")
	require.NoError(t, err)
	require.Len(t, moved, len(originals))

	for _, m := range moved {
		assert.True(t, m.StartTime.After(ts(t, "2021-01-31T23:59:59")))
		assert.Equal(t, originals[m.ID.String()], schedule.ClockOf(m.StartTime.Time))

		sameDay, err := f.svc.ListAppointments(ctx, DayFilter{Day: schedule.Day(m.StartTime.Time)})
		require.NoError(t, err)
		err = schedule.ValidateTimeframe(m.StartTime.Time, m.EndTime.Time, m.Doctor, m.RoomNr, slotsOf(sameDay, m.ID), cal)
		assert.NoError(t, err)
	}
}

func TestMassRescheduleHorizonExhausted(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.RescheduleHorizonDays = 3
	f.seed(t, "2021-02-01T10:00:00", TypeQuickCheckup, 1, 5)
	f.seed(t, "2021-02-02T10:00:00", TypeQuickCheckup, 1, 5)
	f.seed(t, "2021-02-03T10:00:00", TypeQuickCheckup, 1, 5)
	f.seed(t, "2021-01-10T10:00:00", TypeQuickCheckup, 1, 3)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	assert.Nil(t, moved)
	assert.ErrorIs(t, err, ErrNoSlotFound)

	var rerr *RescheduleError
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, rerr.Committed)
}

func TestMassReschedulePartialFailureIsNotRolledBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.seed(t, "2021-01-10T10:00:00", TypeQuickCheckup, 1, 3)
	second := f.seed(t, "2021-01-12T10:00:00", TypeQuickCheckup, 1, 3)
	f.repo.failUpdatesAfter = 1

	_, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)

	var rerr *RescheduleError
	require.ErrorAs(t, err, &rerr)
	require.Len(t, rerr.Committed, 1)
	assert.Equal(t, first.ID, rerr.Committed[0].ID)

	stored, err := f.svc.GetAppointment(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ts(t, "2021-02-01T10:00:00"), stored.StartTime.Time)

	stored, err = f.svc.GetAppointment(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, second.StartTime, stored.StartTime)
}

func TestMassRescheduleStopsWhenLockIsLost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.seed(t, "2021-01-10T10:00:00", TypeQuickCheckup, 1, 3)
	f.locker.lost = true

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	assert.Nil(t, moved)
	assert.ErrorIs(t, err, redisclient.ErrLockLost)
	assert.ErrorIs(t, err, context.Canceled)

	var rerr *RescheduleError
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, rerr.Committed)

	stored, err := f.svc.GetAppointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.StartTime, stored.StartTime)
}

func TestMassRescheduleStoreErrorDuringDiscovery(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "2021-01-10T10:00:00", TypeQuickCheckup, 1, 3)
	f.repo.failDayReads = true

	_, err := f.reschedule(t, 1, "2021-01-01", "2021-01-31")
	assert.ErrorIs(t, err, errStoreDown)

	var rerr *RescheduleError
	require.ErrorAs(t, err, &rerr)
	assert.Empty(t, rerr.Committed)
}

func TestMassRescheduleInputErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.reschedule(t, 7, "2021-01-01", "2021-01-31")
	assert.ErrorIs(t, err, ErrInvalidDoctor)

	_, err = f.reschedule(t, 1, "2021-01-31", "2021-01-01")
	assert.ErrorIs(t, err, ErrMalformedInput)

	_, err = f.reschedule(t, 1, "2021-01-01", "2022-01-02")
	assert.ErrorIs(t, err, ErrMalformedInput, "367 day window")

	assert.Equal(t, 0, f.locker.calls)
}

func TestMassRescheduleLongestWindow(t *testing.T) {
	f := newFixture(t)
	a := f.seed(t, "2021-06-15T10:00:00", TypeQuickCheckup, 1, 3)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2022-01-01")
	require.NoError(t, err)
	require.Len(t, moved, 1)
	assert.Equal(t, a.ID, moved[0].ID)
	assert.Equal(t, ts(t, "2022-01-02T10:00:00"), moved[0].StartTime.Time)
}

func TestMassRescheduleNothingToMove(t *testing.T) {
	f := newFixture(t)

	moved, err := f.reschedule(t, 1, "2021-01-01", "2021-01-01")
	require.NoError(t, err)
	assert.NotNil(t, moved)
	assert.Empty(t, moved)
}
