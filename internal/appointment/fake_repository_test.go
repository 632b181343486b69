package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	redisclient "github.com/hackgods/clinic-appointment-scheduling/internal/redis"
)

var errStoreDown = errors.New("connection refused")

// memRepository is an in-memory Repository for service tests.
type memRepository struct {
	mu           sync.Mutex
	patients     map[uuid.UUID]Patient
	appointments map[uuid.UUID]Appointment
	order        []uuid.UUID
	events       []EventLog
	dayReads     []time.Time

	// failUpdatesAfter makes UpdateAppointment fail once this many updates succeeded; <0 disables.
	failUpdatesAfter int
	updates          int
	failDayReads     bool
}

func newMemRepository() *memRepository {
	return &memRepository{
		patients:         map[uuid.UUID]Patient{},
		appointments:     map[uuid.UUID]Appointment{},
		failUpdatesAfter: -1,
	}
}

func (r *memRepository) detail(a Appointment) AppointmentDetail {
	p := r.patients[a.PatientID]
	return AppointmentDetail{Appointment: a, Patient: &p}
}

func (r *memRepository) selectWhere(keep func(Appointment) bool) []AppointmentDetail {
	result := []AppointmentDetail{}
	for _, id := range r.order {
		a := r.appointments[id]
		if keep(a) {
			result = append(result, r.detail(a))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime.Time)
	})
	return result
}

func (r *memRepository) CreatePatient(_ context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.patients[p.ID] = p
	return &p, nil
}

func (r *memRepository) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *memRepository) ListPatients(_ context.Context) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	result := []Patient{}
	for _, p := range r.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *memRepository) UpdatePatient(_ context.Context, p Patient) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[p.ID]; !ok {
		return nil, ErrPatientNotFound
	}
	p.UpdatedAt = time.Now()
	r.patients[p.ID] = p
	return &p, nil
}

func (r *memRepository) DeletePatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	delete(r.patients, id)
	kept := r.order[:0]
	for _, aid := range r.order {
		if r.appointments[aid].PatientID == id {
			delete(r.appointments, aid)
			continue
		}
		kept = append(kept, aid)
	}
	r.order = kept
	return &p, nil
}

func (r *memRepository) CreateAppointment(_ context.Context, a Appointment) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[a.PatientID]; !ok {
		return nil, ErrPatientNotFound
	}
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.appointments[a.ID] = a
	r.order = append(r.order, a.ID)
	d := r.detail(a)
	return &d, nil
}

func (r *memRepository) GetAppointment(_ context.Context, id uuid.UUID) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	d := r.detail(a)
	return &d, nil
}

func (r *memRepository) UpdateAppointment(_ context.Context, id uuid.UUID, a Appointment) (*AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdatesAfter >= 0 && r.updates >= r.failUpdatesAfter {
		return nil, errStoreDown
	}
	current, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.ID = id
	a.PatientID = current.PatientID
	a.CreatedAt = current.CreatedAt
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	r.updates++
	d := r.detail(a)
	return &d, nil
}

func (r *memRepository) DeleteAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	for i, aid := range r.order {
		if aid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return &a, nil
}

func (r *memRepository) ListAppointments(_ context.Context) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectWhere(func(Appointment) bool { return true }), nil
}

func (r *memRepository) ListAppointmentsByDay(_ context.Context, day time.Time) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failDayReads {
		return nil, errStoreDown
	}
	r.dayReads = append(r.dayReads, day)
	y, m, d := day.Date()
	return r.selectWhere(func(a Appointment) bool {
		ay, am, ad := a.StartTime.Date()
		return ay == y && am == m && ad == d
	}), nil
}

func (r *memRepository) ListAppointmentsByMonth(_ context.Context, year int, month time.Month) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectWhere(func(a Appointment) bool {
		return a.StartTime.Year() == year && a.StartTime.Month() == month
	}), nil
}

func (r *memRepository) ListAppointmentsByPatient(_ context.Context, patientID uuid.UUID) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectWhere(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *memRepository) ListAppointmentsByDoctor(_ context.Context, doctor uint32) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectWhere(func(a Appointment) bool { return a.Doctor == doctor }), nil
}

func (r *memRepository) ListAppointmentsByRoom(_ context.Context, room uint32) ([]AppointmentDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectWhere(func(a Appointment) bool { return a.RoomNr == room }), nil
}

func (r *memRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *memRepository) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		types = append(types, ev.EventType)
	}
	return types
}

// seed stores an appointment directly, bypassing validation.
func (r *memRepository) seed(a Appointment) Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = uuid.New()
	a.RecalculateEndTime()
	r.appointments[a.ID] = a
	r.order = append(r.order, a.ID)
	return a
}

// mutexLocker serializes callers within the test process. With lost set, fn
// runs on a context already cancelled the way a lost Redis lock cancels it.
type mutexLocker struct {
	mu    sync.Mutex
	calls int
	err   error
	lost  bool
}

func (l *mutexLocker) WithStoreLock(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.lost {
		lockCtx, cancel := context.WithCancelCause(ctx)
		cancel(redisclient.ErrLockLost)
		if err := fn(lockCtx); err != nil {
			return fmt.Errorf("%w: %w", redisclient.ErrLockLost, err)
		}
		return redisclient.ErrLockLost
	}
	return fn(ctx)
}
