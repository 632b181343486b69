package appointment

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

type Type string

const (
	TypeQuickCheckup  Type = "quick_checkup"
	TypeExtensiveCare Type = "extensive_care"
	TypeSurgery       Type = "surgery"
)

var typeDurations = map[Type]time.Duration{
	TypeQuickCheckup:  30 * time.Minute,
	TypeExtensiveCare: time.Hour,
	TypeSurgery:       2 * time.Hour,
}

func (t Type) IsValid() bool {
	_, ok := typeDurations[t]
	return ok
}

// Duration returns how long an appointment of this type lasts.
func (t Type) Duration() time.Duration {
	return typeDurations[t]
}

func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

func (t *Type) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// LocalTime is a naive timestamp serialized as YYYY-MM-DDTHH:MM:SS.
type LocalTime struct {
	time.Time
}

func (lt LocalTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(lt.Format(schedule.DateTimeLayout))
}

func (lt *LocalTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := schedule.ParseDateTime(s)
	if err != nil {
		return fmt.Errorf("%w: start_time must be YYYY-MM-DDTHH:MM:SS", ErrMalformedInput)
	}
	lt.Time = t
	return nil
}

type Patient struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	PhoneNumber     string    `json:"phone_number"`
	InsuranceNumber *string   `json:"insurance_number,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type Appointment struct {
	ID        uuid.UUID `json:"id"`
	StartTime LocalTime `json:"start_time"`
	EndTime   LocalTime `json:"end_time"`
	Type      Type      `json:"appointment_type"`
	PatientID uuid.UUID `json:"patient_id"`
	Doctor    uint32    `json:"doctor"`
	RoomNr    uint32    `json:"room_nr"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecalculateEndTime derives EndTime from StartTime and Type.
func (a *Appointment) RecalculateEndTime() {
	a.EndTime = LocalTime{a.StartTime.Add(a.Type.Duration())}
}

func (a Appointment) Slot() schedule.Slot {
	return schedule.Slot{
		Start:  a.StartTime.Time,
		End:    a.EndTime.Time,
		Doctor: a.Doctor,
		Room:   a.RoomNr,
	}
}

// AppointmentDetail is an appointment denormalized with its patient.
type AppointmentDetail struct {
	Appointment
	Patient *Patient `json:"patient,omitempty"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

func slotsOf(details []AppointmentDetail, skip uuid.UUID) []schedule.Slot {
	slots := make([]schedule.Slot, 0, len(details))
	for _, d := range details {
		if d.ID == skip {
			continue
		}
		slots = append(slots, d.Slot())
	}
	return slots
}
