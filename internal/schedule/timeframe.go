package schedule

import (
	"errors"
	"fmt"
	"time"
)

type Reason string

const (
	ReasonOutsideHours Reason = "outside_hours"
	ReasonDuringBreak  Reason = "during_break"
	ReasonSpansBreak   Reason = "spans_break"
	ReasonOverlap      Reason = "overlap"
)

var (
	ErrOutsideHours = errors.New("appointment is outside of opening hours")
	ErrDuringBreak  = errors.New("appointment is during break time")
	ErrSpansBreak   = errors.New("appointment cannot span across break time")
	ErrOverlap      = errors.New("appointment overlaps with another appointment")
)

var reasonErrors = map[Reason]error{
	ReasonOutsideHours: ErrOutsideHours,
	ReasonDuringBreak:  ErrDuringBreak,
	ReasonSpansBreak:   ErrSpansBreak,
	ReasonOverlap:      ErrOverlap,
}

// ValidationError reports which timeframe rule rejected a candidate.
// It matches the per-reason sentinel through errors.Is.
type ValidationError struct {
	Reason Reason
	// Conflict is the booking the candidate collided with, set for ReasonOverlap.
	Conflict *Slot
}

func (e *ValidationError) Error() string {
	msg := reasonErrors[e.Reason].Error()
	if e.Conflict != nil {
		return fmt.Sprintf("%s (doctor %d, room %d, %s-%s)", msg, e.Conflict.Doctor, e.Conflict.Room,
			e.Conflict.Start.Format(DateTimeLayout), e.Conflict.End.Format(DateTimeLayout))
	}
	return msg
}

func (e *ValidationError) Unwrap() error {
	return reasonErrors[e.Reason]
}

// Slot is a doctor/room booking over the half-open interval [Start, End).
type Slot struct {
	Start  time.Time
	End    time.Time
	Doctor uint32
	Room   uint32
}

// Overlaps reports whether both slots share a doctor or a room and their
// intervals intersect. Touching endpoints do not overlap.
func (s Slot) Overlaps(other Slot) bool {
	if s.Doctor != other.Doctor && s.Room != other.Room {
		return false
	}
	return s.Start.Before(other.End) && s.End.After(other.Start)
}

// ValidateTimeframe decides whether the candidate [start, end) for doctor and
// room is admissible against the calendar and the existing bookings. Rules are
// checked in a fixed order and the first failing one is returned. Hours and
// break rules compare clock times only, so a candidate starting after closing
// whose end wraps past midnight to a clock inside opening hours is accepted.
func ValidateTimeframe(start, end time.Time, doctor, room uint32, existing []Slot, cal Calendar) error {
	startClock, endClock := ClockOf(start), ClockOf(end)
	breakEnd := cal.BreakEnd()

	if startClock < cal.OpeningTime || endClock > cal.ClosingTime {
		return &ValidationError{Reason: ReasonOutsideHours}
	}

	if (startClock >= cal.BreakTime && startClock < breakEnd) ||
		(endClock > cal.BreakTime && endClock <= breakEnd) {
		return &ValidationError{Reason: ReasonDuringBreak}
	}

	if startClock < cal.BreakTime && endClock > cal.BreakTime {
		return &ValidationError{Reason: ReasonSpansBreak}
	}

	candidate := Slot{Start: start, End: end, Doctor: doctor, Room: room}
	for i := range existing {
		if candidate.Overlaps(existing[i]) {
			conflict := existing[i]
			return &ValidationError{Reason: ReasonOverlap, Conflict: &conflict}
		}
	}

	return nil
}
