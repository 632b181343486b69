package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// BreakDuration is the fixed length of the daily clinic break.
const BreakDuration = time.Hour

const (
	DateLayout     = "2006-01-02"
	MonthLayout    = "2006-01"
	DateTimeLayout = "2006-01-02T15:04:05"
)

// Clock is a time of day expressed as the offset from midnight.
type Clock time.Duration

// ClockOf returns the time-of-day part of t.
func ClockOf(t time.Time) Clock {
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond()))
}

// ParseClock accepts HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	layout := "15:04:05"
	if strings.Count(s, ":") == 1 {
		layout = "15:04"
	}
	t, err := time.Parse(layout, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return ClockOf(t), nil
}

func (c Clock) Add(d time.Duration) Clock {
	return c + Clock(d)
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(b []byte) error {
	parsed, err := ParseClock(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Calendar holds the static operating parameters of the clinic.
type Calendar struct {
	OpeningTime  Clock  `json:"opening_time"`
	ClosingTime  Clock  `json:"closing_time"`
	BreakTime    Clock  `json:"break_time"`
	DoctorAmount uint32 `json:"doctor_amount"`
	RoomAmount   uint32 `json:"room_amount"`
}

func (c Calendar) BreakEnd() Clock {
	return c.BreakTime.Add(BreakDuration)
}

func (c Calendar) IsValidDoctor(doctor uint32) bool {
	return doctor < c.DoctorAmount
}

func (c Calendar) IsValidRoom(room uint32) bool {
	return room < c.RoomAmount
}

// Validate checks that the calendar describes a usable working day.
func (c Calendar) Validate() error {
	if c.DoctorAmount == 0 {
		return errors.New("doctor amount must be greater than zero")
	}
	if c.RoomAmount == 0 {
		return errors.New("room amount must be greater than zero")
	}
	if c.OpeningTime >= c.ClosingTime {
		return fmt.Errorf("opening time %s must be before closing time %s", c.OpeningTime, c.ClosingTime)
	}
	if c.BreakTime < c.OpeningTime || c.BreakEnd() > c.ClosingTime {
		return fmt.Errorf("break %s-%s must lie within opening hours %s-%s",
			c.BreakTime, c.BreakEnd(), c.OpeningTime, c.ClosingTime)
	}
	return nil
}

// Day truncates t to midnight of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// OnDate moves t to the given date keeping its clock time.
func OnDate(t, date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(DateTimeLayout, strings.TrimSpace(s))
}
