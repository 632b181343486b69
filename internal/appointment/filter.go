package appointment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-appointment-scheduling/internal/schedule"
)

// Filter selects a subset of appointments. The set of filters is closed:
// only the filter kinds declared in this file satisfy it.
type Filter interface {
	filter()
}

type DayFilter struct{ Day time.Time }

type MonthFilter struct {
	Year  int
	Month time.Month
}

type PatientFilter struct{ PatientID uuid.UUID }

type DoctorFilter struct{ Doctor uint32 }

type RoomFilter struct{ Room uint32 }

func (DayFilter) filter()     {}
func (MonthFilter) filter()   {}
func (PatientFilter) filter() {}
func (DoctorFilter) filter()  {}
func (RoomFilter) filter()    {}

// ParseFilter builds a Filter from the loosely typed filter/value query pair.
// An empty kind means no filter and returns nil.
func ParseFilter(kind, value string) (Filter, error) {
	kind = strings.TrimSpace(kind)
	value = strings.TrimSpace(value)

	if kind == "" {
		return nil, nil
	}
	if value == "" {
		return nil, fmt.Errorf("%w: filter %q requires a value", ErrMalformedInput, kind)
	}

	switch kind {
	case "day":
		d, err := schedule.ParseDate(value)
		if err != nil {
			return nil, fmt.Errorf("%w: day must be YYYY-MM-DD", ErrMalformedInput)
		}
		return DayFilter{Day: d}, nil
	case "month":
		m, err := time.Parse(schedule.MonthLayout, value)
		if err != nil {
			return nil, fmt.Errorf("%w: month must be YYYY-MM", ErrMalformedInput)
		}
		return MonthFilter{Year: m.Year(), Month: m.Month()}, nil
	case "patient_id":
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("%w: patient_id must be a valid UUID", ErrMalformedInput)
		}
		return PatientFilter{PatientID: id}, nil
	case "doctor":
		n, err := parseUint32(value)
		if err != nil {
			return nil, fmt.Errorf("%w: doctor must be a non-negative integer", ErrMalformedInput)
		}
		return DoctorFilter{Doctor: n}, nil
	case "room_nr":
		n, err := parseUint32(value)
		if err != nil {
			return nil, fmt.Errorf("%w: room_nr must be a non-negative integer", ErrMalformedInput)
		}
		return RoomFilter{Room: n}, nil
	default:
		return nil, fmt.Errorf("%w: unknown filter %q", ErrMalformedInput, kind)
	}
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(n), nil
}
