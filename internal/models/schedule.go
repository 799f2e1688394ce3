package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ScheduleMode describes where a session takes place.
type ScheduleMode string

const (
	ScheduleModeOnline  ScheduleMode = "online"
	ScheduleModeOffline ScheduleMode = "offline"
)

// ClockTime is a time of day stored as minutes after midnight.
type ClockTime int

// EndOfDay is midnight at the end of the day, written "24:00". It is only
// meaningful as the end of a slot.
const EndOfDay ClockTime = 24 * 60

// NewClockTime builds a ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(hour*60 + minute)
}

// ParseClockTime accepts "HH:MM" or "HH:MM:SS", plus "24:00" for EndOfDay.
func ParseClockTime(raw string) (ClockTime, error) {
	raw = strings.TrimSpace(raw)
	if raw == "24:00" || raw == "24:00:00" {
		return EndOfDay, nil
	}
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return ClockTime(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// Minutes returns the offset from midnight.
func (t ClockTime) Minutes() int { return int(t) }

// String renders "HH:MM".
func (t ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t lies within a single day.
func (t ClockTime) Valid() bool {
	return t >= 0 && t < EndOfDay
}

// ValidEnd reports whether t can close a slot: any time of day or EndOfDay.
func (t ClockTime) ValidEnd() bool {
	return t > 0 && t <= EndOfDay
}

// MarshalJSON renders the "HH:MM" form.
func (t ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON parses the "HH:MM" form.
func (t *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Scan implements sql.Scanner for Postgres TIME columns.
func (t *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		*t = ClockTime(v.Hour()*60 + v.Minute())
		return nil
	case []byte:
		return t.scanString(string(v))
	case string:
		return t.scanString(v)
	case int64:
		*t = ClockTime(v)
		return nil
	case nil:
		*t = 0
		return nil
	}
	return fmt.Errorf("cannot scan %T into ClockTime", src)
}

func (t *ClockTime) scanString(raw string) error {
	parsed, err := ParseClockTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements driver.Valuer.
func (t ClockTime) Value() (driver.Value, error) {
	return t.String() + ":00", nil
}

// Schedule is one weekly recurring slot of a course. Status mirrors the
// owning course.
type Schedule struct {
	ID        int64        `db:"id" json:"id"`
	TutorID   int64        `db:"tutor_id" json:"tutor_id"`
	CourseID  int64        `db:"course_id" json:"course_id"`
	DayOfWeek int          `db:"day_of_week" json:"day_of_week"`
	StartTime ClockTime    `db:"start_time" json:"start_time"`
	EndTime   ClockTime    `db:"end_time" json:"end_time"`
	Mode      ScheduleMode `db:"mode" json:"mode"`
	Location  string       `db:"location" json:"location"`
	Status    CourseStatus `db:"status" json:"status"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
}

// Active reports whether the schedule still takes part in conflict checks.
func (s Schedule) Active() bool {
	return !s.Status.Terminal()
}

// ScheduleConflictError describes an overlap that blocked a write.
type ScheduleConflictError struct {
	Candidate Schedule `json:"candidate"`
	Existing  Schedule `json:"existing"`
}

// Error implements error.
func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("day %d %s-%s overlaps schedule %d (%s-%s)",
		e.Candidate.DayOfWeek, e.Candidate.StartTime, e.Candidate.EndTime,
		e.Existing.ID, e.Existing.StartTime, e.Existing.EndTime)
}
