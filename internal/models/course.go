package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CourseStatus enumerates lifecycle states of a course.
type CourseStatus string

const (
	CourseStatusComing    CourseStatus = "coming"
	CourseStatusOngoing   CourseStatus = "ongoing"
	CourseStatusCompleted CourseStatus = "completed"
	CourseStatusCanceled  CourseStatus = "canceled"
)

// Terminal reports whether no further transition is possible.
func (s CourseStatus) Terminal() bool {
	return s == CourseStatusCompleted || s == CourseStatusCanceled
}

// Valid reports whether s is a known status.
func (s CourseStatus) Valid() bool {
	switch s {
	case CourseStatusComing, CourseStatusOngoing, CourseStatusCompleted, CourseStatusCanceled:
		return true
	}
	return false
}

// Course is a tutor-owned offering with weekly schedules.
type Course struct {
	ID          int64           `db:"id" json:"id"`
	TutorID     int64           `db:"tutor_id" json:"tutor_id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	Subject     string          `db:"subject" json:"subject"`
	StartDate   time.Time       `db:"start_date" json:"start_date"`
	EndDate     time.Time       `db:"end_date" json:"end_date"`
	Fee         decimal.Decimal `db:"fee" json:"fee"`
	MaxStudents int             `db:"max_students" json:"max_students"`
	Status      CourseStatus    `db:"status" json:"status"`
	IsDeleted   bool            `db:"is_deleted" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures list/search options.
type CourseFilter struct {
	Search    string
	Subject   string
	TutorID   int64
	Status    CourseStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
