package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ContractStatus enumerates contract states.
type ContractStatus string

const (
	ContractStatusActive    ContractStatus = "active"
	ContractStatusCompleted ContractStatus = "completed"
	ContractStatusCanceled  ContractStatus = "canceled"
)

// Contract binds tutor, student and course for the enrollment period.
type Contract struct {
	ID        int64           `db:"id" json:"id"`
	TutorID   int64           `db:"tutor_id" json:"tutor_id"`
	StudentID int64           `db:"student_id" json:"student_id"`
	CourseID  int64           `db:"course_id" json:"course_id"`
	Terms     string          `db:"terms" json:"terms"`
	Fee       decimal.Decimal `db:"fee" json:"fee"`
	StartDate time.Time       `db:"start_date" json:"start_date"`
	EndDate   time.Time       `db:"end_date" json:"end_date"`
	Status    ContractStatus  `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// ContractDocument carries the joined data rendered into a contract PDF.
type ContractDocument struct {
	Contract
	CourseName  string `db:"course_name" json:"course_name"`
	TutorName   string `db:"tutor_name" json:"tutor_name"`
	StudentName string `db:"student_name" json:"student_name"`
}
