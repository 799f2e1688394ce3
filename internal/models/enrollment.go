package models

import "time"

// EnrollmentStatus enumerates enrollment states.
type EnrollmentStatus string

const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCanceled  EnrollmentStatus = "canceled"
)

// Enrollment links a student to a course.
type Enrollment struct {
	ID         int64            `db:"id" json:"id"`
	StudentID  int64            `db:"student_id" json:"student_id"`
	CourseID   int64            `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail joins the student profile for roster views.
type EnrollmentDetail struct {
	Enrollment
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// EnrollmentResult is returned by a successful enrollment.
type EnrollmentResult struct {
	Enrollment Enrollment `json:"enrollment"`
	Contract   Contract   `json:"contract"`
}
