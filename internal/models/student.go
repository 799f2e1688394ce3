package models

// Student is the learner profile attached to a user account.
type Student struct {
	ID       int64  `db:"id" json:"id"`
	UserID   int64  `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
}

// Tutor is the teaching profile attached to a user account.
type Tutor struct {
	ID       int64  `db:"id" json:"id"`
	UserID   int64  `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Subjects string `db:"subjects" json:"subjects"`
}
