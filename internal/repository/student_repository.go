package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const studentSelect = `SELECT s.id, s.user_id, u.full_name, u.email FROM students s JOIN users u ON u.id = s.user_id`

// StudentRepository reads student profiles.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID loads a student profile. sql.ErrNoRows is returned untouched.
func (r *StudentRepository) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	var student models.Student
	if err := r.db.GetContext(ctx, &student, studentSelect+` WHERE s.id = $1`, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LockTx takes a row lock on the student for the rest of the transaction so
// concurrent enrollments of the same student serialize.
func (r *StudentRepository) LockTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	var locked int64
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM students WHERE id = $1 FOR UPDATE`, id); err != nil {
		return err
	}
	return nil
}

// ListEnrolledInCourse returns students holding a non-canceled enrollment.
func (r *StudentRepository) ListEnrolledInCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	query := studentSelect + ` JOIN enrollments e ON e.student_id = s.id WHERE e.course_id = $1 AND e.status <> $2 ORDER BY s.id`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, courseID, models.EnrollmentStatusCanceled); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	return students, nil
}
