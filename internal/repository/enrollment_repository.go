package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const enrollmentColumns = `id, student_id, course_id, status, enrolled_at`

// EnrollmentRepository persists enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Exists reports whether any enrollment links the student to the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByIDForUpdateTx loads and row-locks an enrollment.
func (r *EnrollmentRepository) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	if err := tx.GetContext(ctx, &enrollment, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1 FOR UPDATE`, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentCourse loads the enrollment for a (student, course) pair.
func (r *EnrollmentRepository) FindByStudentCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error) {
	var enrollment models.Enrollment
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE student_id = $1 AND course_id = $2`
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListByCourse returns the course roster.
func (r *EnrollmentRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.status, e.enrolled_at, u.full_name AS student_name, u.email AS student_email
FROM enrollments e
JOIN students s ON s.id = e.student_id
JOIN users u ON u.id = s.user_id
WHERE e.course_id = $1
ORDER BY e.enrolled_at ASC, e.id ASC`
	var details []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &details, query, courseID); err != nil {
		return nil, fmt.Errorf("list course enrollments: %w", err)
	}
	return details, nil
}

// CountActiveTx counts non-canceled enrollments of a course.
func (r *EnrollmentRepository) CountActiveTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND status <> $2`
	if err := tx.GetContext(ctx, &count, query, courseID, models.EnrollmentStatusCanceled); err != nil {
		return 0, fmt.Errorf("count course enrollments: %w", err)
	}
	return count, nil
}

// CreateTx inserts the enrollment only while the course is below capacity.
// The capacity guard and the insert are one statement; ErrCapacity is
// returned when the guard rejects the row and ErrDuplicateKey when the
// (student, course) key already exists.
func (r *EnrollmentRepository) CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment, maxStudents int) error {
	const query = `INSERT INTO enrollments (student_id, course_id, status, enrolled_at)
SELECT $1, $2, $3, $4
WHERE (SELECT COUNT(*) FROM enrollments WHERE course_id = $2 AND status <> $5) < $6
RETURNING id`
	err := tx.GetContext(ctx, &enrollment.ID, query,
		enrollment.StudentID, enrollment.CourseID, enrollment.Status, enrollment.EnrolledAt,
		models.EnrollmentStatusCanceled, maxStudents)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrCapacity
	}
	if err != nil {
		return translate("create enrollment", err)
	}
	return nil
}

// UpdateStatusTx changes the status of an enrollment.
func (r *EnrollmentRepository) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.EnrollmentStatus) error {
	if _, err := tx.ExecContext(ctx, `UPDATE enrollments SET status = $1 WHERE id = $2`, status, id); err != nil {
		return fmt.Errorf("update enrollment %d status: %w", id, err)
	}
	return nil
}

// Delete hard-deletes an enrollment.
func (r *EnrollmentRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM enrollments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete enrollment %d: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
