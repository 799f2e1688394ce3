package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const courseColumns = `id, tutor_id, name, description, subject, start_date, end_date, fee, max_students, status, is_deleted, created_at, updated_at`

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a course repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns non-deleted courses with filtering and pagination.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses WHERE is_deleted = FALSE"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR subject ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.TutorID != 0 {
		conditions = append(conditions, fmt.Sprintf("tutor_id = $%d", len(args)+1))
		args = append(args, filter.TutorID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":       true,
		"start_date": true,
		"fee":        true,
		"created_at": true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "start_date"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, id ASC LIMIT %d OFFSET %d", courseColumns, base, sortBy, order, size, offset)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID loads a non-deleted course.
func (r *CourseRepository) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND is_deleted = FALSE`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIDForUpdateTx loads and row-locks a non-deleted course.
func (r *CourseRepository) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`
	var course models.Course
	if err := tx.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByTutor returns a tutor's courses, newest first.
func (r *CourseRepository) ListByTutor(ctx context.Context, tutorID int64) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses WHERE tutor_id = $1 AND is_deleted = FALSE ORDER BY start_date DESC, id DESC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor courses: %w", err)
	}
	return courses, nil
}

// ListByStudent returns courses the student holds a non-canceled enrollment in.
func (r *CourseRepository) ListByStudent(ctx context.Context, studentID int64) ([]models.Course, error) {
	const query = `SELECT c.id, c.tutor_id, c.name, c.description, c.subject, c.start_date, c.end_date, c.fee, c.max_students, c.status, c.is_deleted, c.created_at, c.updated_at
FROM courses c JOIN enrollments e ON e.course_id = c.id
WHERE e.student_id = $1 AND e.status <> $2 AND c.is_deleted = FALSE
ORDER BY c.start_date ASC, c.id ASC`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, studentID, models.EnrollmentStatusCanceled); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return courses, nil
}

// ListDue returns courses whose automatic transition is due on today.
func (r *CourseRepository) ListDue(ctx context.Context, today time.Time, limit int) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses
WHERE is_deleted = FALSE AND ((status = $1 AND start_date = $2) OR (status = $3 AND end_date < $2))
ORDER BY id ASC LIMIT $4`
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, models.CourseStatusComing, today, models.CourseStatusOngoing, limit); err != nil {
		return nil, fmt.Errorf("list due courses: %w", err)
	}
	return courses, nil
}

// Create inserts a course and fills its generated id.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (tutor_id, name, description, subject, start_date, end_date, fee, max_students, status, is_deleted, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11) RETURNING id`
	if err := r.db.GetContext(ctx, &course.ID, query,
		course.TutorID, course.Name, course.Description, course.Subject, course.StartDate, course.EndDate,
		course.Fee, course.MaxStudents, course.Status, course.CreatedAt, course.UpdatedAt); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// UpdateTx overwrites the mutable columns of a course.
func (r *CourseRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = $1, description = $2, subject = $3, start_date = $4, end_date = $5, fee = $6, max_students = $7, status = $8, updated_at = $9 WHERE id = $10`
	if _, err := tx.ExecContext(ctx, query,
		course.Name, course.Description, course.Subject, course.StartDate, course.EndDate,
		course.Fee, course.MaxStudents, course.Status, course.UpdatedAt, course.ID); err != nil {
		return fmt.Errorf("update course %d: %w", course.ID, err)
	}
	return nil
}

// SoftDeleteTx flags the given courses as deleted, skipping ongoing ones, and
// returns the ids that were actually deleted. A non-zero tutorID restricts the
// delete to that tutor's courses.
func (r *CourseRepository) SoftDeleteTx(ctx context.Context, tx *sqlx.Tx, tutorID int64, ids []int64) ([]int64, error) {
	query := `UPDATE courses SET is_deleted = TRUE, updated_at = $1 WHERE id = ANY($2) AND is_deleted = FALSE AND status <> $3`
	args := []interface{}{time.Now().UTC(), pq.Array(ids), models.CourseStatusOngoing}
	if tutorID != 0 {
		query += ` AND tutor_id = $4`
		args = append(args, tutorID)
	}
	var deleted []int64
	if err := tx.SelectContext(ctx, &deleted, query+` RETURNING id`, args...); err != nil {
		return nil, fmt.Errorf("soft delete courses: %w", err)
	}
	return deleted, nil
}
