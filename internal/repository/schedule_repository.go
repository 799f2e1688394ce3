package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

const scheduleColumns = `id, tutor_id, course_id, day_of_week, start_time, end_time, mode, location, status, created_at, updated_at`

// ScheduleRepository provides persistence for weekly schedule entries.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListAll returns every schedule ordered by day and time.
func (r *ScheduleRepository) ListAll(ctx context.Context) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY day_of_week ASC, start_time ASC, id ASC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return schedules, nil
}

// FindByID loads a schedule by id.
func (r *ScheduleRepository) FindByID(ctx context.Context, id int64) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	var sched models.Schedule
	if err := r.db.GetContext(ctx, &sched, query, id); err != nil {
		return nil, err
	}
	return &sched, nil
}

// ListByCourse returns the weekly slots of a course.
func (r *ScheduleRepository) ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error) {
	return r.listByCourse(ctx, r.db, courseID)
}

// ListByCourseTx reads the slots of a course inside a transaction.
func (r *ScheduleRepository) ListByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Schedule, error) {
	return r.listByCourse(ctx, tx, courseID)
}

func (r *ScheduleRepository) listByCourse(ctx context.Context, q sqlx.QueryerContext, courseID int64) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE course_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var schedules []models.Schedule
	if err := sqlx.SelectContext(ctx, q, &schedules, query, courseID); err != nil {
		return nil, fmt.Errorf("list schedules by course: %w", err)
	}
	return schedules, nil
}

// ListByTutor returns schedules taught by a tutor.
func (r *ScheduleRepository) ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE tutor_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, tutorID); err != nil {
		return nil, fmt.Errorf("list schedules by tutor: %w", err)
	}
	return schedules, nil
}

// ListActiveByTutorDay returns the tutor's non-terminal schedules on a day,
// the candidate set for overlap checks.
func (r *ScheduleRepository) ListActiveByTutorDay(ctx context.Context, tutorID int64, day int) ([]models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE tutor_id = $1 AND day_of_week = $2 AND status NOT IN ($3, $4) ORDER BY start_time ASC`
	var schedules []models.Schedule
	if err := r.db.SelectContext(ctx, &schedules, query, tutorID, day, models.CourseStatusCompleted, models.CourseStatusCanceled); err != nil {
		return nil, fmt.Errorf("find tutor schedule conflicts: %w", err)
	}
	return schedules, nil
}

// ListForStudentTx returns the active slots of every course the student is
// enrolled in, except excludeCourseID.
func (r *ScheduleRepository) ListForStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeCourseID int64) ([]models.Schedule, error) {
	const query = `SELECT s.id, s.tutor_id, s.course_id, s.day_of_week, s.start_time, s.end_time, s.mode, s.location, s.status, s.created_at, s.updated_at
FROM schedules s JOIN enrollments e ON e.course_id = s.course_id
WHERE e.student_id = $1 AND e.course_id <> $2 AND e.status <> $3 AND s.status NOT IN ($4, $5)`
	var schedules []models.Schedule
	if err := tx.SelectContext(ctx, &schedules, query, studentID, excludeCourseID,
		models.EnrollmentStatusCanceled, models.CourseStatusCompleted, models.CourseStatusCanceled); err != nil {
		return nil, fmt.Errorf("list student schedules: %w", err)
	}
	return schedules, nil
}

// Create stores a new schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	now := time.Now().UTC()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	const query = `INSERT INTO schedules (tutor_id, course_id, day_of_week, start_time, end_time, mode, location, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	if err := r.db.GetContext(ctx, &schedule.ID, query,
		schedule.TutorID, schedule.CourseID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime,
		schedule.Mode, schedule.Location, schedule.Status, schedule.CreatedAt, schedule.UpdatedAt); err != nil {
		return translate("create schedule", err)
	}
	return nil
}

// Update overwrites the mutable fields of a schedule.
func (r *ScheduleRepository) Update(ctx context.Context, schedule *models.Schedule) error {
	schedule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schedules SET tutor_id = $1, course_id = $2, day_of_week = $3, start_time = $4, end_time = $5, mode = $6, location = $7, status = $8, updated_at = $9 WHERE id = $10`
	if _, err := r.db.ExecContext(ctx, query,
		schedule.TutorID, schedule.CourseID, schedule.DayOfWeek, schedule.StartTime, schedule.EndTime,
		schedule.Mode, schedule.Location, schedule.Status, schedule.UpdatedAt, schedule.ID); err != nil {
		return translate(fmt.Sprintf("update schedule %d", schedule.ID), err)
	}
	return nil
}

// DeleteMany removes the listed schedules and returns the rows that existed.
// A non-zero tutorID restricts the delete to that tutor's entries.
func (r *ScheduleRepository) DeleteMany(ctx context.Context, tutorID int64, ids []int64) ([]models.Schedule, error) {
	query := `DELETE FROM schedules WHERE id = ANY($1)`
	args := []interface{}{pq.Array(ids)}
	if tutorID != 0 {
		query += ` AND tutor_id = $2`
		args = append(args, tutorID)
	}
	query += ` RETURNING ` + scheduleColumns
	var deleted []models.Schedule
	if err := r.db.SelectContext(ctx, &deleted, query, args...); err != nil {
		return nil, fmt.Errorf("delete schedules: %w", err)
	}
	return deleted, nil
}

// MirrorStatusTx copies a course status onto its schedules and returns the ids
// of the schedules it changed.
func (r *ScheduleRepository) MirrorStatusTx(ctx context.Context, tx *sqlx.Tx, courseID int64, status models.CourseStatus) ([]int64, error) {
	const query = `UPDATE schedules SET status = $1, updated_at = $2 WHERE course_id = $3 AND status <> $1 RETURNING id`
	var ids []int64
	if err := tx.SelectContext(ctx, &ids, query, status, time.Now().UTC(), courseID); err != nil {
		return nil, fmt.Errorf("mirror schedule status for course %d: %w", courseID, err)
	}
	return ids, nil
}

// DeleteByCoursesTx removes the schedules of deleted courses.
func (r *ScheduleRepository) DeleteByCoursesTx(ctx context.Context, tx *sqlx.Tx, courseIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE course_id = ANY($1)`, pq.Array(courseIDs)); err != nil {
		return fmt.Errorf("delete course schedules: %w", err)
	}
	return nil
}
