package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Course, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Course, error)
	ListDue(ctx context.Context, today time.Time, limit int) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error
	SoftDeleteTx(ctx context.Context, tx *sqlx.Tx, tutorID int64, ids []int64) ([]int64, error)
}

type courseScheduleWriter interface {
	MirrorStatusTx(ctx context.Context, tx *sqlx.Tx, courseID int64, status models.CourseStatus) ([]int64, error)
	DeleteByCoursesTx(ctx context.Context, tx *sqlx.Tx, courseIDs []int64) error
}

type enrolledStudentLister interface {
	ListEnrolledInCourse(ctx context.Context, courseID int64) ([]models.Student, error)
}

// CourseRequest carries the editable fields of a course.
type CourseRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	Subject     string          `json:"subject" validate:"required,max=100"`
	StartDate   time.Time       `json:"start_date" validate:"required"`
	EndDate     time.Time       `json:"end_date" validate:"required"`
	Fee         decimal.Decimal `json:"fee"`
	MaxStudents int             `json:"max_students" validate:"min=1"`
}

// DeleteCoursesRequest lists the ids of a batch soft delete.
type DeleteCoursesRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// CourseService owns course CRUD and the course lifecycle writes.
type CourseService struct {
	db        txProvider
	courses   courseRepository
	schedules courseScheduleWriter
	students  enrolledStudentLister
	writer    lifecycleWriter
	notifier  notifier
	cache     cachePort
	cal       calendar
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService wires the course lifecycle dependencies.
func NewCourseService(
	db txProvider,
	courses courseRepository,
	schedules courseScheduleWriter,
	contracts contractSweeper,
	students enrolledStudentLister,
	notify notifier,
	cache cachePort,
	loc *time.Location,
	validate *validator.Validate,
	logger *zap.Logger,
) *CourseService {
	if cache == nil {
		cache = noopCache{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		db:        db,
		courses:   courses,
		schedules: schedules,
		students:  students,
		writer:    lifecycleWriter{courses: courses, schedules: schedules, contracts: contracts},
		notifier:  notify,
		cache:     cache,
		cal:       newCalendar(loc),
		validator: validate,
		logger:    logger,
	}
}

// List returns courses matching filter with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown course status")
	}
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to list courses")
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	key := cache.CourseKey(id)
	var cached models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", id))
	}
	_ = s.cache.Set(ctx, key, course, 0)
	return course, nil
}

// ListByTutor returns the tutor's courses.
func (s *CourseService) ListByTutor(ctx context.Context, tutorID int64) ([]models.Course, error) {
	courses, err := s.courses.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list tutor courses", zap.Int64("tutor_id", tutorID))
	}
	if courses == nil {
		courses = []models.Course{}
	}
	return courses, nil
}

// ListByStudent returns the courses a student is enrolled in.
func (s *CourseService) ListByStudent(ctx context.Context, studentID int64) ([]models.Course, error) {
	key := cache.StudentCoursesKey(studentID)
	var cached []models.Course
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	courses, err := s.courses.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list student courses", zap.Int64("student_id", studentID))
	}
	if courses == nil {
		courses = []models.Course{}
	}
	_ = s.cache.Set(ctx, key, courses, 0)
	return courses, nil
}

// Create publishes a new course for tutorID.
func (s *CourseService) Create(ctx context.Context, tutorID int64, req CourseRequest) (*models.Course, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	today := s.cal.today()
	if lifecycle.DateOf(req.StartDate).Before(today) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must not be in the past")
	}
	course := models.Course{
		TutorID:     tutorID,
		Name:        req.Name,
		Description: req.Description,
		Subject:     req.Subject,
		StartDate:   lifecycle.DateOf(req.StartDate),
		EndDate:     lifecycle.DateOf(req.EndDate),
		Fee:         req.Fee,
		MaxStudents: req.MaxStudents,
		Status:      models.CourseStatusComing,
	}
	course = lifecycle.Reconcile(course, today).Course
	if err := s.courses.Create(ctx, &course); err != nil {
		return nil, storageFailure(s.logger, err, "failed to create course", zap.Int64("tutor_id", tutorID))
	}
	return &course, nil
}

// Update overwrites a course owned by tutorID and persists the reconciled
// lifecycle in the same transaction.
func (s *CourseService) Update(ctx context.Context, tutorID, id int64, req CourseRequest) (course *models.Course, err error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.lockCourse(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if tutorID != 0 && current.TutorID != tutorID {
		err = appErrors.Clone(appErrors.ErrForbidden, "course belongs to another tutor")
		return nil, err
	}
	if current.Status.Terminal() {
		err = appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("course is %s", current.Status))
		return nil, err
	}

	current.Name = req.Name
	current.Description = req.Description
	current.Subject = req.Subject
	current.StartDate = lifecycle.DateOf(req.StartDate)
	current.EndDate = lifecycle.DateOf(req.EndDate)
	current.Fee = req.Fee
	current.MaxStudents = req.MaxStudents

	plan := lifecycle.Reconcile(*current, s.cal.today())
	stale, err := s.writer.persist(ctx, tx, plan, true)
	if err != nil {
		err = storageFailure(s.logger, err, "failed to update course", zap.Int64("course_id", id))
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit course update", zap.Int64("course_id", id))
		return nil, err
	}

	s.invalidateCourse(ctx, id, stale...)
	return &plan.Course, nil
}

// Cancel moves a coming or ongoing course to canceled, mirrors the status to
// its schedules and tells every enrolled student. tutorID zero skips the
// ownership check.
func (s *CourseService) Cancel(ctx context.Context, tutorID, id int64) (course *models.Course, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.lockCourse(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if tutorID != 0 && current.TutorID != tutorID {
		err = appErrors.Clone(appErrors.ErrForbidden, "course belongs to another tutor")
		return nil, err
	}
	notice := lifecycle.NeedsNotice(current.Status)
	plan, cancelErr := lifecycle.Cancel(*current, s.cal.today())
	if cancelErr != nil {
		err = appErrors.Wrap(cancelErr, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "course already canceled or completed")
		return nil, err
	}
	stale, err := s.writer.persist(ctx, tx, plan, true)
	if err != nil {
		err = storageFailure(s.logger, err, "failed to cancel course", zap.Int64("course_id", id))
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit course cancellation", zap.Int64("course_id", id))
		return nil, err
	}

	s.invalidateCourse(ctx, id, stale...)
	if notice {
		s.notifyCanceled(ctx, plan.Course)
	}
	return &plan.Course, nil
}

// Delete soft-deletes the listed courses and drops their schedules. Ongoing
// courses are skipped; NotFound is returned when nothing was deletable.
func (s *CourseService) Delete(ctx context.Context, tutorID int64, req DeleteCoursesRequest) (deleted []int64, err error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delete payload")
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	deleted, err = s.courses.SoftDeleteTx(ctx, tx, tutorID, req.IDs)
	if err != nil {
		err = storageFailure(s.logger, err, "failed to delete courses", zap.Int64s("course_ids", req.IDs))
		return nil, err
	}
	if len(deleted) == 0 {
		err = appErrors.Clone(appErrors.ErrNotFound, "no deletable courses found")
		return nil, err
	}
	if err = s.schedules.DeleteByCoursesTx(ctx, tx, deleted); err != nil {
		err = storageFailure(s.logger, err, "failed to delete course schedules", zap.Int64s("course_ids", deleted))
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit course delete", zap.Int64s("course_ids", deleted))
		return nil, err
	}

	views := []string{cache.AllSchedulesKey}
	if tutorID != 0 {
		views = append(views, cache.TutorSchedulesKey(tutorID))
	}
	for _, id := range deleted {
		s.invalidateCourse(ctx, id, views...)
	}
	return deleted, nil
}

// Touch reconciles one course against today and persists the outcome. It is
// the explicit "force a write" path for readers that cannot tolerate a stale
// status.
func (s *CourseService) Touch(ctx context.Context, id int64) (course *models.Course, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	current, err := s.lockCourse(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	plan := lifecycle.Reconcile(*current, s.cal.today())
	stale, err := s.writer.persist(ctx, tx, plan, false)
	if err != nil {
		err = storageFailure(s.logger, err, "failed to reconcile course", zap.Int64("course_id", id))
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit course reconcile", zap.Int64("course_id", id))
		return nil, err
	}
	if plan.CourseChanged {
		s.logger.Info("course transitioned",
			zap.Int64("course_id", id),
			zap.String("from", string(current.Status)),
			zap.String("to", string(plan.Course.Status)))
	}
	if len(stale) > 0 {
		s.invalidateCourse(ctx, id, stale...)
	}
	return &plan.Course, nil
}

// Sweep touches up to limit courses whose transition is due today and
// returns how many were processed. Failures on one course do not stop the
// batch.
func (s *CourseService) Sweep(ctx context.Context, limit int) (int, error) {
	due, err := s.courses.ListDue(ctx, s.cal.today(), limit)
	if err != nil {
		return 0, storageFailure(s.logger, err, "failed to list due courses")
	}
	processed := 0
	for _, course := range due {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if _, err := s.Touch(ctx, course.ID); err != nil {
			s.logger.Warn("course sweep failed", zap.Int64("course_id", course.ID), zap.Error(err))
			continue
		}
		processed++
	}
	return processed, nil
}

func (s *CourseService) lockCourse(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	course, err := s.courses.FindByIDForUpdateTx(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", id))
	}
	return course, nil
}

func (s *CourseService) notifyCanceled(ctx context.Context, course models.Course) {
	if s.notifier == nil {
		return
	}
	students, err := s.students.ListEnrolledInCourse(ctx, course.ID)
	if err != nil {
		s.logger.Warn("failed to load students for cancellation notice", zap.Int64("course_id", course.ID), zap.Error(err))
		return
	}
	message := fmt.Sprintf("Course '%s' has been canceled.", course.Name)
	for _, student := range students {
		_ = s.notifier.Notify(ctx, student.UserID, message, models.NotificationScheduleReminder)
	}
}

// invalidateCourse drops the course views, the course lists of its students
// and any extra keys.
func (s *CourseService) invalidateCourse(ctx context.Context, id int64, extra ...string) {
	keys := append(cache.CourseScope(id), extra...)
	if students, err := s.students.ListEnrolledInCourse(ctx, id); err == nil {
		for _, student := range students {
			keys = append(keys, cache.StudentCoursesKey(student.ID))
		}
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

func (s *CourseService) validateRequest(req CourseRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	if lifecycle.DateOf(req.EndDate).Before(lifecycle.DateOf(req.StartDate)) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if req.Fee.IsNegative() {
		return appErrors.Clone(appErrors.ErrValidation, "fee must not be negative")
	}
	return nil
}
