package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

// DefaultContractTerms is used when no terms are configured.
const DefaultContractTerms = "Standard Terms of Tutoring System."

type enrollmentRepository interface {
	Exists(ctx context.Context, studentID, courseID int64) (bool, error)
	FindByID(ctx context.Context, id int64) (*models.Enrollment, error)
	FindByStudentCourse(ctx context.Context, studentID, courseID int64) (*models.Enrollment, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error)
	CountActiveTx(ctx context.Context, tx *sqlx.Tx, courseID int64) (int, error)
	CreateTx(ctx context.Context, tx *sqlx.Tx, enrollment *models.Enrollment, maxStudents int) error
	Delete(ctx context.Context, id int64) error
}

type studentRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Student, error)
	LockTx(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type tutorReader interface {
	FindByID(ctx context.Context, id int64) (*models.Tutor, error)
}

type enrollmentCourseRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
	FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error)
	UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error
}

type enrollmentScheduleReader interface {
	ListByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Schedule, error)
	ListForStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeCourseID int64) ([]models.Schedule, error)
	MirrorStatusTx(ctx context.Context, tx *sqlx.Tx, courseID int64, status models.CourseStatus) ([]int64, error)
}

type contractWriter interface {
	CreateTx(ctx context.Context, tx *sqlx.Tx, contract *models.Contract) error
	CompleteExpiredTx(ctx context.Context, tx *sqlx.Tx, courseID int64, today time.Time) (int64, error)
}

// EnrollmentConfig governs enrollment behaviour.
type EnrollmentConfig struct {
	ContractTerms string
	Location      *time.Location
}

// EnrollmentService registers students into courses. Eligibility, capacity,
// the schedule check and the enrollment plus contract insert run in one
// transaction holding row locks on the student and the course.
type EnrollmentService struct {
	db          txProvider
	enrollments enrollmentRepository
	students    studentRepository
	tutors      tutorReader
	courses     enrollmentCourseRepository
	schedules   enrollmentScheduleReader
	contracts   contractWriter
	writer      lifecycleWriter
	notifier    notifier
	cache       cachePort
	metrics     *MetricsService
	terms       string
	cal         calendar
	logger      *zap.Logger
}

// NewEnrollmentService constructs the enrollment orchestrator.
func NewEnrollmentService(
	db txProvider,
	enrollments enrollmentRepository,
	students studentRepository,
	tutors tutorReader,
	courses enrollmentCourseRepository,
	schedules enrollmentScheduleReader,
	contracts contractWriter,
	notify notifier,
	cache cachePort,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg EnrollmentConfig,
) *EnrollmentService {
	if cache == nil {
		cache = noopCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ContractTerms == "" {
		cfg.ContractTerms = DefaultContractTerms
	}
	return &EnrollmentService{
		db:          db,
		enrollments: enrollments,
		students:    students,
		tutors:      tutors,
		courses:     courses,
		schedules:   schedules,
		contracts:   contracts,
		writer:      lifecycleWriter{courses: courses, schedules: schedules, contracts: contracts},
		notifier:    notify,
		cache:       cache,
		metrics:     metrics,
		terms:       cfg.ContractTerms,
		cal:         newCalendar(cfg.Location),
		logger:      logger,
	}
}

// Enroll registers studentID into courseID and creates the matching contract.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID int64) (*models.EnrollmentResult, error) {
	booked, student, err := s.enroll(ctx, studentID, courseID)
	if err != nil {
		if appErrors.IsRetryable(err) {
			s.metrics.RecordEnrollment(OutcomeFailed)
		} else {
			s.metrics.RecordEnrollment(OutcomeRejected)
		}
		return nil, err
	}
	s.metrics.RecordEnrollment(OutcomeEnrolled)
	_ = s.cache.Invalidate(ctx, append(booked.stale, cache.StudentCoursesKey(studentID))...)
	s.notifyEnrolled(ctx, &booked.course, student)
	return booked.result, nil
}

// reservation is the committed outcome of the locked enrollment step.
type reservation struct {
	result *models.EnrollmentResult
	course models.Course
	stale  []string
}

func (s *EnrollmentService) enroll(ctx context.Context, studentID, courseID int64) (booked *reservation, student *models.Student, err error) {
	student, err = s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, nil, storageFailure(s.logger, err, "failed to load student", zap.Int64("student_id", studentID))
	}
	exists, err := s.enrollments.Exists(ctx, studentID, courseID)
	if err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to check enrollment", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID))
	}
	if exists {
		return nil, nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already enrolled in course")
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", courseID))
	}
	today := s.cal.today()
	if lifecycle.Reconcile(*course, today).CourseChanged {
		// A due transition is committed on its own so a rejected enrollment
		// cannot roll it back.
		if course, err = s.settle(ctx, courseID, today); err != nil {
			return nil, nil, err
		}
	}
	if course.Status.Terminal() {
		return nil, nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("course is %s", course.Status))
	}

	start := time.Now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	booked, err = s.reserve(ctx, tx, student, courseID, today)
	if err != nil {
		return nil, nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, nil, storageFailure(s.logger, err, "failed to commit enrollment", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID))
	}
	s.metrics.ObserveDBQuery("enrollment_tx", time.Since(start))
	return booked, student, nil
}

// settle persists the date driven transition of a course in its own
// transaction and returns the course as stored.
func (s *EnrollmentService) settle(ctx context.Context, courseID int64, today time.Time) (course *models.Course, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.courses.FindByIDForUpdateTx(ctx, tx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "course not found")
			return nil, err
		}
		err = storageFailure(s.logger, err, "failed to lock course", zap.Int64("course_id", courseID))
		return nil, err
	}
	plan := lifecycle.Reconcile(*locked, today)
	stale, err := s.writer.persist(ctx, tx, plan, false)
	if err != nil {
		err = storageFailure(s.logger, err, "failed to reconcile course", zap.Int64("course_id", courseID))
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = storageFailure(s.logger, err, "failed to commit course reconcile", zap.Int64("course_id", courseID))
		return nil, err
	}
	if plan.CourseChanged {
		s.logger.Info("course transitioned",
			zap.Int64("course_id", courseID),
			zap.String("from", string(locked.Status)),
			zap.String("to", string(plan.Course.Status)))
	}
	_ = s.cache.Invalidate(ctx, stale...)
	return &plan.Course, nil
}

// reserve runs the locked part of an enrollment. Locks are always taken
// student first, then course.
func (s *EnrollmentService) reserve(ctx context.Context, tx *sqlx.Tx, student *models.Student, courseID int64, today time.Time) (*reservation, error) {
	ids := []zap.Field{zap.Int64("student_id", student.ID), zap.Int64("course_id", courseID)}

	if err := s.students.LockTx(ctx, tx, student.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, storageFailure(s.logger, err, "failed to lock student", ids...)
	}
	locked, err := s.courses.FindByIDForUpdateTx(ctx, tx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to lock course", ids...)
	}

	plan := lifecycle.Reconcile(*locked, today)
	stale, err := s.writer.persist(ctx, tx, plan, false)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to reconcile course", ids...)
	}
	course := plan.Course
	if course.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("course is %s", course.Status))
	}

	count, err := s.enrollments.CountActiveTx(ctx, tx, course.ID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to count enrollments", ids...)
	}
	if count >= course.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrCourseFull, "course is full")
	}

	courseSlots, err := s.schedules.ListByCourseTx(ctx, tx, course.ID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to load course schedules", ids...)
	}
	studentSlots, err := s.schedules.ListForStudentTx(ctx, tx, student.ID, course.ID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to load student schedules", ids...)
	}
	if conflict, found := scheduling.FirstConflict(courseSlots, studentSlots); found {
		s.metrics.RecordScheduleConflict("enrollment")
		detail := &models.ScheduleConflictError{Candidate: conflict.Candidate, Existing: conflict.Existing}
		msg := fmt.Sprintf("course slot on day %d %s-%s overlaps an enrolled course slot %s-%s",
			conflict.Candidate.DayOfWeek, conflict.Candidate.StartTime, conflict.Candidate.EndTime,
			conflict.Existing.StartTime, conflict.Existing.EndTime)
		return nil, appErrors.Wrap(detail, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, msg)
	}

	now := s.cal.now().UTC()
	enrollment := models.Enrollment{
		StudentID:  student.ID,
		CourseID:   course.ID,
		Status:     models.EnrollmentStatusPending,
		EnrolledAt: now,
	}
	if err := s.enrollments.CreateTx(ctx, tx, &enrollment, course.MaxStudents); err != nil {
		switch {
		case errors.Is(err, repository.ErrCapacity):
			return nil, appErrors.Clone(appErrors.ErrCourseFull, "course is full")
		case errors.Is(err, repository.ErrDuplicateKey):
			return nil, appErrors.Clone(appErrors.ErrDuplicateEnrollment, "student already enrolled in course")
		}
		return nil, storageFailure(s.logger, err, "failed to create enrollment", ids...)
	}

	contract := models.Contract{
		TutorID:   course.TutorID,
		StudentID: student.ID,
		CourseID:  course.ID,
		Terms:     s.terms,
		Fee:       course.Fee,
		StartDate: today,
		EndDate:   course.EndDate,
		Status:    models.ContractStatusActive,
		CreatedAt: now,
	}
	if err := s.contracts.CreateTx(ctx, tx, &contract); err != nil {
		return nil, storageFailure(s.logger, err, "failed to create contract", ids...)
	}

	return &reservation{
		result: &models.EnrollmentResult{Enrollment: enrollment, Contract: contract},
		course: course,
		stale:  stale,
	}, nil
}

func (s *EnrollmentService) notifyEnrolled(ctx context.Context, course *models.Course, student *models.Student) {
	if s.notifier == nil {
		return
	}
	if tutor, err := s.tutors.FindByID(ctx, course.TutorID); err != nil {
		s.logger.Warn("failed to load tutor for enrollment notice", zap.Int64("tutor_id", course.TutorID), zap.Error(err))
	} else {
		_ = s.notifier.Notify(ctx, tutor.UserID,
			fmt.Sprintf("New student %s registered for course '%s'.", student.FullName, course.Name),
			models.NotificationScheduleReminder)
	}
	_ = s.notifier.Notify(ctx, student.UserID,
		fmt.Sprintf("You have successfully registered for course '%s'. A contract has been created.", course.Name),
		models.NotificationScheduleReminder)
}

// Unenroll removes the student's enrollment. Enrollments in a canceled
// course cannot be removed.
func (s *EnrollmentService) Unenroll(ctx context.Context, studentID, courseID int64) error {
	enrollment, err := s.enrollments.FindByStudentCourse(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return storageFailure(s.logger, err, "failed to load enrollment", zap.Int64("student_id", studentID), zap.Int64("course_id", courseID))
	}
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", courseID))
	}
	if course.Status == models.CourseStatusCanceled {
		return appErrors.Clone(appErrors.ErrLocked, "cannot unenroll from a canceled course")
	}
	if err := s.enrollments.Delete(ctx, enrollment.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return storageFailure(s.logger, err, "failed to delete enrollment", zap.Int64("enrollment_id", enrollment.ID))
	}
	_ = s.cache.Invalidate(ctx, cache.StudentCoursesKey(studentID))
	return nil
}

// Get returns one enrollment.
func (s *EnrollmentService) Get(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollment, err := s.enrollments.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load enrollment", zap.Int64("enrollment_id", id))
	}
	return enrollment, nil
}

// ListByCourse returns the roster of a course.
func (s *EnrollmentService) ListByCourse(ctx context.Context, courseID int64) ([]models.EnrollmentDetail, error) {
	roster, err := s.enrollments.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list enrollments", zap.Int64("course_id", courseID))
	}
	if roster == nil {
		roster = []models.EnrollmentDetail{}
	}
	return roster, nil
}
