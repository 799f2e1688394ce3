package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/internal/scheduling"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type scheduleRepository interface {
	ListAll(ctx context.Context) ([]models.Schedule, error)
	FindByID(ctx context.Context, id int64) (*models.Schedule, error)
	ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error)
	ListActiveByTutorDay(ctx context.Context, tutorID int64, day int) ([]models.Schedule, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	Update(ctx context.Context, schedule *models.Schedule) error
	DeleteMany(ctx context.Context, tutorID int64, ids []int64) ([]models.Schedule, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id int64) (*models.Course, error)
}

// CreateScheduleRequest is the payload for a new weekly slot.
type CreateScheduleRequest struct {
	CourseID  int64               `json:"course_id" validate:"required,gt=0"`
	DayOfWeek int                 `json:"day_of_week" validate:"min=1,max=7"`
	StartTime models.ClockTime    `json:"start_time"`
	EndTime   models.ClockTime    `json:"end_time"`
	Mode      models.ScheduleMode `json:"mode" validate:"required,oneof=online offline"`
	Location  string              `json:"location" validate:"max=255"`
}

// UpdateScheduleRequest overwrites the mutable fields of a slot.
type UpdateScheduleRequest struct {
	DayOfWeek int                 `json:"day_of_week" validate:"min=1,max=7"`
	StartTime models.ClockTime    `json:"start_time"`
	EndTime   models.ClockTime    `json:"end_time"`
	Mode      models.ScheduleMode `json:"mode" validate:"required,oneof=online offline"`
	Location  string              `json:"location" validate:"max=255"`
}

// DeleteSchedulesRequest lists the ids of a batch delete.
type DeleteSchedulesRequest struct {
	IDs []int64 `json:"ids" validate:"required,min=1,dive,gt=0"`
}

// ScheduleService manages weekly schedule entries. Overlap decisions always
// read the store; the cache only serves the read endpoints.
type ScheduleService struct {
	schedules scheduleRepository
	courses   courseReader
	cache     cachePort
	metrics   *MetricsService
	cal       calendar
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the schedule manager.
func NewScheduleService(
	schedules scheduleRepository,
	courses courseReader,
	cache cachePort,
	metrics *MetricsService,
	loc *time.Location,
	validate *validator.Validate,
	logger *zap.Logger,
) *ScheduleService {
	if cache == nil {
		cache = noopCache{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		schedules: schedules,
		courses:   courses,
		cache:     cache,
		metrics:   metrics,
		cal:       newCalendar(loc),
		validator: validate,
		logger:    logger,
	}
}

// Get returns one schedule.
func (s *ScheduleService) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	key := cache.ScheduleKey(id)
	var cached models.Schedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	sched, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load schedule", zap.Int64("schedule_id", id))
	}
	_ = s.cache.Set(ctx, key, sched, 0)
	return sched, nil
}

// List returns every schedule.
func (s *ScheduleService) List(ctx context.Context) ([]models.Schedule, error) {
	return s.cachedList(ctx, cache.AllSchedulesKey, func() ([]models.Schedule, error) {
		return s.schedules.ListAll(ctx)
	})
}

// ListByCourse returns the slots of one course.
func (s *ScheduleService) ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error) {
	return s.cachedList(ctx, cache.CourseSchedulesKey(courseID), func() ([]models.Schedule, error) {
		return s.schedules.ListByCourse(ctx, courseID)
	})
}

// ListByTutor returns the slots taught by one tutor.
func (s *ScheduleService) ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error) {
	return s.cachedList(ctx, cache.TutorSchedulesKey(tutorID), func() ([]models.Schedule, error) {
		return s.schedules.ListByTutor(ctx, tutorID)
	})
}

func (s *ScheduleService) cachedList(ctx context.Context, key string, load func() ([]models.Schedule, error)) ([]models.Schedule, error) {
	var cached []models.Schedule
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	items, err := load()
	if err != nil {
		return nil, storageFailure(s.logger, err, "failed to list schedules", zap.String("view", key))
	}
	if items == nil {
		items = []models.Schedule{}
	}
	_ = s.cache.Set(ctx, key, items, 0)
	return items, nil
}

// Create adds a weekly slot to one of the tutor's courses.
func (s *ScheduleService) Create(ctx context.Context, tutorID int64, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := validateSlot(req.DayOfWeek, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	course, err := s.courses.FindByID(ctx, req.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", req.CourseID))
	}
	if course.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another tutor")
	}
	status := lifecycle.Reconcile(*course, s.cal.today()).Course.Status
	if status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("course is %s", status))
	}

	candidate := models.Schedule{
		TutorID:   tutorID,
		CourseID:  course.ID,
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Mode:      req.Mode,
		Location:  req.Location,
		Status:    status,
	}
	if err := s.checkTutorConflicts(ctx, candidate); err != nil {
		return nil, err
	}
	if err := s.schedules.Create(ctx, &candidate); err != nil {
		return nil, s.writeError(err, candidate, "failed to create schedule")
	}

	s.invalidate(ctx, candidate)
	return &candidate, nil
}

// Update overwrites a slot after re-running the overlap check against the
// tutor's other active slots.
func (s *ScheduleService) Update(ctx context.Context, tutorID, id int64, req UpdateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if err := validateSlot(req.DayOfWeek, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	existing, err := s.schedules.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load schedule", zap.Int64("schedule_id", id))
	}
	if existing.TutorID != tutorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "schedule belongs to another tutor")
	}
	course, err := s.courses.FindByID(ctx, existing.CourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storageFailure(s.logger, err, "failed to load course", zap.Int64("course_id", existing.CourseID))
	}
	if course.Status == models.CourseStatusCanceled {
		return nil, appErrors.Clone(appErrors.ErrLocked, "course is canceled")
	}

	previous := *existing
	updated := *existing
	updated.DayOfWeek = req.DayOfWeek
	updated.StartTime = req.StartTime
	updated.EndTime = req.EndTime
	updated.Mode = req.Mode
	updated.Location = req.Location

	if updated.Active() {
		if err := s.checkTutorConflicts(ctx, updated); err != nil {
			return nil, err
		}
	}
	if err := s.schedules.Update(ctx, &updated); err != nil {
		return nil, s.writeError(err, updated, "failed to update schedule")
	}

	s.invalidate(ctx, previous, updated)
	return &updated, nil
}

// Delete removes the listed slots. Ids that do not exist, or that belong to
// another tutor when tutorID is set, are ignored.
func (s *ScheduleService) Delete(ctx context.Context, tutorID int64, req DeleteSchedulesRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delete payload")
	}
	deleted, err := s.schedules.DeleteMany(ctx, tutorID, req.IDs)
	if err != nil {
		return 0, storageFailure(s.logger, err, "failed to delete schedules", zap.Int64s("schedule_ids", req.IDs))
	}
	s.invalidate(ctx, deleted...)
	return len(deleted), nil
}

func (s *ScheduleService) checkTutorConflicts(ctx context.Context, candidate models.Schedule) error {
	existing, err := s.schedules.ListActiveByTutorDay(ctx, candidate.TutorID, candidate.DayOfWeek)
	if err != nil {
		return storageFailure(s.logger, err, "failed to check schedule conflicts",
			zap.Int64("tutor_id", candidate.TutorID), zap.Int("day_of_week", candidate.DayOfWeek))
	}
	if conflict, found := scheduling.FirstConflict([]models.Schedule{candidate}, existing); found {
		return s.conflictError(conflict.Candidate, conflict.Existing)
	}
	return nil
}

func (s *ScheduleService) conflictError(candidate, existing models.Schedule) error {
	s.metrics.RecordScheduleConflict("schedule")
	detail := &models.ScheduleConflictError{Candidate: candidate, Existing: existing}
	msg := fmt.Sprintf("schedule overlaps existing slot %s-%s on day %d", existing.StartTime, existing.EndTime, existing.DayOfWeek)
	if existing.ID == 0 {
		msg = "schedule overlaps an existing slot of the tutor"
	}
	return appErrors.Wrap(detail, appErrors.ErrScheduleConflict.Code, appErrors.ErrScheduleConflict.Status, msg)
}

// writeError maps store guard failures raised by concurrent writers that
// slipped past the pre-check.
func (s *ScheduleService) writeError(err error, candidate models.Schedule, message string) error {
	if errors.Is(err, repository.ErrOverlap) {
		return s.conflictError(candidate, models.Schedule{})
	}
	return storageFailure(s.logger, err, message, zap.Int64("schedule_id", candidate.ID), zap.Int64("course_id", candidate.CourseID))
}

func (s *ScheduleService) invalidate(ctx context.Context, schedules ...models.Schedule) {
	keys := []string{cache.AllSchedulesKey}
	for _, sched := range schedules {
		keys = append(keys,
			cache.ScheduleKey(sched.ID),
			cache.CourseSchedulesKey(sched.CourseID),
			cache.TutorSchedulesKey(sched.TutorID))
	}
	_ = s.cache.Invalidate(ctx, keys...)
}

func validateSlot(day int, start, end models.ClockTime) error {
	slot := scheduling.Slot{Day: day, Start: start, End: end}
	if !slot.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, "day_of_week must be 1-7 and start_time must be before end_time")
	}
	return nil
}
