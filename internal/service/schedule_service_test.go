package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/repository"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

var scheduleToday = date(2025, time.March, 10)

func tutorCourse(id, tutorID int64, status models.CourseStatus) models.Course {
	return models.Course{
		ID:          id,
		TutorID:     tutorID,
		Name:        fmt.Sprintf("Course %d", id),
		StartDate:   date(2025, time.April, 1),
		EndDate:     date(2025, time.June, 30),
		MaxStudents: 10,
		Status:      status,
	}
}

func newScheduleServiceForTest(courses *courseStoreStub, schedules *scheduleStoreStub, c cachePort) *ScheduleService {
	svc := NewScheduleService(schedules, courses, c, NewMetricsService(), time.UTC, nil, nil)
	svc.cal = fixedCalendar(scheduleToday)
	return svc
}

func createRequest(courseID int64, day, sh, sm, eh, em int) CreateScheduleRequest {
	return CreateScheduleRequest{
		CourseID:  courseID,
		DayOfWeek: day,
		StartTime: models.NewClockTime(sh, sm),
		EndTime:   models.NewClockTime(eh, em),
		Mode:      models.ScheduleModeOnline,
	}
}

func TestScheduleServiceCreateRejectsOverlap(t *testing.T) {
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusComing))
	schedules := newScheduleStore(weekly(11, 7, 2, 3, 9, 0, 10, 0))
	svc := newScheduleServiceForTest(courses, schedules, nil)

	_, err := svc.Create(context.Background(), 7, createRequest(1, 3, 9, 30, 10, 30))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrScheduleConflict))

	var detail *models.ScheduleConflictError
	require.True(t, errors.As(err, &detail))
	assert.Equal(t, int64(11), detail.Existing.ID)
	assert.Empty(t, schedules.created)
	assert.Equal(t, uint64(1), svc.metrics.Snapshot().ScheduleConflicts)
}

func TestScheduleServiceCreateAllowsTouchingSlots(t *testing.T) {
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusComing))
	schedules := newScheduleStore(weekly(11, 7, 2, 3, 9, 0, 10, 0))
	memory := newMemoryCache()
	svc := newScheduleServiceForTest(courses, schedules, memory)

	created, err := svc.Create(context.Background(), 7, createRequest(1, 3, 10, 0, 11, 0))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusComing, created.Status)
	assert.Equal(t, int64(7), created.TutorID)
	assert.Len(t, schedules.created, 1)
	assert.Contains(t, memory.invalidated, cache.AllSchedulesKey)
	assert.Contains(t, memory.invalidated, cache.CourseSchedulesKey(1))
}

func TestScheduleServiceCreateIgnoresOtherDaysAndTerminalSlots(t *testing.T) {
	finished := weekly(12, 7, 3, 3, 9, 0, 10, 0)
	finished.Status = models.CourseStatusCompleted
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusOngoing))
	schedules := newScheduleStore(weekly(11, 7, 2, 4, 9, 0, 10, 0), finished)
	svc := newScheduleServiceForTest(courses, schedules, nil)

	_, err := svc.Create(context.Background(), 7, createRequest(1, 3, 9, 0, 10, 0))
	require.NoError(t, err)
}

func TestScheduleServiceCreateValidation(t *testing.T) {
	svc := newScheduleServiceForTest(newCourseStore(tutorCourse(1, 7, models.CourseStatusComing)), newScheduleStore(), nil)

	cases := map[string]CreateScheduleRequest{
		"day out of range": createRequest(1, 8, 9, 0, 10, 0),
		"inverted range":   createRequest(1, 2, 11, 0, 10, 0),
		"empty range":      createRequest(1, 2, 10, 0, 10, 0),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), 7, req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, appErrors.ErrValidation))
		})
	}
}

func TestScheduleServiceCreateCourseGuards(t *testing.T) {
	courses := newCourseStore(
		tutorCourse(1, 7, models.CourseStatusComing),
		tutorCourse(2, 7, models.CourseStatusCanceled),
	)
	svc := newScheduleServiceForTest(courses, newScheduleStore(), nil)

	_, err := svc.Create(context.Background(), 7, createRequest(99, 1, 9, 0, 10, 0))
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	_, err = svc.Create(context.Background(), 8, createRequest(1, 1, 9, 0, 10, 0))
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.Create(context.Background(), 7, createRequest(2, 1, 9, 0, 10, 0))
	assert.True(t, errors.Is(err, appErrors.ErrLocked))
}

func TestScheduleServiceCreateMapsStoreOverlap(t *testing.T) {
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusComing))
	schedules := newScheduleStore()
	schedules.createErr = fmt.Errorf("create schedule: %w", repository.ErrOverlap)
	svc := newScheduleServiceForTest(courses, schedules, nil)

	_, err := svc.Create(context.Background(), 7, createRequest(1, 1, 9, 0, 10, 0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrScheduleConflict))
}

func TestScheduleServiceUpdateExcludesItself(t *testing.T) {
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusComing))
	schedules := newScheduleStore(weekly(11, 7, 1, 2, 9, 0, 10, 0))
	svc := newScheduleServiceForTest(courses, schedules, nil)

	updated, err := svc.Update(context.Background(), 7, 11, UpdateScheduleRequest{
		DayOfWeek: 2,
		StartTime: models.NewClockTime(9, 30),
		EndTime:   models.NewClockTime(10, 30),
		Mode:      models.ScheduleModeOffline,
		Location:  "Room 4",
	})
	require.NoError(t, err)
	assert.Equal(t, "09:30", updated.StartTime.String())
	assert.Len(t, schedules.updatedRows, 1)
}

func TestScheduleServiceUpdateLockedWhenCourseCanceled(t *testing.T) {
	courses := newCourseStore(tutorCourse(1, 7, models.CourseStatusCanceled))
	schedules := newScheduleStore(weekly(11, 7, 1, 2, 9, 0, 10, 0))
	svc := newScheduleServiceForTest(courses, schedules, nil)

	_, err := svc.Update(context.Background(), 7, 11, UpdateScheduleRequest{
		DayOfWeek: 2,
		StartTime: models.NewClockTime(11, 0),
		EndTime:   models.NewClockTime(12, 0),
		Mode:      models.ScheduleModeOnline,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	_, err = svc.Update(context.Background(), 7, 404, UpdateScheduleRequest{
		DayOfWeek: 2,
		StartTime: models.NewClockTime(11, 0),
		EndTime:   models.NewClockTime(12, 0),
		Mode:      models.ScheduleModeOnline,
	})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestScheduleServiceListUsesCache(t *testing.T) {
	schedules := newScheduleStore(weekly(11, 7, 1, 2, 9, 0, 10, 0))
	svc := newScheduleServiceForTest(newCourseStore(), schedules, newMemoryCache())

	first, err := svc.List(context.Background())
	require.NoError(t, err)
	second, err := svc.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, schedules.listCalls)
}

func TestScheduleServiceDeleteScopesToTutor(t *testing.T) {
	schedules := newScheduleStore(weekly(11, 7, 1, 2, 9, 0, 10, 0), weekly(12, 8, 2, 2, 9, 0, 10, 0))
	svc := newScheduleServiceForTest(newCourseStore(), schedules, nil)

	count, err := svc.Delete(context.Background(), 7, DeleteSchedulesRequest{IDs: []int64{11, 12}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = svc.Delete(context.Background(), 7, DeleteSchedulesRequest{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
