package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/internal/service"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type scheduleServiceMock struct {
	schedule    *models.Schedule
	items       []models.Schedule
	err         error
	deleted     int
	lastTutorID int64
	lastCreate  service.CreateScheduleRequest
}

func (m *scheduleServiceMock) Get(ctx context.Context, id int64) (*models.Schedule, error) {
	return m.schedule, m.err
}

func (m *scheduleServiceMock) List(ctx context.Context) ([]models.Schedule, error) {
	return m.items, m.err
}

func (m *scheduleServiceMock) ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error) {
	return m.items, m.err
}

func (m *scheduleServiceMock) ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error) {
	m.lastTutorID = tutorID
	return m.items, m.err
}

func (m *scheduleServiceMock) Create(ctx context.Context, tutorID int64, req service.CreateScheduleRequest) (*models.Schedule, error) {
	m.lastTutorID = tutorID
	m.lastCreate = req
	return m.schedule, m.err
}

func (m *scheduleServiceMock) Update(ctx context.Context, tutorID, id int64, req service.UpdateScheduleRequest) (*models.Schedule, error) {
	m.lastTutorID = tutorID
	return m.schedule, m.err
}

func (m *scheduleServiceMock) Delete(ctx context.Context, tutorID int64, req service.DeleteSchedulesRequest) (int, error) {
	m.lastTutorID = tutorID
	return m.deleted, m.err
}

func TestScheduleHandlerCreateParsesClockTimes(t *testing.T) {
	svc := &scheduleServiceMock{schedule: &models.Schedule{ID: 5}}
	handler := NewScheduleHandler(svc)

	body := `{"course_id":9,"day_of_week":3,"start_time":"13:30","end_time":"15:00","mode":"online"}`
	c, w := newTestContext(t, http.MethodPost, "/schedules", body, tutorClaims(2), 0)
	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(2), svc.lastTutorID)
	assert.Equal(t, models.NewClockTime(13, 30), svc.lastCreate.StartTime)
	assert.Equal(t, models.NewClockTime(15, 0), svc.lastCreate.EndTime)
}

func TestScheduleHandlerCreateRejectsBadClock(t *testing.T) {
	handler := NewScheduleHandler(&scheduleServiceMock{})

	body := `{"course_id":9,"day_of_week":3,"start_time":"25:99","end_time":"15:00","mode":"online"}`
	c, w := newTestContext(t, http.MethodPost, "/schedules", body, tutorClaims(2), 0)
	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleHandlerUpdateLocked(t *testing.T) {
	svc := &scheduleServiceMock{err: appErrors.Clone(appErrors.ErrLocked, "course is canceled")}
	handler := NewScheduleHandler(svc)

	body := `{"day_of_week":3,"start_time":"13:30","end_time":"15:00","mode":"offline","location":"Room 2"}`
	c, w := newTestContext(t, http.MethodPut, "/schedules/5", body, tutorClaims(2), 5)
	handler.Update(c)

	assert.Equal(t, http.StatusLocked, w.Code)
}

func TestScheduleHandlerDeleteReportsCount(t *testing.T) {
	svc := &scheduleServiceMock{deleted: 2}
	handler := NewScheduleHandler(svc)

	c, w := newTestContext(t, http.MethodDelete, "/schedules", `{"ids":[1,2,3]}`, tutorClaims(2), 0)
	handler.Delete(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"deleted":2`)
	assert.Equal(t, int64(2), svc.lastTutorID)
}

func TestScheduleHandlerListByTutor(t *testing.T) {
	svc := &scheduleServiceMock{items: []models.Schedule{{ID: 1}}}
	handler := NewScheduleHandler(svc)

	c, w := newTestContext(t, http.MethodGet, "/tutors/6/schedules", "", nil, 6)
	handler.ListByTutor(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(6), svc.lastTutorID)
}
