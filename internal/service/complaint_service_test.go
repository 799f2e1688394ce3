package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type complaintRepoStub struct {
	complaints map[int64]*models.Complaint
	statuses   map[int64]models.ComplaintStatus
}

func newComplaintRepo(complaints ...models.Complaint) *complaintRepoStub {
	r := &complaintRepoStub{complaints: map[int64]*models.Complaint{}, statuses: map[int64]models.ComplaintStatus{}}
	for i := range complaints {
		c := complaints[i]
		r.complaints[c.ID] = &c
	}
	return r
}

func (r *complaintRepoStub) Create(ctx context.Context, complaint *models.Complaint) error {
	complaint.ID = int64(len(r.complaints) + 1)
	copied := *complaint
	r.complaints[complaint.ID] = &copied
	return nil
}

func (r *complaintRepoStub) FindByID(ctx context.Context, id int64) (*models.Complaint, error) {
	if c, ok := r.complaints[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (r *complaintRepoStub) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Complaint, error) {
	return r.FindByID(ctx, id)
}

func (r *complaintRepoStub) List(ctx context.Context, status models.ComplaintStatus) ([]models.Complaint, error) {
	return nil, nil
}

func (r *complaintRepoStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ComplaintStatus) error {
	r.statuses[id] = status
	return nil
}

var complaintToday = date(2025, time.May, 1)

type complaintFixture struct {
	svc        *ComplaintService
	complaints *complaintRepoStub
	contracts  *contractStoreStub
	courses    *courseStoreStub
	schedules  *scheduleStoreStub
	students   *studentStoreStub
	notifier   *notifierStub
	cache      *memoryCache
}

func newComplaintFixture(t *testing.T, course models.Course, complaint models.Complaint) (*complaintFixture, func(bool)) {
	t.Helper()
	db, mock := newTxProviderMock(t)
	f := &complaintFixture{
		complaints: newComplaintRepo(complaint),
		contracts:  newContractStore(models.Contract{ID: 5, TutorID: course.TutorID, StudentID: 1, CourseID: course.ID, Status: models.ContractStatusActive}),
		courses:    newCourseStore(course),
		schedules:  newScheduleStore(),
		students:   newStudentStore(),
		notifier:   &notifierStub{},
		cache:      newMemoryCache(),
	}
	f.svc = NewComplaintService(db, f.complaints, f.contracts, f.courses, f.schedules, f.students, f.notifier, f.cache, time.UTC, nil, nil)
	f.svc.cal = fixedCalendar(complaintToday)
	t.Cleanup(func() { assert.NoError(t, mock.ExpectationsWereMet()) })
	return f, func(commit bool) {
		mock.ExpectBegin()
		if commit {
			mock.ExpectCommit()
		} else {
			mock.ExpectRollback()
		}
	}
}

func pendingComplaint() models.Complaint {
	return models.Complaint{ID: 3, ContractID: 5, UserID: 101, Description: "tutor never showed up", Status: models.ComplaintStatusPending}
}

func TestComplaintServiceFileNotifiesFiler(t *testing.T) {
	f, _ := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusOngoing), pendingComplaint())

	complaint, err := f.svc.File(context.Background(), 101, FileComplaintRequest{ContractID: 5, Description: "  late again  "})
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusPending, complaint.Status)
	assert.Equal(t, "late again", complaint.Description)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "Your complaint has been submitted and is under review.", f.notifier.sent[0].Message)
	assert.Equal(t, models.NotificationContractUpdate, f.notifier.sent[0].Kind)

	_, err = f.svc.File(context.Background(), 101, FileComplaintRequest{ContractID: 404, Description: "x"})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestComplaintServiceApproveCancelsContractAndCourse(t *testing.T) {
	f, expect := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusOngoing), pendingComplaint())
	f.students.enrolled = []models.Student{{ID: 1, UserID: 101}, {ID: 2, UserID: 102}}
	expect(true)

	complaint, err := f.svc.Process(context.Background(), 3, "approve")
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusApproved, complaint.Status)
	assert.Equal(t, models.ComplaintStatusApproved, f.complaints.statuses[3])
	assert.Equal(t, models.ContractStatusCanceled, f.contracts.statusUpdates[5])
	assert.Equal(t, models.CourseStatusCanceled, f.courses.courses[1].Status)
	assert.Equal(t, models.CourseStatusCanceled, f.schedules.mirrored[1])

	require.Len(t, f.notifier.sent, 3)
	assert.Equal(t, "Course 'Course 1' has been canceled due to complaint: tutor never showed up", f.notifier.sent[2].Message)
}

func TestComplaintServiceApproveDropsScheduleViews(t *testing.T) {
	f, expect := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusOngoing), pendingComplaint())
	f.schedules.items = []models.Schedule{weekly(21, 7, 1, 2, 9, 0, 10, 0)}
	seedScheduleViews(f.cache, 1, 7, 21)
	expect(true)

	_, err := f.svc.Process(context.Background(), 3, "approve")
	require.NoError(t, err)
	assert.Empty(t, f.cache.entries)
}

func TestComplaintServiceApproveFinishedCourseOnlyCancelsContract(t *testing.T) {
	f, expect := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusCompleted), pendingComplaint())
	expect(true)

	_, err := f.svc.Process(context.Background(), 3, "approve")
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCanceled, f.contracts.statusUpdates[5])
	assert.Equal(t, models.CourseStatusCompleted, f.courses.courses[1].Status)
	assert.Empty(t, f.courses.updated)
}

func TestComplaintServiceReject(t *testing.T) {
	f, expect := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusOngoing), pendingComplaint())
	expect(true)

	complaint, err := f.svc.Process(context.Background(), 3, "Reject")
	require.NoError(t, err)
	assert.Equal(t, models.ComplaintStatusRejected, complaint.Status)
	assert.Empty(t, f.contracts.statusUpdates)
	assert.Equal(t, models.CourseStatusOngoing, f.courses.courses[1].Status)
}

func TestComplaintServiceProcessGuards(t *testing.T) {
	processed := pendingComplaint()
	processed.Status = models.ComplaintStatusRejected
	f, expect := newComplaintFixture(t, tutorCourse(1, 7, models.CourseStatusOngoing), processed)

	_, err := f.svc.Process(context.Background(), 3, "escalate")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	expect(false)
	_, err = f.svc.Process(context.Background(), 3, "approve")
	assert.True(t, errors.Is(err, appErrors.ErrLocked))

	expect(false)
	_, err = f.svc.Process(context.Background(), 77, "approve")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
