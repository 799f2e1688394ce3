package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestReconcileStartsCourseOnStartDate(t *testing.T) {
	course := models.Course{Status: models.CourseStatusComing, StartDate: day(2026, 3, 2), EndDate: day(2026, 5, 30)}

	plan := Reconcile(course, time.Date(2026, 3, 2, 17, 45, 0, 0, time.UTC))
	assert.True(t, plan.CourseChanged)
	assert.Equal(t, models.CourseStatusOngoing, plan.Course.Status)
	assert.False(t, plan.MirrorsSchedules())

	plan = Reconcile(course, day(2026, 3, 1))
	assert.False(t, plan.CourseChanged)
	assert.Equal(t, models.CourseStatusComing, plan.Course.Status)
}

func TestReconcileLeavesLateComingCourse(t *testing.T) {
	course := models.Course{Status: models.CourseStatusComing, StartDate: day(2026, 3, 2), EndDate: day(2026, 5, 30)}

	plan := Reconcile(course, day(2026, 3, 3))
	assert.False(t, plan.CourseChanged)
	assert.Equal(t, models.CourseStatusComing, plan.Course.Status)
}

func TestReconcileCompletesAfterEndDate(t *testing.T) {
	course := models.Course{Status: models.CourseStatusOngoing, StartDate: day(2026, 1, 5), EndDate: day(2026, 2, 27)}

	plan := Reconcile(course, day(2026, 2, 27))
	assert.False(t, plan.CourseChanged, "end date itself is still ongoing")

	plan = Reconcile(course, day(2026, 2, 28))
	assert.True(t, plan.CourseChanged)
	assert.Equal(t, models.CourseStatusCompleted, plan.Course.Status)
	assert.Equal(t, models.CourseStatusCompleted, plan.ScheduleStatus)
}

func TestReconcileSingleDayCourse(t *testing.T) {
	course := models.Course{Status: models.CourseStatusComing, StartDate: day(2026, 4, 1), EndDate: day(2026, 4, 1)}

	plan := Reconcile(course, day(2026, 4, 1))
	assert.Equal(t, models.CourseStatusOngoing, plan.Course.Status)
}

func TestReconcileMirrorsTerminalStatus(t *testing.T) {
	course := models.Course{Status: models.CourseStatusCanceled, StartDate: day(2026, 1, 1), EndDate: day(2026, 2, 1)}

	plan := Reconcile(course, day(2026, 1, 15))
	assert.False(t, plan.CourseChanged)
	assert.Equal(t, models.CourseStatusCanceled, plan.ScheduleStatus)
}

func TestCancel(t *testing.T) {
	course := models.Course{Status: models.CourseStatusOngoing, StartDate: day(2026, 1, 1), EndDate: day(2026, 6, 1)}

	plan, err := Cancel(course, day(2026, 2, 1))
	require.NoError(t, err)
	assert.Equal(t, models.CourseStatusCanceled, plan.Course.Status)
	assert.Equal(t, models.CourseStatusCanceled, plan.ScheduleStatus)
	assert.True(t, plan.CourseChanged)

	_, err = Cancel(plan.Course, day(2026, 2, 1))
	assert.ErrorIs(t, err, ErrTerminal)

	_, err = Cancel(models.Course{Status: models.CourseStatusCompleted}, day(2026, 2, 1))
	assert.ErrorIs(t, err, ErrTerminal)
}

func TestReconcileContract(t *testing.T) {
	contract := models.Contract{Status: models.ContractStatusActive, EndDate: day(2026, 2, 1)}

	_, changed := ReconcileContract(contract, day(2026, 2, 1))
	assert.False(t, changed)

	swept, changed := ReconcileContract(contract, day(2026, 2, 2))
	assert.True(t, changed)
	assert.Equal(t, models.ContractStatusCompleted, swept.Status)

	contract.Status = models.ContractStatusCanceled
	_, changed = ReconcileContract(contract, day(2026, 3, 1))
	assert.False(t, changed)
}

func TestTodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+7", 7*3600)
	now := time.Date(2026, 1, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, day(2026, 1, 2), Today(now, loc))
	assert.Equal(t, day(2026, 1, 1), Today(now, nil))
}
