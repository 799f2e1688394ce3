package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreDeterministic(t *testing.T) {
	assert.Equal(t, "schedule:42", ScheduleKey(42))
	assert.Equal(t, "course:7", CourseKey(7))
	assert.Equal(t, "course:7:schedules", CourseSchedulesKey(7))
	assert.Equal(t, "tutor:3:schedules", TutorSchedulesKey(3))
	assert.Equal(t, "student:9:courses", StudentCoursesKey(9))
	assert.Equal(t, []string{"course:7", "course:7:schedules"}, CourseScope(7))
}

func TestKeysDoNotCollideAcrossEntities(t *testing.T) {
	assert.NotEqual(t, ScheduleKey(1), CourseKey(1))
	assert.NotEqual(t, CourseSchedulesKey(1), TutorSchedulesKey(1))
}
