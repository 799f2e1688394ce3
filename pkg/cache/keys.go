package cache

import "strconv"

// Keys are derived from entity ids only, never from names or other mutable
// attributes, so a rename can never leave a stale entry behind.
const (
	AllSchedulesKey = "schedules:all"
	schedulePrefix  = "schedule:"
	coursePrefix    = "course:"
	tutorPrefix     = "tutor:"
	studentPrefix   = "student:"
)

// ScheduleKey addresses a single schedule entry.
func ScheduleKey(id int64) string {
	return schedulePrefix + strconv.FormatInt(id, 10)
}

// CourseKey addresses a single course.
func CourseKey(id int64) string {
	return coursePrefix + strconv.FormatInt(id, 10)
}

// CourseSchedulesKey addresses the schedule list of a course.
func CourseSchedulesKey(courseID int64) string {
	return CourseKey(courseID) + ":schedules"
}

// TutorSchedulesKey addresses the schedule list of a tutor.
func TutorSchedulesKey(tutorID int64) string {
	return tutorPrefix + strconv.FormatInt(tutorID, 10) + ":schedules"
}

// StudentCoursesKey addresses the enrolled course list of a student.
func StudentCoursesKey(studentID int64) string {
	return studentPrefix + strconv.FormatInt(studentID, 10) + ":courses"
}

// CourseScope returns every key describing a course and its schedules.
func CourseScope(courseID int64) []string {
	return []string{CourseKey(courseID), CourseSchedulesKey(courseID)}
}
