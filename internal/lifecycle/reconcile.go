// Package lifecycle advances courses and contracts through their date driven
// states. Everything here is pure; callers persist the returned plan.
package lifecycle

import (
	"errors"
	"time"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

// ErrTerminal is returned when cancelling a course that already finished.
var ErrTerminal = errors.New("course already canceled or completed")

// Plan lists what a write must persist for one course.
type Plan struct {
	Course        models.Course
	CourseChanged bool
	// ScheduleStatus is set when the course schedules must mirror a terminal status.
	ScheduleStatus models.CourseStatus
	// Today bounds the contract sweep: active contracts ending before it complete.
	Today time.Time
}

// MirrorsSchedules reports whether schedule rows need updating.
func (p Plan) MirrorsSchedules() bool {
	return p.ScheduleStatus != ""
}

// DateOf truncates t to its calendar date, expressed at UTC midnight so it
// compares equal to DATE columns read from the store.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return DateOf(now.In(loc))
}

// Reconcile applies the automatic transitions for today:
// coming becomes ongoing on its start date, ongoing becomes completed once
// the end date has passed. Terminal courses mirror their status to schedules.
func Reconcile(course models.Course, today time.Time) Plan {
	today = DateOf(today)
	plan := Plan{Course: course, Today: today}

	if plan.Course.Status == models.CourseStatusComing && DateOf(course.StartDate).Equal(today) {
		plan.Course.Status = models.CourseStatusOngoing
		plan.CourseChanged = true
	}
	if plan.Course.Status == models.CourseStatusOngoing && DateOf(course.EndDate).Before(today) {
		plan.Course.Status = models.CourseStatusCompleted
		plan.CourseChanged = true
	}
	if plan.Course.Status.Terminal() {
		plan.ScheduleStatus = plan.Course.Status
	}
	return plan
}

// Cancel moves a non-terminal course to canceled and returns the plan for
// the write. Cancellation is explicit and never produced by Reconcile.
func Cancel(course models.Course, today time.Time) (Plan, error) {
	if course.Status.Terminal() {
		return Plan{}, ErrTerminal
	}
	course.Status = models.CourseStatusCanceled
	plan := Reconcile(course, today)
	plan.CourseChanged = true
	return plan, nil
}

// NeedsNotice reports whether cancelling a course in this status must notify
// its enrolled students.
func NeedsNotice(status models.CourseStatus) bool {
	return status == models.CourseStatusComing || status == models.CourseStatusOngoing
}

// ReconcileContract completes an active contract whose end date has passed.
func ReconcileContract(contract models.Contract, today time.Time) (models.Contract, bool) {
	if contract.Status == models.ContractStatusActive && DateOf(contract.EndDate).Before(DateOf(today)) {
		contract.Status = models.ContractStatusCompleted
		return contract, true
	}
	return contract, false
}
