package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/lifecycle"
	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/cache"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type courseStatusWriter interface {
	UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error
}

type scheduleStatusMirror interface {
	MirrorStatusTx(ctx context.Context, tx *sqlx.Tx, courseID int64, status models.CourseStatus) ([]int64, error)
}

type contractSweeper interface {
	CompleteExpiredTx(ctx context.Context, tx *sqlx.Tx, courseID int64, today time.Time) (int64, error)
}

// lifecycleWriter is the single place a reconcile plan is persisted: the
// course row, the mirrored schedule status and the contract sweep all land in
// the caller's transaction.
type lifecycleWriter struct {
	courses   courseStatusWriter
	schedules scheduleStatusMirror
	contracts contractSweeper
}

// persist writes plan. force writes the course row even when reconcile left
// it untouched, which explicit edits need. It returns the cache keys the write
// made stale; callers drop them once the transaction commits.
func (w lifecycleWriter) persist(ctx context.Context, tx *sqlx.Tx, plan lifecycle.Plan, force bool) ([]string, error) {
	written := plan.CourseChanged || force
	if written {
		if err := w.courses.UpdateTx(ctx, tx, &plan.Course); err != nil {
			return nil, err
		}
	}
	var mirrored []int64
	if plan.MirrorsSchedules() {
		ids, err := w.schedules.MirrorStatusTx(ctx, tx, plan.Course.ID, plan.ScheduleStatus)
		if err != nil {
			return nil, err
		}
		mirrored = ids
	}
	if _, err := w.contracts.CompleteExpiredTx(ctx, tx, plan.Course.ID, plan.Today); err != nil {
		return nil, err
	}
	if !written && len(mirrored) == 0 {
		return nil, nil
	}
	return staleViews(plan.Course, mirrored), nil
}

// staleViews lists the cached views showing course or its schedules.
func staleViews(course models.Course, mirrored []int64) []string {
	keys := append(cache.CourseScope(course.ID), cache.AllSchedulesKey, cache.TutorSchedulesKey(course.TutorID))
	for _, id := range mirrored {
		keys = append(keys, cache.ScheduleKey(id))
	}
	return keys
}

// calendar supplies "today" in the configured timezone.
type calendar struct {
	now func() time.Time
	loc *time.Location
}

func newCalendar(loc *time.Location) calendar {
	if loc == nil {
		loc = time.UTC
	}
	return calendar{now: time.Now, loc: loc}
}

func (c calendar) today() time.Time {
	return lifecycle.Today(c.now(), c.loc)
}
