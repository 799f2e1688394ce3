package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fixedCalendar pins "today" for lifecycle decisions.
func fixedCalendar(today time.Time) calendar {
	return calendar{now: func() time.Time { return today.Add(10 * time.Hour) }, loc: time.UTC}
}

func weekly(id, tutorID, courseID int64, day, sh, sm, eh, em int) models.Schedule {
	return models.Schedule{
		ID:        id,
		TutorID:   tutorID,
		CourseID:  courseID,
		DayOfWeek: day,
		StartTime: models.NewClockTime(sh, sm),
		EndTime:   models.NewClockTime(eh, em),
		Mode:      models.ScheduleModeOnline,
		Status:    models.CourseStatusComing,
	}
}

type courseStoreStub struct {
	courses    map[int64]*models.Course
	listed     []models.Course
	due        []models.Course
	updated    []models.Course
	created    []models.Course
	deletable  []int64
	findErr    error
	updateErr  error
	lastFilter models.CourseFilter
}

func newCourseStore(courses ...models.Course) *courseStoreStub {
	s := &courseStoreStub{courses: map[int64]*models.Course{}}
	for i := range courses {
		c := courses[i]
		s.courses[c.ID] = &c
	}
	return s
}

func (s *courseStoreStub) find(id int64) (*models.Course, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if c, ok := s.courses[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *courseStoreStub) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	s.lastFilter = filter
	return s.listed, len(s.listed), nil
}

func (s *courseStoreStub) FindByID(ctx context.Context, id int64) (*models.Course, error) {
	return s.find(id)
}

func (s *courseStoreStub) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Course, error) {
	return s.find(id)
}

func (s *courseStoreStub) ListByTutor(ctx context.Context, tutorID int64) ([]models.Course, error) {
	var out []models.Course
	for _, c := range s.courses {
		if c.TutorID == tutorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *courseStoreStub) ListByStudent(ctx context.Context, studentID int64) ([]models.Course, error) {
	return s.listed, nil
}

func (s *courseStoreStub) ListDue(ctx context.Context, today time.Time, limit int) ([]models.Course, error) {
	return s.due, nil
}

func (s *courseStoreStub) Create(ctx context.Context, course *models.Course) error {
	course.ID = int64(len(s.courses) + 100)
	s.created = append(s.created, *course)
	return nil
}

func (s *courseStoreStub) UpdateTx(ctx context.Context, tx *sqlx.Tx, course *models.Course) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updated = append(s.updated, *course)
	copied := *course
	s.courses[course.ID] = &copied
	return nil
}

func (s *courseStoreStub) SoftDeleteTx(ctx context.Context, tx *sqlx.Tx, tutorID int64, ids []int64) ([]int64, error) {
	return s.deletable, nil
}

type scheduleStoreStub struct {
	items        []models.Schedule
	studentSlots []models.Schedule
	created      []models.Schedule
	updatedRows  []models.Schedule
	mirrored     map[int64]models.CourseStatus
	deletedFor   [][]int64
	createErr    error
	listCalls    int
}

func newScheduleStore(items ...models.Schedule) *scheduleStoreStub {
	return &scheduleStoreStub{items: items, mirrored: map[int64]models.CourseStatus{}}
}

func (s *scheduleStoreStub) ListAll(ctx context.Context) ([]models.Schedule, error) {
	s.listCalls++
	return s.items, nil
}

func (s *scheduleStoreStub) FindByID(ctx context.Context, id int64) (*models.Schedule, error) {
	for _, item := range s.items {
		if item.ID == id {
			copied := item
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleStoreStub) byCourse(courseID int64) []models.Schedule {
	var out []models.Schedule
	for _, item := range s.items {
		if item.CourseID == courseID {
			out = append(out, item)
		}
	}
	return out
}

func (s *scheduleStoreStub) ListByCourse(ctx context.Context, courseID int64) ([]models.Schedule, error) {
	return s.byCourse(courseID), nil
}

func (s *scheduleStoreStub) ListByCourseTx(ctx context.Context, tx *sqlx.Tx, courseID int64) ([]models.Schedule, error) {
	return s.byCourse(courseID), nil
}

func (s *scheduleStoreStub) ListByTutor(ctx context.Context, tutorID int64) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, item := range s.items {
		if item.TutorID == tutorID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *scheduleStoreStub) ListActiveByTutorDay(ctx context.Context, tutorID int64, day int) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, item := range s.items {
		if item.TutorID == tutorID && item.DayOfWeek == day && item.Active() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *scheduleStoreStub) ListForStudentTx(ctx context.Context, tx *sqlx.Tx, studentID, excludeCourseID int64) ([]models.Schedule, error) {
	return s.studentSlots, nil
}

func (s *scheduleStoreStub) Create(ctx context.Context, schedule *models.Schedule) error {
	if s.createErr != nil {
		return s.createErr
	}
	schedule.ID = int64(len(s.items) + 1000)
	s.created = append(s.created, *schedule)
	s.items = append(s.items, *schedule)
	return nil
}

func (s *scheduleStoreStub) Update(ctx context.Context, schedule *models.Schedule) error {
	s.updatedRows = append(s.updatedRows, *schedule)
	return nil
}

func (s *scheduleStoreStub) DeleteMany(ctx context.Context, tutorID int64, ids []int64) ([]models.Schedule, error) {
	var removed []models.Schedule
	for _, id := range ids {
		for _, item := range s.items {
			if item.ID == id && (tutorID == 0 || item.TutorID == tutorID) {
				removed = append(removed, item)
			}
		}
	}
	return removed, nil
}

func (s *scheduleStoreStub) MirrorStatusTx(ctx context.Context, tx *sqlx.Tx, courseID int64, status models.CourseStatus) ([]int64, error) {
	s.mirrored[courseID] = status
	var ids []int64
	for i := range s.items {
		if s.items[i].CourseID == courseID && s.items[i].Status != status {
			s.items[i].Status = status
			ids = append(ids, s.items[i].ID)
		}
	}
	return ids, nil
}

func (s *scheduleStoreStub) DeleteByCoursesTx(ctx context.Context, tx *sqlx.Tx, courseIDs []int64) error {
	s.deletedFor = append(s.deletedFor, courseIDs)
	return nil
}

type contractStoreStub struct {
	contracts     map[int64]*models.Contract
	created       []models.Contract
	statusUpdates map[int64]models.ContractStatus
	sweptCourses  []int64
	document      *models.ContractDocument
}

func newContractStore(contracts ...models.Contract) *contractStoreStub {
	s := &contractStoreStub{contracts: map[int64]*models.Contract{}, statusUpdates: map[int64]models.ContractStatus{}}
	for i := range contracts {
		c := contracts[i]
		s.contracts[c.ID] = &c
	}
	return s
}

func (s *contractStoreStub) FindByID(ctx context.Context, id int64) (*models.Contract, error) {
	if c, ok := s.contracts[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *contractStoreStub) FindByIDForUpdateTx(ctx context.Context, tx *sqlx.Tx, id int64) (*models.Contract, error) {
	return s.FindByID(ctx, id)
}

func (s *contractStoreStub) FindDocument(ctx context.Context, id int64) (*models.ContractDocument, error) {
	if s.document == nil || s.document.ID != id {
		return nil, sql.ErrNoRows
	}
	copied := *s.document
	return &copied, nil
}

func (s *contractStoreStub) ListByStudent(ctx context.Context, studentID int64) ([]models.Contract, error) {
	var out []models.Contract
	for _, c := range s.contracts {
		if c.StudentID == studentID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *contractStoreStub) ListByTutor(ctx context.Context, tutorID int64) ([]models.Contract, error) {
	var out []models.Contract
	for _, c := range s.contracts {
		if c.TutorID == tutorID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *contractStoreStub) CreateTx(ctx context.Context, tx *sqlx.Tx, contract *models.Contract) error {
	contract.ID = int64(len(s.created) + 500)
	s.created = append(s.created, *contract)
	return nil
}

func (s *contractStoreStub) UpdateStatus(ctx context.Context, id int64, status models.ContractStatus) error {
	s.statusUpdates[id] = status
	return nil
}

func (s *contractStoreStub) UpdateStatusTx(ctx context.Context, tx *sqlx.Tx, id int64, status models.ContractStatus) error {
	s.statusUpdates[id] = status
	return nil
}

func (s *contractStoreStub) CompleteExpiredTx(ctx context.Context, tx *sqlx.Tx, courseID int64, today time.Time) (int64, error) {
	s.sweptCourses = append(s.sweptCourses, courseID)
	return 0, nil
}

type studentStoreStub struct {
	students map[int64]models.Student
	enrolled []models.Student
	locked   []int64
}

func newStudentStore(students ...models.Student) *studentStoreStub {
	s := &studentStoreStub{students: map[int64]models.Student{}}
	for _, st := range students {
		s.students[st.ID] = st
	}
	return s
}

func (s *studentStoreStub) FindByID(ctx context.Context, id int64) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentStoreStub) LockTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	if _, ok := s.students[id]; !ok {
		return sql.ErrNoRows
	}
	s.locked = append(s.locked, id)
	return nil
}

func (s *studentStoreStub) ListEnrolledInCourse(ctx context.Context, courseID int64) ([]models.Student, error) {
	return s.enrolled, nil
}

type tutorStoreStub struct {
	tutor *models.Tutor
}

func (s tutorStoreStub) FindByID(ctx context.Context, id int64) (*models.Tutor, error) {
	if s.tutor == nil || s.tutor.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.tutor, nil
}

type sentNotification struct {
	UserID  int64
	Message string
	Kind    models.NotificationType
}

type notifierStub struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (n *notifierStub) Notify(ctx context.Context, userID int64, message string, kind models.NotificationType) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotification{UserID: userID, Message: message, Kind: kind})
	return nil
}

// memoryCache is a cachePort backed by a map of JSON payloads.
type memoryCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	payload, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(payload, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = payload
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}
