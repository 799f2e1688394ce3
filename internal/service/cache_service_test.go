package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutorhub-api/internal/models"
	appErrors "github.com/noah-isme/tutorhub-api/pkg/errors"
)

type cacheRepoStub struct {
	entries map[string][]byte
	ttls    map[string]time.Duration
	deleted []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	payload, ok := r.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (r *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.entries[key] = payload
	r.ttls[key] = ttl
	return nil
}

func (r *cacheRepoStub) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(r.entries, key)
	}
	r.deleted = append(r.deleted, keys...)
	return nil
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	repo := newCacheRepoStub()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, metrics, time.Minute, nil, true)

	var course models.Course
	hit, err := svc.Get(context.Background(), "course:1", &course)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(context.Background(), "course:1", models.Course{ID: 1, Name: "Algebra"}, 0))
	assert.Equal(t, time.Minute, repo.ttls["course:1"])

	hit, err = svc.Get(context.Background(), "course:1", &course)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "Algebra", course.Name)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.InDelta(t, 0.5, snapshot.CacheHitRatio, 0.001)

	require.NoError(t, svc.Invalidate(context.Background(), "course:1", "course:1:schedules"))
	assert.Equal(t, []string{"course:1", "course:1:schedules"}, repo.deleted)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	repo := newCacheRepoStub()
	svc := NewCacheService(repo, nil, 0, nil, false)

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.entries)
	var out int
	hit, err := svc.Get(context.Background(), "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMetricsServiceDomainCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordEnrollment(OutcomeEnrolled)
	metrics.RecordEnrollment(OutcomeRejected)
	metrics.RecordEnrollment(OutcomeFailed)
	metrics.RecordScheduleConflict("schedule")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.EnrollmentsCreated)
	assert.Equal(t, uint64(1), snapshot.EnrollmentsRejected)
	assert.Equal(t, uint64(1), snapshot.ScheduleConflicts)

	var nilMetrics *MetricsService
	assert.NotPanics(t, func() { nilMetrics.RecordEnrollment(OutcomeEnrolled) })
	assert.Equal(t, models.SystemMetrics{}, nilMetrics.Snapshot())
}
