package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/timeslot"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type windowRepoStub struct {
	windows []models.TimeWindow
	created []models.TimeWindow
	deleted []string
}

func (s *windowRepoStub) CreateBatch(ctx context.Context, windows []models.TimeWindow) error {
	s.created = append(s.created, windows...)
	return nil
}

func (s *windowRepoStub) FindByID(ctx context.Context, id string) (*models.TimeWindow, error) {
	for i := range s.windows {
		if s.windows[i].ID == id {
			return &s.windows[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *windowRepoStub) ListByCourse(ctx context.Context, courseID string) ([]models.TimeWindow, error) {
	return s.windows, nil
}

func (s *windowRepoStub) Delete(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type cacheStub struct {
	values     map[string][]models.TimeWindow
	deletions  []string
	setCalls   int
	servedHits int
}

func (c *cacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	cached, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	out, ok := dest.(*[]models.TimeWindow)
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*out = cached
	c.servedHits++
	return nil
}

func (c *cacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.values == nil {
		c.values = make(map[string][]models.TimeWindow)
	}
	if windows, ok := value.([]models.TimeWindow); ok {
		c.values[key] = windows
	}
	c.setCalls++
	return nil
}

func (c *cacheStub) Delete(ctx context.Context, key string) error {
	c.deletions = append(c.deletions, key)
	delete(c.values, key)
	return nil
}

func newWindowFixture(course *models.Course, repo *windowRepoStub, cache *cacheStub) *WindowService {
	return NewWindowService(repo, &courseReaderStub{course: course}, cache, nil, zap.NewNop(), time.Minute, 14)
}

func TestWindowServiceCreateSplitsRange(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{}
	cache := &cacheStub{}
	svc := newWindowFixture(course, repo, cache)

	instructor := "ins-1"
	capacity := 3
	windows, err := svc.Create(context.Background(), "course-1", dto.CreateWindowRequest{
		DayOfWeek:      1,
		StartTime:      "10:00",
		EndTime:        "12:00",
		InstructorID:   &instructor,
		InstructorName: "Kenji Mori",
		Capacity:       &capacity,
	})
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "10:00", windows[0].StartTime)
	assert.Equal(t, "11:00", windows[0].EndTime)
	assert.Equal(t, "11:00", windows[1].StartTime)
	assert.Equal(t, "12:00", windows[1].EndTime)
	for _, w := range windows {
		assert.Equal(t, 1, w.DayOfWeek)
		require.NotNil(t, w.InstructorID)
		assert.Equal(t, "ins-1", *w.InstructorID)
		require.NotNil(t, w.Capacity)
		assert.Equal(t, 3, *w.Capacity)
	}
	assert.Len(t, repo.created, 2)
	assert.Contains(t, cache.deletions, "windows:course:course-1")
}

func TestWindowServiceCreateKeepsAlmostFullRange(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{}
	svc := newWindowFixture(course, repo, &cacheStub{})

	windows, err := svc.Create(context.Background(), "course-1", dto.CreateWindowRequest{
		DayOfWeek: 2,
		StartTime: "10:00",
		EndTime:   "10:59",
	})
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, "10:59", windows[0].EndTime)
}

func TestWindowServiceCreateRejectsBadRange(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{}
	svc := newWindowFixture(course, repo, &cacheStub{})

	_, err := svc.Create(context.Background(), "course-1", dto.CreateWindowRequest{
		DayOfWeek: 1,
		StartTime: "10:00",
		EndTime:   "11:30",
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, repo.created, "invalid ranges persist nothing")
}

func TestWindowServiceListUsesCache(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{windows: []models.TimeWindow{
		{ID: "win-1", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}}
	cache := &cacheStub{}
	svc := newWindowFixture(course, repo, cache)

	first, err := svc.List(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, 1, cache.setCalls)

	second, err := svc.List(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, cache.servedHits, "second listing is served from cache")
}

func TestWindowServiceDeleteInvalidatesCache(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{windows: []models.TimeWindow{
		{ID: "win-1", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}}
	cache := &cacheStub{}
	svc := newWindowFixture(course, repo, cache)

	require.NoError(t, svc.Delete(context.Background(), "win-1"))
	assert.Equal(t, []string{"win-1"}, repo.deleted)
	assert.Contains(t, cache.deletions, "windows:course:course-1")

	err := svc.Delete(context.Background(), "win-missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestWindowServiceListUpcomingSlots(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	repo := &windowRepoStub{windows: []models.TimeWindow{
		{ID: "win-1", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}}
	svc := newWindowFixture(course, repo, &cacheStub{})

	from := time.Date(2026, 1, 7, 9, 0, 0, 0, timeslot.Zone)
	slots, err := svc.ListUpcomingSlots(context.Background(), "course-1", from)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, time.Date(2026, 1, 12, 10, 0, 0, 0, timeslot.Zone), slots[0].StartAt)
	assert.Equal(t, time.Date(2026, 1, 19, 10, 0, 0, 0, timeslot.Zone), slots[1].StartAt)
}
