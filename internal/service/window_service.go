package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/timeslot"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type windowRepository interface {
	CreateBatch(ctx context.Context, windows []models.TimeWindow) error
	FindByID(ctx context.Context, id string) (*models.TimeWindow, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.TimeWindow, error)
	Delete(ctx context.Context, id string) error
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type windowCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// WindowService manages recurring availability windows. Admin-entered ranges
// are split into lesson-sized rows on save; the post-split row is the unit
// students select and demand is counted against.
type WindowService struct {
	windows     windowRepository
	courses     courseReader
	cache       windowCache
	validator   *validator.Validate
	logger      *zap.Logger
	cacheTTL    time.Duration
	horizonDays int
}

// NewWindowService wires window dependencies.
func NewWindowService(windows windowRepository, courses courseReader, cache windowCache, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration, horizonDays int) *WindowService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if horizonDays <= 0 {
		horizonDays = 14
	}
	return &WindowService{
		windows:     windows,
		courses:     courses,
		cache:       cache,
		validator:   validate,
		logger:      logger,
		cacheTTL:    cacheTTL,
		horizonDays: horizonDays,
	}
}

func windowCacheKey(courseID string) string {
	return "windows:course:" + courseID
}

// Create validates and splits the requested range, persisting one window row
// per generated slot.
func (s *WindowService) Create(ctx context.Context, courseID string, req dto.CreateWindowRequest) ([]models.TimeWindow, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window payload")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	slots, err := timeslot.SplitWindowByDuration(timeslot.Range{
		DayOfWeek: req.DayOfWeek,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	}, course.DurationMinutes)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	windows := make([]models.TimeWindow, 0, len(slots))
	for _, slot := range slots {
		windows = append(windows, models.TimeWindow{
			CourseID:       courseID,
			DayOfWeek:      slot.DayOfWeek,
			StartTime:      slot.StartTime,
			EndTime:        slot.EndTime,
			InstructorID:   req.InstructorID,
			InstructorName: req.InstructorName,
			Capacity:       req.Capacity,
		})
	}

	if err := s.windows.CreateBatch(ctx, windows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist windows")
	}

	s.invalidate(ctx, courseID)
	return windows, nil
}

// Delete removes a window by id. Historical applications keep a dangling
// window reference.
func (s *WindowService) Delete(ctx context.Context, windowID string) error {
	window, err := s.windows.FindByID(ctx, windowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "window not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load window")
	}
	if err := s.windows.Delete(ctx, windowID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete window")
	}
	s.invalidate(ctx, window.CourseID)
	return nil
}

// List returns a course's windows ordered by (day_of_week, start_time),
// served from cache when warm.
func (s *WindowService) List(ctx context.Context, courseID string) ([]models.TimeWindow, error) {
	key := windowCacheKey(courseID)
	if s.cache != nil {
		var cached []models.TimeWindow
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}
	}

	windows, err := s.windows.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list windows")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, windows, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache window listing", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return windows, nil
}

// ListUpcomingSlots expands the course's windows into concrete future slots
// over the rolling horizon.
func (s *WindowService) ListUpcomingSlots(ctx context.Context, courseID string, from time.Time) ([]models.SlotInstant, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	windows, err := s.List(ctx, courseID)
	if err != nil {
		return nil, err
	}

	seq, err := timeslot.GenerateSlotsFromWindows(windows, timeslot.GenerateOptions{
		DaysAhead:       s.horizonDays,
		DurationMinutes: course.DurationMinutes,
		From:            from,
	})
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid stored window: %v", err))
	}
	return seq.Collect(), nil
}

func (s *WindowService) invalidate(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, windowCacheKey(courseID)); err != nil {
		s.logger.Warn("failed to invalidate window cache", zap.String("course_id", courseID), zap.Error(err))
	}
}
