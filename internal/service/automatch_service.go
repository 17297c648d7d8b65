package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type autoMatchStore interface {
	Create(ctx context.Context, exec sqlx.ExtContext, match *models.Match) error
	AddStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error
	FindBySlot(ctx context.Context, courseID string, instructorID *string, startAt, endAt time.Time) (*models.Match, error)
	OccupancyByCourse(ctx context.Context, courseID string) ([]models.MatchOccupancy, error)
}

type applicationRangeLister interface {
	ListCreatedBetween(ctx context.Context, courseID string, from, to time.Time) ([]models.Application, error)
}

type availabilityLister interface {
	ListByCourseRole(ctx context.Context, courseID string, role models.AvailabilityRole) ([]models.AvailabilitySlot, error)
}

type autoMatchMetrics interface {
	AddAutoMatchResult(matched, unmatched int)
}

// AutoMatchService pairs students with instructors on exactly coinciding
// declared availability. It proposes matches without flipping application
// status; confirmation stays a manual admin step.
type AutoMatchService struct {
	matches      autoMatchStore
	applications applicationRangeLister
	availability availabilityLister
	courses      courseReader
	tx           txProvider
	metrics      autoMatchMetrics
	validator    *validator.Validate
	logger       *zap.Logger
	capacity     int
}

// NewAutoMatchService wires batch-matching dependencies. capacity caps how
// many students share one auto-created match, on top of the slot's own limit.
func NewAutoMatchService(
	matches autoMatchStore,
	applications applicationRangeLister,
	availability availabilityLister,
	courses courseReader,
	tx txProvider,
	metrics autoMatchMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
	capacity int,
) *AutoMatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = 4
	}
	return &AutoMatchService{
		matches:      matches,
		applications: applications,
		availability: availability,
		courses:      courses,
		tx:           tx,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		capacity:     capacity,
	}
}

type slotKey struct {
	instructorID string
	startAt      int64
	endAt        int64
}

func keyFor(slot models.AvailabilitySlot) slotKey {
	return slotKey{
		instructorID: slot.OwnerID,
		startAt:      slot.StartAt.Unix(),
		endAt:        slot.EndAt.Unix(),
	}
}

// Run executes one batch pass over applications created in [from, to].
//
// For each pending applicant it walks the student's declared slots in start
// order, looking for an instructor slot with identical bounds that still has
// room. A student lands in at most one match per run; one without any viable
// pairing is counted but left untouched for the next run.
func (s *AutoMatchService) Run(ctx context.Context, courseID string, req dto.AutoMatchRequest) (*dto.AutoMatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid batch range")
	}
	if !req.From.Before(req.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range start must be before range end")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	applications, err := s.applications.ListCreatedBetween(ctx, courseID, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}

	studentSlots, err := s.availability.ListByCourseRole(ctx, courseID, models.AvailabilityRoleStudent)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student availability")
	}
	instructorSlots, err := s.availability.ListByCourseRole(ctx, courseID, models.AvailabilityRoleInstructor)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor availability")
	}

	slotsByStudent := make(map[string][]models.AvailabilitySlot)
	for _, slot := range studentSlots {
		slotsByStudent[slot.OwnerID] = append(slotsByStudent[slot.OwnerID], slot)
	}

	occupancy, err := s.loadOccupancy(ctx, courseID)
	if err != nil {
		return nil, err
	}
	matchCache := make(map[slotKey]*models.Match)

	result := &dto.AutoMatchResult{}
	for _, app := range applications {
		if app.Status != models.ApplicationStatusPending {
			continue
		}
		placed := false
	slots:
		for _, slot := range slotsByStudent[app.StudentID] {
			for _, islot := range instructorSlots {
				if !islot.StartAt.Equal(slot.StartAt) || !islot.EndAt.Equal(slot.EndAt) {
					continue
				}
				assigned, err := s.assign(ctx, course, app.StudentID, islot, occupancy, matchCache)
				if err != nil {
					s.logger.Warn("auto-match assignment failed",
						zap.String("course_id", courseID),
						zap.String("student_id", app.StudentID),
						zap.Error(err),
					)
					continue
				}
				if assigned {
					placed = true
					break slots
				}
			}
		}
		if placed {
			result.Matched++
		} else {
			result.Unmatched++
		}
	}

	if s.metrics != nil {
		s.metrics.AddAutoMatchResult(result.Matched, result.Unmatched)
	}
	s.logger.Info("auto-match batch finished",
		zap.String("course_id", courseID),
		zap.Int("matched", result.Matched),
		zap.Int("unmatched", result.Unmatched),
	)
	return result, nil
}

// assign places a student into the match for the instructor slot, creating
// the match on first use. Reports false when the slot is full.
func (s *AutoMatchService) assign(
	ctx context.Context,
	course *models.Course,
	studentID string,
	islot models.AvailabilitySlot,
	occupancy map[string]int,
	matchCache map[slotKey]*models.Match,
) (bool, error) {
	limit := s.capacity
	if islot.Capacity > 0 && islot.Capacity < limit {
		limit = islot.Capacity
	}

	key := keyFor(islot)
	match, cached := matchCache[key]
	if !cached {
		instructorID := islot.OwnerID
		existing, err := s.matches.FindBySlot(ctx, course.ID, &instructorID, islot.StartAt, islot.EndAt)
		switch {
		case err == nil:
			match = existing
		case errors.Is(err, sql.ErrNoRows):
			match = nil
		default:
			return false, fmt.Errorf("lookup slot match: %w", err)
		}
		matchCache[key] = match
	}

	if match != nil {
		if occupancy[match.ID] >= limit {
			return false, nil
		}
		if err := s.matches.AddStudent(ctx, nil, match.ID, studentID); err != nil {
			return false, fmt.Errorf("add student to match: %w", err)
		}
		occupancy[match.ID]++
		return true, nil
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	instructorID := islot.OwnerID
	created := &models.Match{
		CourseID:     course.ID,
		SlotStartAt:  islot.StartAt,
		SlotEndAt:    islot.EndAt,
		InstructorID: &instructorID,
		Status:       models.MatchStatusProposed,
		UpdatedBy:    "auto-match",
	}
	if err := s.matches.Create(ctx, tx, created); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("create slot match: %w", err)
	}
	if err := s.matches.AddStudent(ctx, tx, created.ID, studentID); err != nil {
		_ = tx.Rollback()
		return false, fmt.Errorf("add student to match: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit slot match: %w", err)
	}
	matchCache[key] = created
	occupancy[created.ID] = 1
	return true, nil
}

func (s *AutoMatchService) loadOccupancy(ctx context.Context, courseID string) (map[string]int, error) {
	rows, err := s.matches.OccupancyByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load match occupancy")
	}
	occupancy := make(map[string]int, len(rows))
	for _, row := range rows {
		occupancy[row.MatchID] = row.Count
	}
	return occupancy, nil
}
