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

type matchRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, match *models.Match) error
	FindByID(ctx context.Context, id string) (*models.Match, error)
	FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Match, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Match, error)
	UpdateTime(ctx context.Context, id string, startAt, endAt time.Time, updatedBy string) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
	AddStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error
	RemoveStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error
	ListStudents(ctx context.Context, matchID string) ([]models.MatchStudent, error)
	CountStudents(ctx context.Context, exec sqlx.ExtContext, matchID string) (int, error)
}

type applicationStatusWriter interface {
	UpdateStatusForStudents(ctx context.Context, exec sqlx.ExtContext, courseID string, studentIDs []string, status models.ApplicationStatus) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListEmailsByIDs(ctx context.Context, ids []string) ([]string, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type matchNotifier interface {
	MatchConfirmed(to []string, courseName string, startAt time.Time)
	StudentAssigned(to string, courseName string, startAt time.Time)
}

type matchMetrics interface {
	IncMatchConfirmed()
}

// MatchService commits proposals as matches and keeps application status,
// roster and capacity consistent. Multi-row writes run inside a single
// transaction so a partial confirmation can never leave an orphaned match.
type MatchService struct {
	matches      matchRepository
	applications applicationStatusWriter
	courses      courseReader
	students     studentReader
	tx           txProvider
	notifier     matchNotifier
	metrics      matchMetrics
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewMatchService wires match dependencies.
func NewMatchService(
	matches matchRepository,
	applications applicationStatusWriter,
	courses courseReader,
	students studentReader,
	tx txProvider,
	notifier matchNotifier,
	metrics matchMetrics,
	validate *validator.Validate,
	logger *zap.Logger,
) *MatchService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchService{
		matches:      matches,
		applications: applications,
		courses:      courses,
		students:     students,
		tx:           tx,
		notifier:     notifier,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
	}
}

// ConfirmFromProposal persists an admin-reviewed proposal as a confirmed
// match, flipping each affected application to matched. The match row and
// its roster are written in one transaction. The confirmation notification
// is queued after commit and can never fail the confirmation itself.
func (s *MatchService) ConfirmFromProposal(ctx context.Context, courseID string, req dto.ConfirmMatchRequest, actor string) (*models.Match, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid confirmation payload")
	}
	if !req.SlotStartAt.Before(req.SlotEndAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "slot start must be before slot end")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Capacity > 0 && len(req.StudentIDs) > course.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded,
			fmt.Sprintf("%d students exceed the course capacity of %d", len(req.StudentIDs), course.Capacity))
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	match := &models.Match{
		CourseID:       courseID,
		SlotStartAt:    req.SlotStartAt,
		SlotEndAt:      req.SlotEndAt,
		InstructorID:   req.InstructorID,
		InstructorName: req.InstructorName,
		Status:         models.MatchStatusConfirmed,
		UpdatedBy:      actor,
	}
	if err = s.matches.Create(ctx, tx, match); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create match")
		return nil, err
	}
	for _, studentID := range req.StudentIDs {
		if err = s.matches.AddStudent(ctx, tx, match.ID, studentID); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
			return nil, err
		}
	}
	if err = s.applications.UpdateStatusForStudents(ctx, tx, courseID, req.StudentIDs, models.ApplicationStatusMatched); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update applications")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit confirmation")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncMatchConfirmed()
	}
	s.notifyConfirmed(ctx, course, match, req.StudentIDs)
	return match, nil
}

// AddStudent appends a student to an existing match. The roster count is
// re-checked against course capacity under a row lock so concurrent adds
// cannot overbook. A confirmed match also flips the student's application.
func (s *MatchService) AddStudent(ctx context.Context, matchID, studentID string) error {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	match, err := s.matches.FindByIDForUpdate(ctx, tx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "match not found")
			return err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load match")
		return err
	}

	course, err := s.courses.FindByID(ctx, match.CourseID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		return err
	}

	count, err := s.matches.CountStudents(ctx, tx, matchID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count roster")
		return err
	}
	if course.Capacity > 0 && count >= course.Capacity {
		err = appErrors.Clone(appErrors.ErrCapacityExceeded, "match is already at capacity")
		return err
	}

	if err = s.matches.AddStudent(ctx, tx, matchID, studentID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign student")
		return err
	}
	if match.Status == models.MatchStatusConfirmed {
		if err = s.applications.UpdateStatusForStudents(ctx, tx, match.CourseID, []string{studentID}, models.ApplicationStatusMatched); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit roster change")
		return err
	}

	if match.Status == models.MatchStatusConfirmed && s.notifier != nil {
		if student, lookupErr := s.students.FindByID(ctx, studentID); lookupErr == nil {
			s.notifier.StudentAssigned(student.Email, course.Name, match.SlotStartAt)
		} else {
			s.logger.Warn("skipping assignment notification", zap.String("student_id", studentID), zap.Error(lookupErr))
		}
	}
	return nil
}

// RemoveStudent drops a student from a match and reverts their application
// to pending regardless of match status.
func (s *MatchService) RemoveStudent(ctx context.Context, matchID, studentID string) error {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "match not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load match")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.matches.RemoveStudent(ctx, tx, matchID, studentID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove student")
		return err
	}
	if err = s.applications.UpdateStatusForStudents(ctx, tx, match.CourseID, []string{studentID}, models.ApplicationStatusPending); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert application")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit roster change")
		return err
	}
	return nil
}

// Delete removes a match entirely, reverting every assigned student's
// application to pending. Roster rows cascade with the match row.
func (s *MatchService) Delete(ctx context.Context, matchID string) error {
	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "match not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load match")
	}

	roster, err := s.matches.ListStudents(ctx, matchID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	studentIDs := make([]string, 0, len(roster))
	for _, ms := range roster {
		studentIDs = append(studentIDs, ms.StudentID)
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.matches.Delete(ctx, tx, matchID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete match")
		return err
	}
	if err = s.applications.UpdateStatusForStudents(ctx, tx, match.CourseID, studentIDs, models.ApplicationStatusPending); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revert applications")
		return err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit match deletion")
		return err
	}
	return nil
}

// UpdateProposedTime moves a match to a new slot while it is still proposed.
func (s *MatchService) UpdateProposedTime(ctx context.Context, matchID string, req dto.UpdateMatchTimeRequest, actor string) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time payload")
	}
	if !req.SlotStartAt.Before(req.SlotEndAt) {
		return appErrors.Clone(appErrors.ErrValidation, "slot start must be before slot end")
	}

	match, err := s.matches.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "match not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load match")
	}
	if match.Status != models.MatchStatusProposed {
		return appErrors.Clone(appErrors.ErrConflict, "only proposed matches can be re-timed")
	}

	if err := s.matches.UpdateTime(ctx, matchID, req.SlotStartAt, req.SlotEndAt, actor); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update match time")
	}
	return nil
}

// ListByCourse returns matches with their rosters.
func (s *MatchService) ListByCourse(ctx context.Context, courseID string) ([]models.MatchDetail, error) {
	matches, err := s.matches.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list matches")
	}
	details := make([]models.MatchDetail, 0, len(matches))
	for _, match := range matches {
		roster, err := s.matches.ListStudents(ctx, match.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		details = append(details, models.MatchDetail{Match: match, Students: roster})
	}
	return details, nil
}

func (s *MatchService) notifyConfirmed(ctx context.Context, course *models.Course, match *models.Match, studentIDs []string) {
	if s.notifier == nil {
		return
	}
	emails, err := s.students.ListEmailsByIDs(ctx, studentIDs)
	if err != nil {
		s.logger.Warn("skipping confirmation notification", zap.String("match_id", match.ID), zap.Error(err))
		return
	}
	s.notifier.MatchConfirmed(emails, course.Name, match.SlotStartAt)
}
