package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/timeslot"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type applicationStore interface {
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindByCourseStudent(ctx context.Context, courseID, studentID string) (*models.Application, error)
	Create(ctx context.Context, app *models.Application) error
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ApplicationStatus) error
	ReplaceChoices(ctx context.Context, applicationID string, windowIDs []string) error
	ReplaceTimeRequests(ctx context.Context, applicationID string, requests []models.ApplicationTimeRequest) error
}

type applicationNotifier interface {
	ApplicationReceived(courseName, studentName string)
	ApplicationCancelled(courseName, studentName string)
}

// ApplicationService handles course applications: one active application per
// (course, student), with selected windows and free-form time requests
// replaced wholesale on every submission.
type ApplicationService struct {
	applications applicationStore
	courses      courseReader
	students     studentReader
	notifier     applicationNotifier
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewApplicationService wires application dependencies.
func NewApplicationService(
	applications applicationStore,
	courses courseReader,
	students studentReader,
	notifier applicationNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{
		applications: applications,
		courses:      courses,
		students:     students,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
	}
}

// Apply files an application for a student. A prior cancelled application is
// re-activated instead of duplicated; an active one is rejected. The window
// selections and free-form requests always replace whatever was stored.
func (s *ApplicationService) Apply(ctx context.Context, courseID, studentID string, req dto.ApplyRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if len(req.WindowIDs) == 0 && len(req.TimeRequests) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "select at least one window or request a time")
	}
	for _, tr := range req.TimeRequests {
		if err := timeslot.ValidateClockRange(tr.StartTime, tr.EndTime); err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	app, err := s.applications.FindByCourseStudent(ctx, courseID, studentID)
	switch {
	case err == nil && app.Status != models.ApplicationStatusCancelled:
		return nil, appErrors.Clone(appErrors.ErrAlreadyApplied, "an active application already exists for this course")
	case err == nil:
		if err := s.applications.UpdateStatus(ctx, nil, app.ID, models.ApplicationStatusPending); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-activate application")
		}
		app.Status = models.ApplicationStatusPending
	case errors.Is(err, sql.ErrNoRows):
		app = &models.Application{
			CourseID:  courseID,
			StudentID: studentID,
			Status:    models.ApplicationStatusPending,
		}
		if err := s.applications.Create(ctx, app); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up application")
	}

	if err := s.applications.ReplaceChoices(ctx, app.ID, req.WindowIDs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store window selections")
	}
	requests := make([]models.ApplicationTimeRequest, 0, len(req.TimeRequests))
	for _, tr := range req.TimeRequests {
		requests = append(requests, models.ApplicationTimeRequest{
			DayOfWeek: tr.DayOfWeek,
			StartTime: tr.StartTime,
			EndTime:   tr.EndTime,
		})
	}
	if err := s.applications.ReplaceTimeRequests(ctx, app.ID, requests); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store time requests")
	}

	s.notifyStaff(ctx, course.Name, studentID, true)
	return app, nil
}

// Cancel marks an application cancelled. Students may only cancel their own;
// admins may cancel any.
func (s *ApplicationService) Cancel(ctx context.Context, applicationID, actorStudentID string, isAdmin bool) error {
	app, err := s.applications.FindByID(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if !isAdmin && app.StudentID != actorStudentID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot cancel another student's application")
	}
	if app.Status == models.ApplicationStatusCancelled {
		return appErrors.Clone(appErrors.ErrConflict, "application is already cancelled")
	}

	if err := s.applications.UpdateStatus(ctx, nil, app.ID, models.ApplicationStatusCancelled); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel application")
	}

	course, err := s.courses.FindByID(ctx, app.CourseID)
	if err != nil {
		s.logger.Warn("skipping cancellation notification", zap.String("application_id", app.ID), zap.Error(err))
		return nil
	}
	s.notifyStaff(ctx, course.Name, app.StudentID, false)
	return nil
}

func (s *ApplicationService) notifyStaff(ctx context.Context, courseName, studentID string, received bool) {
	if s.notifier == nil {
		return
	}
	name := studentID
	if student, err := s.students.FindByID(ctx, studentID); err == nil {
		name = student.FullName
	}
	if received {
		s.notifier.ApplicationReceived(courseName, name)
	} else {
		s.notifier.ApplicationCancelled(courseName, name)
	}
}
