package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type applicationStoreMock struct {
	existing *models.Application

	created       *models.Application
	statusChanges []models.ApplicationStatus
	choices       []string
	timeRequests  []models.ApplicationTimeRequest
}

func (m *applicationStoreMock) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if m.existing == nil || m.existing.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.existing, nil
}

func (m *applicationStoreMock) FindByCourseStudent(ctx context.Context, courseID, studentID string) (*models.Application, error) {
	if m.existing == nil || m.existing.StudentID != studentID {
		return nil, sql.ErrNoRows
	}
	return m.existing, nil
}

func (m *applicationStoreMock) Create(ctx context.Context, app *models.Application) error {
	app.ID = "app-new"
	app.CreatedAt = time.Now()
	m.created = app
	return nil
}

func (m *applicationStoreMock) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.ApplicationStatus) error {
	m.statusChanges = append(m.statusChanges, status)
	return nil
}

func (m *applicationStoreMock) ReplaceChoices(ctx context.Context, applicationID string, windowIDs []string) error {
	m.choices = windowIDs
	return nil
}

func (m *applicationStoreMock) ReplaceTimeRequests(ctx context.Context, applicationID string, requests []models.ApplicationTimeRequest) error {
	m.timeRequests = requests
	return nil
}

type staffNotifierMock struct {
	received  []string
	cancelled []string
}

func (n *staffNotifierMock) ApplicationReceived(courseName, studentName string) {
	n.received = append(n.received, studentName)
}

func (n *staffNotifierMock) ApplicationCancelled(courseName, studentName string) {
	n.cancelled = append(n.cancelled, studentName)
}

func newApplicationFixture(store *applicationStoreMock) (*ApplicationService, *staffNotifierMock) {
	course := &models.Course{ID: "course-1", Name: "Math", DurationMinutes: 60, Capacity: 4}
	students := &studentReaderStub{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", FullName: "Hanako Sato", Email: "hanako@example.com"},
	}}
	notifier := &staffNotifierMock{}
	svc := NewApplicationService(store, &courseReaderStub{course: course}, students, notifier, nil, zap.NewNop())
	return svc, notifier
}

func TestApplicationServiceApplyCreatesPending(t *testing.T) {
	store := &applicationStoreMock{}
	svc, notifier := newApplicationFixture(store)

	app, err := svc.Apply(context.Background(), "course-1", "stu-1", dto.ApplyRequest{
		WindowIDs: []string{"win-1", "win-2"},
		TimeRequests: []dto.TimeRequest{
			{DayOfWeek: 2, StartTime: "18:00", EndTime: "19:00"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	require.NotNil(t, store.created)
	assert.Equal(t, []string{"win-1", "win-2"}, store.choices)
	require.Len(t, store.timeRequests, 1)
	assert.Equal(t, "18:00", store.timeRequests[0].StartTime)
	assert.Equal(t, []string{"Hanako Sato"}, notifier.received)
}

func TestApplicationServiceApplyRejectsActiveDuplicate(t *testing.T) {
	store := &applicationStoreMock{existing: &models.Application{
		ID: "app-1", CourseID: "course-1", StudentID: "stu-1", Status: models.ApplicationStatusPending,
	}}
	svc, _ := newApplicationFixture(store)

	_, err := svc.Apply(context.Background(), "course-1", "stu-1", dto.ApplyRequest{WindowIDs: []string{"win-1"}})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyApplied.Code, appErr.Code)
	assert.Nil(t, store.created)
}

func TestApplicationServiceApplyReactivatesCancelled(t *testing.T) {
	store := &applicationStoreMock{existing: &models.Application{
		ID: "app-1", CourseID: "course-1", StudentID: "stu-1", Status: models.ApplicationStatusCancelled,
	}}
	svc, _ := newApplicationFixture(store)

	app, err := svc.Apply(context.Background(), "course-1", "stu-1", dto.ApplyRequest{WindowIDs: []string{"win-1"}})
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID, "cancelled application is re-activated, not duplicated")
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusPending}, store.statusChanges)
	assert.Nil(t, store.created)
}

func TestApplicationServiceApplyRequiresASelection(t *testing.T) {
	svc, _ := newApplicationFixture(&applicationStoreMock{})
	_, err := svc.Apply(context.Background(), "course-1", "stu-1", dto.ApplyRequest{})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestApplicationServiceApplyValidatesTimeRequests(t *testing.T) {
	svc, _ := newApplicationFixture(&applicationStoreMock{})
	_, err := svc.Apply(context.Background(), "course-1", "stu-1", dto.ApplyRequest{
		TimeRequests: []dto.TimeRequest{{DayOfWeek: 2, StartTime: "19:00", EndTime: "18:00"}},
	})
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestApplicationServiceCancelOwnershipEnforced(t *testing.T) {
	store := &applicationStoreMock{existing: &models.Application{
		ID: "app-1", CourseID: "course-1", StudentID: "stu-1", Status: models.ApplicationStatusPending,
	}}
	svc, notifier := newApplicationFixture(store)

	err := svc.Cancel(context.Background(), "app-1", "stu-2", false)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
	assert.Empty(t, store.statusChanges)

	require.NoError(t, svc.Cancel(context.Background(), "app-1", "stu-2", true), "admins may cancel any application")
	assert.Equal(t, []models.ApplicationStatus{models.ApplicationStatusCancelled}, store.statusChanges)
	assert.Equal(t, []string{"Hanako Sato"}, notifier.cancelled)
}

func TestApplicationServiceCancelAlreadyCancelled(t *testing.T) {
	store := &applicationStoreMock{existing: &models.Application{
		ID: "app-1", CourseID: "course-1", StudentID: "stu-1", Status: models.ApplicationStatusCancelled,
	}}
	svc, _ := newApplicationFixture(store)

	err := svc.Cancel(context.Background(), "app-1", "stu-1", false)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}
