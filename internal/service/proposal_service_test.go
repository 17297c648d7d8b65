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

type courseReaderStub struct {
	course *models.Course
}

func (s *courseReaderStub) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if s.course == nil || s.course.ID != id {
		return nil, sql.ErrNoRows
	}
	return s.course, nil
}

type windowListerStub struct {
	windows []models.TimeWindow
}

func (s *windowListerStub) ListByCourse(ctx context.Context, courseID string) ([]models.TimeWindow, error) {
	return s.windows, nil
}

type applicationListerStub struct {
	candidates []models.ApplicationCandidate
	choices    []models.ApplicationTimeChoice
}

func (s *applicationListerStub) ListPendingByCourse(ctx context.Context, courseID string) ([]models.ApplicationCandidate, error) {
	return s.candidates, nil
}

func (s *applicationListerStub) ListChoicesByApplications(ctx context.Context, applicationIDs []string) ([]models.ApplicationTimeChoice, error) {
	return s.choices, nil
}

func birthdate(year int) *time.Time {
	d := time.Date(year, 4, 1, 0, 0, 0, 0, timeslot.Zone)
	return &d
}

func newProposalFixture(course *models.Course, windows []models.TimeWindow, candidates []models.ApplicationCandidate, choices []models.ApplicationTimeChoice) *ProposalService {
	svc := NewProposalService(
		&courseReaderStub{course: course},
		&windowListerStub{windows: windows},
		&applicationListerStub{candidates: candidates, choices: choices},
		nil,
		zap.NewNop(),
	)
	svc.now = func() time.Time {
		// Wednesday.
		return time.Date(2026, 1, 7, 9, 0, 0, 0, timeslot.Zone)
	}
	return svc
}

func TestProposalServiceGeneratePopularTier(t *testing.T) {
	course := &models.Course{ID: "course-1", Name: "Math", DurationMinutes: 60, Capacity: 4}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
		{ID: "win-b", CourseID: "course-1", DayOfWeek: 1, StartTime: "11:00", EndTime: "12:00"},
		{ID: "win-c", CourseID: "course-1", DayOfWeek: 2, StartTime: "10:00", EndTime: "11:00"},
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: base},
		{ID: "app-2", StudentID: "stu-2", CreatedAt: base.Add(time.Minute)},
		{ID: "app-3", StudentID: "stu-3", CreatedAt: base.Add(2 * time.Minute)},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-a"},
		{ApplicationID: "app-1", WindowID: "win-b"},
		{ApplicationID: "app-2", WindowID: "win-a"},
		{ApplicationID: "app-2", WindowID: "win-b"},
		{ApplicationID: "app-3", WindowID: "win-c"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)

	assert.Equal(t, dto.ProposalModePopular, set.Mode)
	assert.Equal(t, 2, set.MaxDemand)
	assert.Equal(t, map[string]int{"win-a": 2, "win-b": 2, "win-c": 1}, set.Demand)

	// Only the top demand tier is proposed; win-c is excluded despite demand.
	require.Len(t, set.Proposals, 2)
	assert.Equal(t, "win-a", set.Proposals[0].WindowID)
	assert.Equal(t, "win-b", set.Proposals[1].WindowID)

	// In popular mode a student appears in every proposal they qualify for.
	for _, p := range set.Proposals {
		require.Len(t, p.Students, 2)
		assert.Equal(t, "stu-1", p.Students[0].StudentID)
		assert.Equal(t, "stu-2", p.Students[1].StudentID)
	}
}

func TestProposalServiceDemandDeduplicatesPerApplication(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: time.Now()},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-a"},
		{ApplicationID: "app-1", WindowID: "win-a"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 1, set.Demand["win-a"])
	assert.Equal(t, 1, set.MaxDemand)
}

func TestProposalServiceDropsDeletedWindowReferences(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: time.Now()},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-deleted"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, 0, set.MaxDemand)
	assert.Equal(t, dto.ProposalModeGeneral, set.Mode)
	assert.Empty(t, set.Proposals)
}

func TestProposalServiceCandidateOrderingAndCapacity(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 2}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []models.ApplicationCandidate{
		// Later submission, much older student: creation time still wins.
		{ID: "app-1", StudentID: "stu-1", CreatedAt: base, Birthdate: birthdate(2016)},
		// Same instant: the dated candidate outranks the missing birthdate.
		{ID: "app-2", StudentID: "stu-2", CreatedAt: base.Add(time.Minute)},
		{ID: "app-3", StudentID: "stu-3", CreatedAt: base.Add(time.Minute), Birthdate: birthdate(2011)},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-a"},
		{ApplicationID: "app-2", WindowID: "win-a"},
		{ApplicationID: "app-3", WindowID: "win-a"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)

	require.Len(t, set.Proposals, 1)
	students := set.Proposals[0].Students
	require.Len(t, students, 2, "roster is cut at course capacity")
	assert.Equal(t, "stu-1", students[0].StudentID)
	assert.Equal(t, "stu-3", students[1].StudentID)
}

func TestProposalServiceWindowCapacityOverridesCourse(t *testing.T) {
	one := 1
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00", Capacity: &one},
	}
	base := time.Now()
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: base},
		{ID: "app-2", StudentID: "stu-2", CreatedAt: base.Add(time.Second)},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-a"},
		{ApplicationID: "app-2", WindowID: "win-a"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, set.Proposals, 1)
	assert.Equal(t, 1, set.Proposals[0].Capacity)
	require.Len(t, set.Proposals[0].Students, 1)
	assert.Equal(t, "stu-1", set.Proposals[0].Students[0].StudentID)
}

func TestProposalServiceSlotInstants(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	windows := []models.TimeWindow{
		{ID: "win-a", CourseID: "course-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"},
	}
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: time.Now()},
	}
	choices := []models.ApplicationTimeChoice{
		{ApplicationID: "app-1", WindowID: "win-a"},
	}

	svc := newProposalFixture(course, windows, candidates, choices)
	set, err := svc.Generate(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, set.Proposals, 1)

	// Generation anchored on Wednesday 2026-01-07; Monday wraps to the 12th.
	assert.Equal(t, time.Date(2026, 1, 12, 10, 0, 0, 0, timeslot.Zone), set.Proposals[0].SlotStartAt)
	assert.Equal(t, time.Date(2026, 1, 12, 11, 0, 0, 0, timeslot.Zone), set.Proposals[0].SlotEndAt)
}

func TestProposalServiceCourseNotFound(t *testing.T) {
	svc := newProposalFixture(nil, nil, nil, nil)
	_, err := svc.Generate(context.Background(), "missing")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestBuildProposalsExcludesPlacedStudents(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	w1 := models.TimeWindow{ID: "win-1", DayOfWeek: 1, StartTime: "10:00", EndTime: "11:00"}
	w2 := models.TimeWindow{ID: "win-2", DayOfWeek: 1, StartTime: "11:00", EndTime: "12:00"}
	candidates := []models.ApplicationCandidate{
		{ID: "app-1", StudentID: "stu-1", CreatedAt: time.Now()},
	}
	selections := map[string]map[string]struct{}{
		"app-1": {"win-1": {}, "win-2": {}},
	}

	svc := newProposalFixture(course, nil, nil, nil)
	ref := time.Date(2026, 1, 7, 9, 0, 0, 0, timeslot.Zone)

	proposals, err := svc.buildProposals(course, []models.TimeWindow{w1, w2}, candidates, selections, true, ref)
	require.NoError(t, err)
	require.Len(t, proposals, 1, "once placed in the first window the student is excluded from the second")
	assert.Equal(t, "win-1", proposals[0].WindowID)

	// Without exclusion the same student lands in both windows.
	proposals, err = svc.buildProposals(course, []models.TimeWindow{w1, w2}, candidates, selections, false, ref)
	require.NoError(t, err)
	assert.Len(t, proposals, 2)
}
