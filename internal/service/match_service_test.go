package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (*txProviderMock, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb}, mock
}

func (p *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return p.db.BeginTxx(ctx, opts)
}

type matchRepoMock struct {
	match  *models.Match
	roster []models.MatchStudent
	count  int

	created    []*models.Match
	added      []string
	removed    []string
	deleted    []string
	timeMoved  bool
	addErrFor  string
	notFoundID string
}

func (m *matchRepoMock) Create(ctx context.Context, exec sqlx.ExtContext, match *models.Match) error {
	match.ID = fmt.Sprintf("match-%d", len(m.created)+1)
	m.created = append(m.created, match)
	return nil
}

func (m *matchRepoMock) FindByID(ctx context.Context, id string) (*models.Match, error) {
	if m.match == nil || id == m.notFoundID {
		return nil, sql.ErrNoRows
	}
	return m.match, nil
}

func (m *matchRepoMock) FindByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.Match, error) {
	return m.FindByID(ctx, id)
}

func (m *matchRepoMock) ListByCourse(ctx context.Context, courseID string) ([]models.Match, error) {
	if m.match == nil {
		return nil, nil
	}
	return []models.Match{*m.match}, nil
}

func (m *matchRepoMock) UpdateTime(ctx context.Context, id string, startAt, endAt time.Time, updatedBy string) error {
	m.timeMoved = true
	return nil
}

func (m *matchRepoMock) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *matchRepoMock) AddStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error {
	if m.addErrFor != "" && studentID == m.addErrFor {
		return errors.New("insert failed")
	}
	m.added = append(m.added, studentID)
	return nil
}

func (m *matchRepoMock) RemoveStudent(ctx context.Context, exec sqlx.ExtContext, matchID, studentID string) error {
	m.removed = append(m.removed, studentID)
	return nil
}

func (m *matchRepoMock) ListStudents(ctx context.Context, matchID string) ([]models.MatchStudent, error) {
	return m.roster, nil
}

func (m *matchRepoMock) CountStudents(ctx context.Context, exec sqlx.ExtContext, matchID string) (int, error) {
	return m.count, nil
}

type statusWriterMock struct {
	calls []statusCall
}

type statusCall struct {
	courseID   string
	studentIDs []string
	status     models.ApplicationStatus
}

func (m *statusWriterMock) UpdateStatusForStudents(ctx context.Context, exec sqlx.ExtContext, courseID string, studentIDs []string, status models.ApplicationStatus) error {
	m.calls = append(m.calls, statusCall{courseID: courseID, studentIDs: studentIDs, status: status})
	return nil
}

type studentReaderStub struct {
	students map[string]*models.Student
}

func (s *studentReaderStub) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		return st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentReaderStub) ListEmailsByIDs(ctx context.Context, ids []string) ([]string, error) {
	emails := make([]string, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.students[id]; ok {
			emails = append(emails, st.Email)
		}
	}
	return emails, nil
}

type notifierMock struct {
	confirmed [][]string
	assigned  []string
}

func (n *notifierMock) MatchConfirmed(to []string, courseName string, startAt time.Time) {
	n.confirmed = append(n.confirmed, to)
}

func (n *notifierMock) StudentAssigned(to string, courseName string, startAt time.Time) {
	n.assigned = append(n.assigned, to)
}

type matchFixture struct {
	svc      *MatchService
	matches  *matchRepoMock
	statuses *statusWriterMock
	notifier *notifierMock
	mock     sqlmock.Sqlmock
}

func newMatchFixture(t *testing.T, course *models.Course, matches *matchRepoMock) *matchFixture {
	tx, mock := newTxProviderMock(t)
	statuses := &statusWriterMock{}
	notifier := &notifierMock{}
	students := &studentReaderStub{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", FullName: "Hanako Sato", Email: "hanako@example.com"},
		"stu-2": {ID: "stu-2", FullName: "Taro Suzuki", Email: "taro@example.com"},
	}}
	svc := NewMatchService(matches, statuses, &courseReaderStub{course: course}, students, tx, notifier, nil, nil, zap.NewNop())
	return &matchFixture{svc: svc, matches: matches, statuses: statuses, notifier: notifier, mock: mock}
}

func confirmRequest(studentIDs ...string) dto.ConfirmMatchRequest {
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	return dto.ConfirmMatchRequest{
		SlotStartAt: start,
		SlotEndAt:   start.Add(time.Hour),
		StudentIDs:  studentIDs,
	}
}

func TestMatchServiceConfirmSuccess(t *testing.T) {
	course := &models.Course{ID: "course-1", Name: "Math", DurationMinutes: 60, Capacity: 2}
	f := newMatchFixture(t, course, &matchRepoMock{})

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	match, err := f.svc.ConfirmFromProposal(context.Background(), "course-1", confirmRequest("stu-1", "stu-2"), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusConfirmed, match.Status)
	assert.Equal(t, "admin-1", match.UpdatedBy)
	assert.Equal(t, []string{"stu-1", "stu-2"}, f.matches.added)

	require.Len(t, f.statuses.calls, 1)
	assert.Equal(t, models.ApplicationStatusMatched, f.statuses.calls[0].status)
	assert.Equal(t, []string{"stu-1", "stu-2"}, f.statuses.calls[0].studentIDs)

	require.Len(t, f.notifier.confirmed, 1)
	assert.ElementsMatch(t, []string{"hanako@example.com", "taro@example.com"}, f.notifier.confirmed[0])
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceConfirmOverCapacityWritesNothing(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 1}
	f := newMatchFixture(t, course, &matchRepoMock{})

	_, err := f.svc.ConfirmFromProposal(context.Background(), "course-1", confirmRequest("stu-1", "stu-2"), "admin-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)

	assert.Empty(t, f.matches.created)
	assert.Empty(t, f.matches.added)
	assert.Empty(t, f.statuses.calls)
	assert.NoError(t, f.mock.ExpectationsWereMet(), "no transaction may be opened")
}

func TestMatchServiceConfirmReversedSlotRejected(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	f := newMatchFixture(t, course, &matchRepoMock{})

	req := confirmRequest("stu-1")
	req.SlotStartAt, req.SlotEndAt = req.SlotEndAt, req.SlotStartAt
	_, err := f.svc.ConfirmFromProposal(context.Background(), "course-1", req, "admin-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, f.matches.created)
}

func TestMatchServiceConfirmRollsBackOnRosterFailure(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	f := newMatchFixture(t, course, &matchRepoMock{addErrFor: "stu-2"})

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	_, err := f.svc.ConfirmFromProposal(context.Background(), "course-1", confirmRequest("stu-1", "stu-2"), "admin-1")
	require.Error(t, err)

	assert.Empty(t, f.statuses.calls, "application statuses must not change on rollback")
	assert.Empty(t, f.notifier.confirmed)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceAddStudentCapacityRecheck(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 2}
	matches := &matchRepoMock{
		match: &models.Match{ID: "match-1", CourseID: "course-1", Status: models.MatchStatusConfirmed},
		count: 2,
	}
	f := newMatchFixture(t, course, matches)

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	err := f.svc.AddStudent(context.Background(), "match-1", "stu-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, appErr.Code)
	assert.Empty(t, matches.added)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceAddStudentConfirmedFlipsApplication(t *testing.T) {
	course := &models.Course{ID: "course-1", Name: "Math", DurationMinutes: 60, Capacity: 2}
	matches := &matchRepoMock{
		match: &models.Match{ID: "match-1", CourseID: "course-1", Status: models.MatchStatusConfirmed},
		count: 1,
	}
	f := newMatchFixture(t, course, matches)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.svc.AddStudent(context.Background(), "match-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-1"}, matches.added)
	require.Len(t, f.statuses.calls, 1)
	assert.Equal(t, models.ApplicationStatusMatched, f.statuses.calls[0].status)
	assert.Equal(t, []string{"hanako@example.com"}, f.notifier.assigned)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceAddStudentProposedSkipsApplicationFlip(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 2}
	matches := &matchRepoMock{
		match: &models.Match{ID: "match-1", CourseID: "course-1", Status: models.MatchStatusProposed},
		count: 0,
	}
	f := newMatchFixture(t, course, matches)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.svc.AddStudent(context.Background(), "match-1", "stu-1")
	require.NoError(t, err)
	assert.Empty(t, f.statuses.calls)
	assert.Empty(t, f.notifier.assigned)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceRemoveStudentRevertsApplication(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 2}
	matches := &matchRepoMock{
		match: &models.Match{ID: "match-1", CourseID: "course-1", Status: models.MatchStatusConfirmed},
	}
	f := newMatchFixture(t, course, matches)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.svc.RemoveStudent(context.Background(), "match-1", "stu-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"stu-2"}, matches.removed)
	require.Len(t, f.statuses.calls, 1)
	assert.Equal(t, models.ApplicationStatusPending, f.statuses.calls[0].status)
	assert.Equal(t, []string{"stu-2"}, f.statuses.calls[0].studentIDs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceDeleteRevertsWholeRoster(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	matches := &matchRepoMock{
		match: &models.Match{ID: "match-1", CourseID: "course-1", Status: models.MatchStatusConfirmed},
		roster: []models.MatchStudent{
			{MatchID: "match-1", StudentID: "stu-1"},
			{MatchID: "match-1", StudentID: "stu-2"},
		},
	}
	f := newMatchFixture(t, course, matches)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	err := f.svc.Delete(context.Background(), "match-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"match-1"}, matches.deleted)
	require.Len(t, f.statuses.calls, 1)
	assert.Equal(t, models.ApplicationStatusPending, f.statuses.calls[0].status)
	assert.Equal(t, []string{"stu-1", "stu-2"}, f.statuses.calls[0].studentIDs)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMatchServiceUpdateTimeOnlyWhileProposed(t *testing.T) {
	course := &models.Course{ID: "course-1", DurationMinutes: 60, Capacity: 4}
	start := time.Date(2026, 1, 12, 10, 0, 0, 0, time.UTC)
	req := dto.UpdateMatchTimeRequest{SlotStartAt: start, SlotEndAt: start.Add(time.Hour)}

	confirmed := &matchRepoMock{match: &models.Match{ID: "match-1", Status: models.MatchStatusConfirmed}}
	f := newMatchFixture(t, course, confirmed)
	err := f.svc.UpdateProposedTime(context.Background(), "match-1", req, "admin-1")
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.False(t, confirmed.timeMoved)

	proposed := &matchRepoMock{match: &models.Match{ID: "match-1", Status: models.MatchStatusProposed}}
	f = newMatchFixture(t, course, proposed)
	require.NoError(t, f.svc.UpdateProposedTime(context.Background(), "match-1", req, "admin-1"))
	assert.True(t, proposed.timeMoved)
}
