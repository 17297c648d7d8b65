package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/timeslot"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
)

type applicationLister interface {
	ListPendingByCourse(ctx context.Context, courseID string) ([]models.ApplicationCandidate, error)
	ListChoicesByApplications(ctx context.Context, applicationIDs []string) ([]models.ApplicationTimeChoice, error)
}

type windowLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.TimeWindow, error)
}

type proposalMetrics interface {
	IncProposalsGenerated()
}

// ProposalService builds unpersisted scheduling proposals from pending
// demand. Admins edit the result in place and confirm it through the
// MatchService; nothing here touches storage beyond reads.
type ProposalService struct {
	courses      courseReader
	windows      windowLister
	applications applicationLister
	metrics      proposalMetrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewProposalService wires proposal dependencies.
func NewProposalService(courses courseReader, windows windowLister, applications applicationLister, metrics proposalMetrics, logger *zap.Logger) *ProposalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProposalService{
		courses:      courses,
		windows:      windows,
		applications: applications,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// Generate runs one proposal pass for a course.
//
// Popular mode (any window has demand): only the single most-requested
// demand tier is proposed, and one student may appear in several proposals
// since the admin picks among them. General mode (no demand at all): every
// window is considered and a student placed once is excluded from later
// windows in the same pass.
func (s *ProposalService) Generate(ctx context.Context, courseID string) (*dto.ProposalSet, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	windows, err := s.windows.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load windows")
	}

	candidates, err := s.applications.ListPendingByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load pending applications")
	}

	appIDs := make([]string, 0, len(candidates))
	for _, c := range candidates {
		appIDs = append(appIDs, c.ID)
	}
	choices, err := s.applications.ListChoicesByApplications(ctx, appIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load window selections")
	}

	known := make(map[string]struct{}, len(windows))
	for _, w := range windows {
		known[w.ID] = struct{}{}
	}
	selections := selectionsByApplication(choices, known)
	demand, maxDemand := aggregateDemand(selections)

	mode := dto.ProposalModeGeneral
	if maxDemand > 0 {
		mode = dto.ProposalModePopular
	}
	targets := selectTargetWindows(windows, demand, maxDemand)

	generatedAt := s.now()
	proposals, err := s.buildProposals(course, targets, candidates, selections, maxDemand == 0, generatedAt)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncProposalsGenerated()
	}
	s.logger.Debug("generated proposals",
		zap.String("course_id", courseID),
		zap.String("mode", mode),
		zap.Int("max_demand", maxDemand),
		zap.Int("proposals", len(proposals)),
	)

	return &dto.ProposalSet{
		CourseID:    courseID,
		Mode:        mode,
		MaxDemand:   maxDemand,
		Demand:      demand,
		Proposals:   proposals,
		GeneratedAt: generatedAt,
	}, nil
}

// selectionsByApplication collapses each application's choices to a set of
// distinct window ids, dropping references to deleted windows. Duplicate
// submissions of the same window count once.
func selectionsByApplication(choices []models.ApplicationTimeChoice, known map[string]struct{}) map[string]map[string]struct{} {
	selections := make(map[string]map[string]struct{})
	for _, choice := range choices {
		if _, ok := known[choice.WindowID]; !ok {
			continue
		}
		set := selections[choice.ApplicationID]
		if set == nil {
			set = make(map[string]struct{})
			selections[choice.ApplicationID] = set
		}
		set[choice.WindowID] = struct{}{}
	}
	return selections
}

// aggregateDemand counts distinct (application, window) pairs per window and
// returns the highest count. Pure; recomputed on every generation pass.
func aggregateDemand(selections map[string]map[string]struct{}) (map[string]int, int) {
	demand := make(map[string]int)
	maxDemand := 0
	for _, windowSet := range selections {
		for windowID := range windowSet {
			demand[windowID]++
			if demand[windowID] > maxDemand {
				maxDemand = demand[windowID]
			}
		}
	}
	return demand, maxDemand
}

func selectTargetWindows(windows []models.TimeWindow, demand map[string]int, maxDemand int) []models.TimeWindow {
	var targets []models.TimeWindow
	if maxDemand > 0 {
		for _, w := range windows {
			if demand[w.ID] == maxDemand {
				targets = append(targets, w)
			}
		}
	} else {
		targets = append(targets, windows...)
	}

	sort.SliceStable(targets, func(i, j int) bool {
		if targets[i].DayOfWeek != targets[j].DayOfWeek {
			return targets[i].DayOfWeek < targets[j].DayOfWeek
		}
		return targets[i].StartTime < targets[j].StartTime
	})
	return targets
}

// buildProposals folds over the target windows, threading the set of already
// placed students as an explicit accumulator. The set only grows in general
// mode; popular-mode proposals are alternatives, not commitments.
func (s *ProposalService) buildProposals(
	course *models.Course,
	targets []models.TimeWindow,
	candidates []models.ApplicationCandidate,
	selections map[string]map[string]struct{},
	excludePlaced bool,
	ref time.Time,
) ([]dto.Proposal, error) {
	proposals := make([]dto.Proposal, 0, len(targets))
	placed := make(map[string]struct{})

	for _, window := range targets {
		eligible := make([]models.ApplicationCandidate, 0)
		for _, candidate := range candidates {
			set := selections[candidate.ID]
			if set == nil {
				continue
			}
			if _, chose := set[window.ID]; !chose {
				continue
			}
			if excludePlaced {
				if _, taken := placed[candidate.StudentID]; taken {
					continue
				}
			}
			eligible = append(eligible, candidate)
		}
		if len(eligible) == 0 {
			continue
		}

		sortCandidates(eligible)

		capacity := window.EffectiveCapacity(course)
		if capacity > 0 && len(eligible) > capacity {
			eligible = eligible[:capacity]
		}

		slotStart, err := timeslot.CombineDayAndTime(window.DayOfWeek, window.StartTime, ref)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "invalid stored window: "+err.Error())
		}
		slotEnd := slotStart.Add(time.Duration(course.DurationMinutes) * time.Minute)

		students := make([]dto.ProposalStudent, 0, len(eligible))
		for _, candidate := range eligible {
			students = append(students, dto.ProposalStudent{
				StudentID:     candidate.StudentID,
				ApplicationID: candidate.ID,
			})
			if excludePlaced {
				placed[candidate.StudentID] = struct{}{}
			}
		}

		proposals = append(proposals, dto.Proposal{
			WindowID:       window.ID,
			SlotStartAt:    slotStart,
			SlotEndAt:      slotEnd,
			InstructorID:   window.InstructorID,
			InstructorName: window.InstructorName,
			Capacity:       capacity,
			Students:       students,
		})
	}
	return proposals, nil
}

// sortCandidates orders by application creation time, breaking ties in
// favour of the older student. A missing birthdate sorts after all dated
// candidates; two missing birthdates keep their first-come order. Treating
// the unknown as lowest priority is a deliberate choice, not an error case.
func sortCandidates(candidates []models.ApplicationCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		bi, bj := candidates[i].Birthdate, candidates[j].Birthdate
		switch {
		case bi == nil && bj == nil:
			return false
		case bi == nil:
			return false
		case bj == nil:
			return true
		default:
			return bi.Before(*bj)
		}
	})
}
