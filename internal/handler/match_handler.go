package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/service"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
	"github.com/aozora-juku/lesson-match-api/pkg/response"
)

type matchManager interface {
	ConfirmFromProposal(ctx context.Context, courseID string, req dto.ConfirmMatchRequest, actor string) (*models.Match, error)
	AddStudent(ctx context.Context, matchID, studentID string) error
	RemoveStudent(ctx context.Context, matchID, studentID string) error
	Delete(ctx context.Context, matchID string) error
	UpdateProposedTime(ctx context.Context, matchID string, req dto.UpdateMatchTimeRequest, actor string) error
	ListByCourse(ctx context.Context, courseID string) ([]models.MatchDetail, error)
}

// MatchHandler exposes match confirmation and roster endpoints.
type MatchHandler struct {
	service matchManager
}

// NewMatchHandler constructs the handler.
func NewMatchHandler(svc *service.MatchService) *MatchHandler {
	return &MatchHandler{service: svc}
}

// Confirm godoc
// @Summary Confirm a proposal as a match
// @Description Creates a confirmed match with the submitted roster and marks the students' applications matched.
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ConfirmMatchRequest true "Confirmation payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/matches [post]
func (h *MatchHandler) Confirm(c *gin.Context) {
	var req dto.ConfirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid confirmation payload"))
		return
	}
	match, err := h.service.ConfirmFromProposal(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, match)
}

// List godoc
// @Summary List a course's matches with rosters
// @Tags Matches
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/matches [get]
func (h *MatchHandler) List(c *gin.Context) {
	matches, err := h.service.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, matches, nil)
}

// AddStudent godoc
// @Summary Add a student to a match
// @Tags Matches
// @Accept json
// @Param id path string true "Match ID"
// @Param payload body dto.AddMatchStudentRequest true "Student payload"
// @Success 204
// @Router /matches/{id}/students [post]
func (h *MatchHandler) AddStudent(c *gin.Context) {
	var req dto.AddMatchStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid student payload"))
		return
	}
	if err := h.service.AddStudent(c.Request.Context(), c.Param("id"), req.StudentID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RemoveStudent godoc
// @Summary Remove a student from a match
// @Tags Matches
// @Param id path string true "Match ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /matches/{id}/students/{studentId} [delete]
func (h *MatchHandler) RemoveStudent(c *gin.Context) {
	if err := h.service.RemoveStudent(c.Request.Context(), c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a match and release its students
// @Tags Matches
// @Param id path string true "Match ID"
// @Success 204
// @Router /matches/{id} [delete]
func (h *MatchHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpdateTime godoc
// @Summary Move a proposed match to a new slot
// @Tags Matches
// @Accept json
// @Param id path string true "Match ID"
// @Param payload body dto.UpdateMatchTimeRequest true "New slot payload"
// @Success 204
// @Router /matches/{id}/time [patch]
func (h *MatchHandler) UpdateTime(c *gin.Context) {
	var req dto.UpdateMatchTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time payload"))
		return
	}
	if err := h.service.UpdateProposedTime(c.Request.Context(), c.Param("id"), req, actorID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
