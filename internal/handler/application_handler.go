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

type applicationManager interface {
	Apply(ctx context.Context, courseID, studentID string, req dto.ApplyRequest) (*models.Application, error)
	Cancel(ctx context.Context, applicationID, actorStudentID string, isAdmin bool) error
}

// ApplicationHandler exposes course application endpoints.
type ApplicationHandler struct {
	service applicationManager
}

// NewApplicationHandler constructs the handler.
func NewApplicationHandler(svc *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// Apply godoc
// @Summary Apply to a course
// @Description Students apply as themselves; admins may apply on behalf of a student via the studentId query parameter.
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param studentId query string false "Target student (admin only)"
// @Param payload body dto.ApplyRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/applications [post]
func (h *ApplicationHandler) Apply(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	studentID := claims.UserID
	if target := c.Query("studentId"); target != "" {
		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "only admins can apply on behalf of a student"))
			return
		}
		studentID = target
	}

	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Apply(c.Request.Context(), c.Param("id"), studentID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// Cancel godoc
// @Summary Cancel an application
// @Tags Applications
// @Param id path string true "Application ID"
// @Success 204
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	isAdmin := claims.Role == models.RoleAdmin
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), claims.UserID, isAdmin); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
