package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/service"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
	"github.com/aozora-juku/lesson-match-api/pkg/response"
)

type autoMatcher interface {
	Run(ctx context.Context, courseID string, req dto.AutoMatchRequest) (*dto.AutoMatchResult, error)
}

// AutoMatchHandler exposes the batch matching endpoint.
type AutoMatchHandler struct {
	service autoMatcher
}

// NewAutoMatchHandler constructs the handler.
func NewAutoMatchHandler(svc *service.AutoMatchService) *AutoMatchHandler {
	return &AutoMatchHandler{service: svc}
}

// Run godoc
// @Summary Run the auto-matching batch for a course
// @Description Pairs students with instructors on exactly coinciding declared availability, creating proposed matches.
// @Tags Matches
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.AutoMatchRequest true "Application creation range"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/auto-match [post]
func (h *AutoMatchHandler) Run(c *gin.Context) {
	var req dto.AutoMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch payload"))
		return
	}
	result, err := h.service.Run(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
