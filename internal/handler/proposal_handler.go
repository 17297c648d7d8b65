package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/service"
	"github.com/aozora-juku/lesson-match-api/pkg/response"
)

type proposalGenerator interface {
	Generate(ctx context.Context, courseID string) (*dto.ProposalSet, error)
}

// ProposalHandler exposes the proposal generation endpoint.
type ProposalHandler struct {
	service proposalGenerator
}

// NewProposalHandler constructs the handler.
func NewProposalHandler(svc *service.ProposalService) *ProposalHandler {
	return &ProposalHandler{service: svc}
}

// Generate godoc
// @Summary Generate scheduling proposals for a course
// @Description Proposals are computed from current pending demand and are not persisted; confirm them through the matches endpoint.
// @Tags Proposals
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/proposals [post]
func (h *ProposalHandler) Generate(c *gin.Context) {
	set, err := h.service.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, set, nil)
}
