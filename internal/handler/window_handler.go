package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aozora-juku/lesson-match-api/internal/dto"
	"github.com/aozora-juku/lesson-match-api/internal/models"
	"github.com/aozora-juku/lesson-match-api/internal/service"
	appErrors "github.com/aozora-juku/lesson-match-api/pkg/errors"
	"github.com/aozora-juku/lesson-match-api/pkg/response"
)

type windowManager interface {
	Create(ctx context.Context, courseID string, req dto.CreateWindowRequest) ([]models.TimeWindow, error)
	Delete(ctx context.Context, windowID string) error
	List(ctx context.Context, courseID string) ([]models.TimeWindow, error)
	ListUpcomingSlots(ctx context.Context, courseID string, from time.Time) ([]models.SlotInstant, error)
}

// WindowHandler exposes availability window endpoints.
type WindowHandler struct {
	service windowManager
}

// NewWindowHandler constructs the handler.
func NewWindowHandler(svc *service.WindowService) *WindowHandler {
	return &WindowHandler{service: svc}
}

// Create godoc
// @Summary Create availability windows for a course
// @Description The submitted range is split into lesson-sized windows; the response lists every created row.
// @Tags Windows
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.CreateWindowRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/windows [post]
func (h *WindowHandler) Create(c *gin.Context) {
	var req dto.CreateWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid window payload"))
		return
	}
	windows, err := h.service.Create(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, windows)
}

// List godoc
// @Summary List a course's availability windows
// @Tags Windows
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/windows [get]
func (h *WindowHandler) List(c *gin.Context) {
	windows, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, windows, nil)
}

// Slots godoc
// @Summary List upcoming concrete slots for a course
// @Description Expands recurring windows into dated slots over the rolling horizon.
// @Tags Windows
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/slots [get]
func (h *WindowHandler) Slots(c *gin.Context) {
	slots, err := h.service.ListUpcomingSlots(c.Request.Context(), c.Param("id"), time.Now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, nil)
}

// Delete godoc
// @Summary Delete an availability window
// @Tags Windows
// @Param id path string true "Window ID"
// @Success 204
// @Router /windows/{id} [delete]
func (h *WindowHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
