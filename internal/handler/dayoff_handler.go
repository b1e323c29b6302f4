package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
	"github.com/medrota/rota-api/pkg/response"
)

type dayOffService interface {
	Create(ctx context.Context, req dto.CreateDayOffRequest) (*models.DayOff, error)
	List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error)
	Approve(ctx context.Context, id, adminID string) (*models.DayOff, error)
	Delete(ctx context.Context, id string) error
	ListTypes(ctx context.Context) ([]models.DayOffType, error)
}

// DayOffHandler exposes REST endpoints for resident absences.
type DayOffHandler struct {
	service dayOffService
}

// NewDayOffHandler constructs the handler.
func NewDayOffHandler(service dayOffService) *DayOffHandler {
	return &DayOffHandler{service: service}
}

// Create godoc
// @Summary Record an absence
// @Tags DaysOff
// @Accept json
// @Produce json
// @Param payload body dto.CreateDayOffRequest true "Absence payload"
// @Success 201 {object} response.Envelope
// @Router /days-off [post]
func (h *DayOffHandler) Create(c *gin.Context) {
	var req dto.CreateDayOffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid day-off payload"))
		return
	}
	dayOff, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dayOff)
}

// List godoc
// @Summary List absences
// @Tags DaysOff
// @Produce json
// @Param residentId query string false "Resident id"
// @Success 200 {object} response.Envelope
// @Router /days-off [get]
func (h *DayOffHandler) List(c *gin.Context) {
	filter := models.DayOffFilter{ResidentID: strings.TrimSpace(c.Query("residentId"))}
	var err error
	if filter.From, err = optionalDate(c.Query("from")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	if filter.To, err = optionalDate(c.Query("to")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	daysOff, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, daysOff, nil)
}

// Approve godoc
// @Summary Approve an absence
// @Tags DaysOff
// @Produce json
// @Param id path string true "Day off id"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /days-off/{id}/approve [post]
func (h *DayOffHandler) Approve(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	dayOff, err := h.service.Approve(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dayOff, nil)
}

// Delete godoc
// @Summary Delete an absence
// @Tags DaysOff
// @Param id path string true "Day off id"
// @Success 204
// @Security BearerAuth
// @Router /days-off/{id} [delete]
func (h *DayOffHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListTypes godoc
// @Summary List absence categories
// @Tags DaysOff
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /days-off/types [get]
func (h *DayOffHandler) ListTypes(c *gin.Context) {
	types, err := h.service.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}
