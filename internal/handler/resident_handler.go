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

type residentService interface {
	Create(ctx context.Context, req dto.CreateResidentRequest) (*models.Resident, error)
	Get(ctx context.Context, id string) (*models.Resident, error)
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error)
}

// ResidentHandler exposes REST endpoints for the trainee roster.
type ResidentHandler struct {
	service residentService
}

// NewResidentHandler constructs the handler.
func NewResidentHandler(service residentService) *ResidentHandler {
	return &ResidentHandler{service: service}
}

// Create godoc
// @Summary Register a resident
// @Tags Residents
// @Accept json
// @Produce json
// @Param payload body dto.CreateResidentRequest true "Resident payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /residents [post]
func (h *ResidentHandler) Create(c *gin.Context) {
	var req dto.CreateResidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resident payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Get godoc
// @Summary Get a resident
// @Tags Residents
// @Produce json
// @Param id path string true "Resident id"
// @Success 200 {object} response.Envelope
// @Router /residents/{id} [get]
func (h *ResidentHandler) Get(c *gin.Context) {
	resident, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resident, nil)
}

// List godoc
// @Summary List residents
// @Tags Residents
// @Produce json
// @Param pgyLevels query string false "Comma separated PGY levels"
// @Param academicYearId query string false "Academic year id"
// @Param active query bool false "Active residents only"
// @Success 200 {object} response.Envelope
// @Router /residents [get]
func (h *ResidentHandler) List(c *gin.Context) {
	filter := models.ResidentFilter{
		AcademicYearID: strings.TrimSpace(c.Query("academicYearId")),
		ActiveOnly:     strings.EqualFold(c.Query("active"), "true"),
	}
	if raw := c.Query("pgyLevels"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			level := models.PGYLevel(strings.ToUpper(strings.TrimSpace(part)))
			if level.Valid() {
				filter.PGYLevels = append(filter.PGYLevels, level)
			}
		}
	}
	residents, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, residents, nil)
}
