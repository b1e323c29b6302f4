package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
	"github.com/medrota/rota-api/pkg/response"
)

type rotationService interface {
	Create(ctx context.Context, rotation *models.Rotation) (*models.Rotation, error)
	Get(ctx context.Context, id string) (*models.Rotation, error)
	List(ctx context.Context) ([]models.Rotation, error)
}

// RotationHandler exposes REST endpoints for rotation definitions.
type RotationHandler struct {
	service rotationService
}

// NewRotationHandler constructs the handler.
func NewRotationHandler(service rotationService) *RotationHandler {
	return &RotationHandler{service: service}
}

// Create godoc
// @Summary Register a rotation
// @Tags Rotations
// @Accept json
// @Produce json
// @Param payload body models.Rotation true "Rotation payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /rotations [post]
func (h *RotationHandler) Create(c *gin.Context) {
	var rotation models.Rotation
	if err := c.ShouldBindJSON(&rotation); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid rotation payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), &rotation)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Get godoc
// @Summary Get a rotation
// @Tags Rotations
// @Produce json
// @Param id path string true "Rotation id"
// @Success 200 {object} response.Envelope
// @Router /rotations/{id} [get]
func (h *RotationHandler) Get(c *gin.Context) {
	rotation, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rotation, nil)
}

// List godoc
// @Summary List rotations
// @Tags Rotations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /rotations [get]
func (h *RotationHandler) List(c *gin.Context) {
	rotations, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rotations, nil)
}
