package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/internal/service"
	appErrors "github.com/medrota/rota-api/pkg/errors"
	"github.com/medrota/rota-api/pkg/response"
)

type swapService interface {
	Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (*models.SwapRequest, error)
	Confirm(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error)
	Decline(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error)
	Cancel(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error)
	Approve(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error)
	Reject(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error)
	List(ctx context.Context, query dto.SwapQuery) ([]models.SwapRequest, error)
	GetDetail(ctx context.Context, swapID string) (*dto.SwapDetail, error)
	EligibleTargets(ctx context.Context, requesterID, assignmentID string) ([]dto.EligibleTarget, error)
}

// SwapHandler exposes REST endpoints for the shift swap workflow.
type SwapHandler struct {
	service swapService
	metrics *service.MetricsService
}

// NewSwapHandler constructs the handler.
func NewSwapHandler(svc swapService, metrics *service.MetricsService) *SwapHandler {
	return &SwapHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Open a swap request
// @Tags Swaps
// @Accept json
// @Produce json
// @Param payload body dto.CreateSwapRequest true "Swap payload"
// @Success 201 {object} response.Envelope
// @Router /swaps [post]
func (h *SwapHandler) Create(c *gin.Context) {
	var req dto.CreateSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid swap payload"))
		return
	}
	swap, err := h.service.Create(c.Request.Context(), req.RequesterID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSwapTransition(string(swap.Status))
	response.Created(c, swap)
}

// List godoc
// @Summary List swap requests
// @Tags Swaps
// @Produce json
// @Param residentId query string false "Resident id"
// @Param role query string false "requester or target"
// @Param status query string false "Comma separated statuses"
// @Success 200 {object} response.Envelope
// @Router /swaps [get]
func (h *SwapHandler) List(c *gin.Context) {
	query := dto.SwapQuery{
		ResidentID: strings.TrimSpace(c.Query("residentId")),
	}
	switch c.Query("role") {
	case "requester":
		query.AsRequester = true
	case "target":
		query.AsTarget = true
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		for _, part := range strings.Split(rawStatus, ",") {
			query.Status = append(query.Status, models.SwapStatus(strings.TrimSpace(part)))
		}
	}
	swaps, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, swaps, nil)
}

// Get godoc
// @Summary Get a swap request with resolved parties
// @Tags Swaps
// @Produce json
// @Param id path string true "Swap id"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id} [get]
func (h *SwapHandler) Get(c *gin.Context) {
	detail, err := h.service.GetDetail(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Confirm godoc
// @Summary Confirm a swap as the target resident
// @Tags Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap id"
// @Param payload body dto.SwapActorRequest true "Acting resident"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/confirm [post]
func (h *SwapHandler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

// Decline godoc
// @Summary Decline a swap as the target resident
// @Tags Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap id"
// @Param payload body dto.SwapActorRequest true "Acting resident"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/decline [post]
func (h *SwapHandler) Decline(c *gin.Context) {
	h.transition(c, h.service.Decline)
}

// Cancel godoc
// @Summary Cancel a swap as the requester
// @Tags Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap id"
// @Param payload body dto.SwapActorRequest true "Acting resident"
// @Success 200 {object} response.Envelope
// @Router /swaps/{id}/cancel [post]
func (h *SwapHandler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

func (h *SwapHandler) transition(c *gin.Context, fn func(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error)) {
	var req dto.SwapActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "residentId is required"))
		return
	}
	swap, err := fn(c.Request.Context(), c.Param("id"), req.ResidentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSwapTransition(string(swap.Status))
	response.JSON(c, http.StatusOK, swap, nil)
}

// Approve godoc
// @Summary Approve a peer-confirmed swap
// @Tags Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap id"
// @Param payload body dto.ReviewSwapRequest true "Review note"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /swaps/{id}/approve [post]
func (h *SwapHandler) Approve(c *gin.Context) {
	h.review(c, h.service.Approve)
}

// Reject godoc
// @Summary Reject an outstanding swap
// @Tags Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap id"
// @Param payload body dto.ReviewSwapRequest true "Review note"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /swaps/{id}/reject [post]
func (h *SwapHandler) Reject(c *gin.Context) {
	h.review(c, h.service.Reject)
}

func (h *SwapHandler) review(c *gin.Context, fn func(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error)) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReviewSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid review payload"))
		return
	}
	swap, err := fn(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSwapTransition(string(swap.Status))
	response.JSON(c, http.StatusOK, swap, nil)
}

// EligibleTargets godoc
// @Summary List eligible swap partners for an assignment
// @Tags Swaps
// @Produce json
// @Param residentId query string true "Requester id"
// @Param assignmentId query string true "Assignment id"
// @Success 200 {object} response.Envelope
// @Router /swaps/eligible-targets [get]
func (h *SwapHandler) EligibleTargets(c *gin.Context) {
	residentID := strings.TrimSpace(c.Query("residentId"))
	assignmentID := strings.TrimSpace(c.Query("assignmentId"))
	if residentID == "" || assignmentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "residentId and assignmentId are required"))
		return
	}
	targets, err := h.service.EligibleTargets(c.Request.Context(), residentID, assignmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, targets, nil)
}
