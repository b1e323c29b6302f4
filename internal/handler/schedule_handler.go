package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/internal/service"
	appErrors "github.com/medrota/rota-api/pkg/errors"
	"github.com/medrota/rota-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, query dto.ScheduleQuery) ([]dto.AssignmentItem, error)
	Upsert(ctx context.Context, adminID string, req dto.UpsertAssignmentRequest) (*models.ScheduleAssignment, []models.Violation, error)
	Delete(ctx context.Context, id string) error
	Validate(ctx context.Context, residentIDs []string) ([]models.Violation, error)
}

type importService interface {
	ImportSchedule(ctx context.Context, adminID string, reader io.Reader, force bool) (*dto.ImportResult, error)
}

type exportService interface {
	Roster(ctx context.Context, from, to time.Time, format service.RosterFormat) (*service.RosterExport, error)
}

// ScheduleHandler exposes REST endpoints for the weekly roster.
type ScheduleHandler struct {
	schedule scheduleService
	imports  importService
	exports  exportService
	metrics  *service.MetricsService
}

// NewScheduleHandler constructs the handler.
func NewScheduleHandler(schedule scheduleService, imports importService, exports exportService, metrics *service.MetricsService) *ScheduleHandler {
	return &ScheduleHandler{schedule: schedule, imports: imports, exports: exports, metrics: metrics}
}

// List godoc
// @Summary List schedule assignments
// @Tags Schedule
// @Produce json
// @Param residentIds query string false "Comma separated resident ids"
// @Param from query string false "Week start lower bound (YYYY-MM-DD)"
// @Param to query string false "Week start upper bound (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /schedule [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	query := dto.ScheduleQuery{}
	if raw := c.Query("residentIds"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if id := strings.TrimSpace(part); id != "" {
				query.ResidentIDs = append(query.ResidentIDs, id)
			}
		}
	}
	var err error
	if query.From, err = optionalDate(c.Query("from")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	if query.To, err = optionalDate(c.Query("to")); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	if raw := c.Query("limit"); raw != "" {
		query.Limit, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("offset"); raw != "" {
		query.Offset, _ = strconv.Atoi(raw)
	}

	items, err := h.schedule.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Upsert godoc
// @Summary Create or replace one weekly assignment
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.UpsertAssignmentRequest true "Assignment payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/assignments [put]
func (h *ScheduleHandler) Upsert(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.UpsertAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid assignment payload"))
		return
	}
	assignment, violations, err := h.schedule.Upsert(c.Request.Context(), claims.UserID, req)
	if err != nil {
		h.recordViolations(err)
		response.Error(c, err)
		return
	}
	var meta map[string]interface{}
	if len(violations) > 0 {
		meta = map[string]interface{}{"violations": violations}
	}
	response.JSON(c, http.StatusOK, assignment, nil, meta)
}

// Delete godoc
// @Summary Delete one assignment
// @Tags Schedule
// @Param id path string true "Assignment id"
// @Success 204
// @Security BearerAuth
// @Router /schedule/assignments/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.schedule.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Validate godoc
// @Summary Run the duty-hour validator for residents
// @Tags Schedule
// @Accept json
// @Produce json
// @Param payload body dto.ValidateRequest true "Residents to check"
// @Success 200 {object} response.Envelope
// @Router /schedule/validate [post]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "residentIds is required"))
		return
	}
	violations, err := h.schedule.Validate(c.Request.Context(), req.ResidentIDs)
	if err != nil {
		response.Error(c, err)
		return
	}
	if violations == nil {
		violations = []models.Violation{}
	}
	codes := make([]string, len(violations))
	for i, v := range violations {
		codes[i] = v.Code
	}
	h.metrics.RecordViolations(codes)
	response.JSON(c, http.StatusOK, dto.ValidateResponse{Violations: violations}, nil)
}

// Import godoc
// @Summary Import a block schedule workbook
// @Tags Schedule
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Param force formData bool false "Commit despite violations"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /schedule/import [post]
func (h *ScheduleHandler) Import(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "failed to open uploaded file"))
		return
	}
	defer file.Close()

	force := strings.EqualFold(c.PostForm("force"), "true")
	result, err := h.imports.ImportSchedule(c.Request.Context(), claims.UserID, file, force)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordImport(result.AssignmentsWritten)
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export the roster as CSV or PDF
// @Tags Schedule
// @Produce octet-stream
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Param format query string false "csv or pdf (default csv)"
// @Success 200
// @Security BearerAuth
// @Router /schedule/export [get]
func (h *ScheduleHandler) Export(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be YYYY-MM-DD"))
		return
	}
	format := service.RosterFormat(c.DefaultQuery("format", "csv"))

	export, err := h.exports.Roster(c.Request.Context(), from, to, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, export.Payload, export.Filename, export.ContentType)
}

func (h *ScheduleHandler) recordViolations(err error) {
	appErr := appErrors.FromError(err)
	violations, ok := appErr.Details.([]models.Violation)
	if !ok {
		return
	}
	codes := make([]string, len(violations))
	for i, v := range violations {
		codes[i] = v.Code
	}
	h.metrics.RecordViolations(codes)
}

func optionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
