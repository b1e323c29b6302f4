package dto

import (
	"time"

	"github.com/medrota/rota-api/internal/models"
)

// UpsertAssignmentRequest creates or replaces one weekly assignment.
type UpsertAssignmentRequest struct {
	ResidentID string `json:"residentId" binding:"required"`
	RotationID string `json:"rotationId" binding:"required"`
	WeekStart  string `json:"weekStart" binding:"required"` // YYYY-MM-DD
	Force      bool   `json:"force"`
}

// ScheduleQuery filters schedule listings.
type ScheduleQuery struct {
	ResidentIDs []string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// AssignmentItem is an assignment with its rotation resolved for display.
type AssignmentItem struct {
	Assignment models.ScheduleAssignment `json:"assignment"`
	Rotation   models.Rotation           `json:"rotation"`
}

// ValidateRequest names the residents to check.
type ValidateRequest struct {
	ResidentIDs []string `json:"residentIds" binding:"required,min=1"`
}

// ValidateResponse reports the violations found; empty means compliant.
type ValidateResponse struct {
	Violations []models.Violation `json:"violations"`
}

// ImportResult summarises an Excel schedule import.
type ImportResult struct {
	ResidentsMatched   int                `json:"residentsMatched"`
	AssignmentsWritten int                `json:"assignmentsWritten"`
	SkippedCells       []string           `json:"skippedCells,omitempty"`
	Violations         []models.Violation `json:"violations,omitempty"`
	Forced             bool               `json:"forced"`
}
