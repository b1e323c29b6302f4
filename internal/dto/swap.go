package dto

import (
	"time"

	"github.com/medrota/rota-api/internal/models"
)

// CreateSwapRequest is the payload for opening a swap request.
type CreateSwapRequest struct {
	RequesterID           string `json:"requesterId" binding:"required"`
	TargetID              string `json:"targetId" binding:"required"`
	RequesterAssignmentID string `json:"requesterAssignmentId" binding:"required"`
	TargetAssignmentID    string `json:"targetAssignmentId" binding:"required"`
	Note                  string `json:"note"`
}

// SwapActorRequest identifies the resident performing a workflow action.
type SwapActorRequest struct {
	ResidentID string `json:"residentId" binding:"required"`
}

// ReviewSwapRequest carries the admin's note for approve/reject.
type ReviewSwapRequest struct {
	Note string `json:"note"`
}

// SwapQuery filters swap listings.
type SwapQuery struct {
	ResidentID  string
	AsRequester bool
	AsTarget    bool
	Status      []models.SwapStatus
	Limit       int
	Offset      int
}

// EligibleTarget is one candidate partner for a swap: an active resident
// in the compatible PGY group holding an assignment for the same week.
type EligibleTarget struct {
	ResidentID   string          `json:"residentId"`
	ResidentName string          `json:"residentName"`
	PGYLevel     models.PGYLevel `json:"pgyLevel"`
	AssignmentID string          `json:"assignmentId"`
	RotationName string          `json:"rotationName"`
	WeekStart    time.Time       `json:"weekStart"`
}

// SwapDetail is a swap request with resolved resident and assignment info.
type SwapDetail struct {
	Swap                models.SwapRequest `json:"swap"`
	Requester           *SwapParty         `json:"requester,omitempty"`
	Target              *SwapParty         `json:"target,omitempty"`
	RequesterAssignment *SwapAssignment    `json:"requesterAssignment,omitempty"`
	TargetAssignment    *SwapAssignment    `json:"targetAssignment,omitempty"`
}

// SwapParty identifies one side of a swap.
type SwapParty struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	PGYLevel models.PGYLevel `json:"pgyLevel"`
}

// SwapAssignment summarises the assignment being traded.
type SwapAssignment struct {
	ID           string    `json:"id"`
	RotationName string    `json:"rotationName"`
	WeekStart    time.Time `json:"weekStart"`
	WeekEnd      time.Time `json:"weekEnd"`
}
