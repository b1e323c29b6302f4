package models

import "time"

// SwapStatus captures workflow states for shift swap requests.
type SwapStatus string

const (
	SwapStatusPending       SwapStatus = "pending"
	SwapStatusPeerConfirmed SwapStatus = "peer_confirmed"
	SwapStatusApproved      SwapStatus = "approved"
	SwapStatusRejected      SwapStatus = "rejected"
	SwapStatusCancelled     SwapStatus = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s SwapStatus) Terminal() bool {
	switch s {
	case SwapStatusApproved, SwapStatusRejected, SwapStatusCancelled:
		return true
	}
	return false
}

// Outstanding reports whether the request still blocks a new request for
// the same (requester, assignment) pair.
func (s SwapStatus) Outstanding() bool {
	return s == SwapStatusPending || s == SwapStatusPeerConfirmed
}

// SwapRequest is a proposed exchange of two residents' weekly assignments.
// Only the approve transition mutates the schedule, exactly once, from
// peer_confirmed.
type SwapRequest struct {
	ID                    string     `db:"id" json:"id"`
	RequesterID           string     `db:"requester_id" json:"requesterId"`
	TargetID              string     `db:"target_id" json:"targetId"`
	RequesterAssignmentID string     `db:"requester_assignment_id" json:"requesterAssignmentId"`
	TargetAssignmentID    string     `db:"target_assignment_id" json:"targetAssignmentId"`
	Status                SwapStatus `db:"status" json:"status"`
	RequesterNote         *string    `db:"requester_note" json:"requesterNote,omitempty"`
	PeerConfirmedAt       *time.Time `db:"peer_confirmed_at" json:"peerConfirmedAt,omitempty"`
	AdminReviewedBy       *string    `db:"admin_reviewed_by" json:"adminReviewedBy,omitempty"`
	AdminReviewedAt       *time.Time `db:"admin_reviewed_at" json:"adminReviewedAt,omitempty"`
	AdminNote             *string    `db:"admin_note" json:"adminNote,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updatedAt"`
}

// SwapFilter constrains swap listing queries.
type SwapFilter struct {
	ResidentID  string
	AsRequester bool
	AsTarget    bool
	Status      []SwapStatus
	Limit       int
	Offset      int
}
