package models

import "time"

// Audit actions recorded by the workflow services.
const (
	AuditActionSwapApprove    = "swap_approve"
	AuditActionSwapReject     = "swap_reject"
	AuditActionScheduleImport = "schedule_import"
	AuditActionScheduleForce  = "schedule_force_commit"
	AuditActionLogin          = "admin_login"
)

// AuditLog captures an admin action with before/after JSON values.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	AdminID    *string   `db:"admin_id" json:"adminId,omitempty"`
	Action     string    `db:"action" json:"action"`
	EntityType *string   `db:"entity_type" json:"entityType,omitempty"`
	EntityID   *string   `db:"entity_id" json:"entityId,omitempty"`
	OldValue   []byte    `db:"old_value" json:"oldValue,omitempty"`
	NewValue   []byte    `db:"new_value" json:"newValue,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
