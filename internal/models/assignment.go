package models

import "time"

// DataSource records where a schedule row came from.
type DataSource string

const (
	SourceManual DataSource = "manual"
	SourceExcel  DataSource = "excel"
	SourceAmion  DataSource = "amion"
	SourceCSV    DataSource = "csv"
)

// ScheduleAssignment is one resident's rotation for one block week.
// week_start..week_end spans exactly one block; at most one assignment
// exists per (resident, week_start).
type ScheduleAssignment struct {
	ID             string     `db:"id" json:"id"`
	ResidentID     string     `db:"resident_id" json:"residentId"`
	RotationID     string     `db:"rotation_id" json:"rotationId"`
	WeekStart      time.Time  `db:"week_start" json:"weekStart"`
	WeekEnd        time.Time  `db:"week_end" json:"weekEnd"`
	AcademicYearID *string    `db:"academic_year_id" json:"academicYearId,omitempty"`
	Source         DataSource `db:"source" json:"source"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updatedAt"`
}

// AssignmentWithRotation joins an assignment with its resolved rotation.
type AssignmentWithRotation struct {
	Assignment ScheduleAssignment
	Rotation   Rotation
}

// AssignmentFilter constrains schedule listing queries.
type AssignmentFilter struct {
	ResidentIDs []string
	WeekStart   *time.Time
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// CallAssignment is a dated call duty (pre-call, on-call, post-call) for a
// resident. Ignored by the duty-hour validator; feeds the calendar only.
type CallAssignment struct {
	ID             string     `db:"id" json:"id"`
	ResidentID     string     `db:"resident_id" json:"residentId"`
	CallType       string     `db:"call_type" json:"callType"`
	Date           time.Time  `db:"date" json:"date"`
	Service        *string    `db:"service" json:"service,omitempty"`
	Location       *string    `db:"location" json:"location,omitempty"`
	AcademicYearID *string    `db:"academic_year_id" json:"academicYearId,omitempty"`
	Source         DataSource `db:"source" json:"source"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}
