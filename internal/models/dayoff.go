package models

import "time"

// DayOffType categorises absences (Vacation, Sick, Conference, ...).
type DayOffType struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Color     *string   `db:"color" json:"color,omitempty"`
	IsSystem  bool      `db:"is_system" json:"isSystem"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DayOff is a dated absence range for a resident, optionally stamped by
// the approving admin.
type DayOff struct {
	ID         string     `db:"id" json:"id"`
	ResidentID string     `db:"resident_id" json:"residentId"`
	TypeID     string     `db:"type_id" json:"typeId"`
	StartDate  time.Time  `db:"start_date" json:"startDate"`
	EndDate    time.Time  `db:"end_date" json:"endDate"`
	Notes      *string    `db:"notes" json:"notes,omitempty"`
	ApprovedBy *string    `db:"approved_by" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `db:"approved_at" json:"approvedAt,omitempty"`
	Source     DataSource `db:"source" json:"source"`
	CreatedAt  time.Time  `db:"created_at" json:"createdAt"`
}

// DayOffFilter constrains day-off listing queries.
type DayOffFilter struct {
	ResidentID string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}
