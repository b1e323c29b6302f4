package models

import "time"

// PGYLevel is a resident's post-graduate-year seniority tier.
type PGYLevel string

const (
	PGYLevelTY   PGYLevel = "TY"
	PGYLevelPGY1 PGYLevel = "PGY1"
	PGYLevelPGY2 PGYLevel = "PGY2"
	PGYLevelPGY3 PGYLevel = "PGY3"
)

// SwapGroups maps each PGY level to the set of levels it may swap with.
// TY and PGY1 form the junior group, PGY2 and PGY3 the senior group; a
// swap is only permitted within a group (supervision constraint, not
// numeric adjacency).
var SwapGroups = map[PGYLevel]map[PGYLevel]struct{}{
	PGYLevelTY:   {PGYLevelTY: {}, PGYLevelPGY1: {}},
	PGYLevelPGY1: {PGYLevelTY: {}, PGYLevelPGY1: {}},
	PGYLevelPGY2: {PGYLevelPGY2: {}, PGYLevelPGY3: {}},
	PGYLevelPGY3: {PGYLevelPGY2: {}, PGYLevelPGY3: {}},
}

// CanSwapLevels reports whether two PGY levels belong to the same swap group.
func CanSwapLevels(a, b PGYLevel) bool {
	allowed, ok := SwapGroups[a]
	if !ok {
		return false
	}
	_, ok = allowed[b]
	return ok
}

// Valid reports whether the level is one of the known tiers.
func (l PGYLevel) Valid() bool {
	_, ok := SwapGroups[l]
	return ok
}

// Seniority ranks levels from most junior upward: TY before PGY1 through
// PGY3. Unknown levels sort last. Lexicographic order gets TY wrong.
func (l PGYLevel) Seniority() int {
	switch l {
	case PGYLevelTY:
		return 0
	case PGYLevelPGY1:
		return 1
	case PGYLevelPGY2:
		return 2
	case PGYLevelPGY3:
		return 3
	}
	return 4
}

// Resident is a trainee in the program.
type Resident struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          *string   `db:"email" json:"email,omitempty"`
	PGYLevel       PGYLevel  `db:"pgy_level" json:"pgyLevel"`
	CalendarToken  string    `db:"calendar_token" json:"-"`
	AcademicYearID *string   `db:"academic_year_id" json:"academicYearId,omitempty"`
	IsActive       bool      `db:"is_active" json:"isActive"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// ResidentFilter constrains resident listing queries.
type ResidentFilter struct {
	PGYLevels      []PGYLevel
	AcademicYearID string
	ActiveOnly     bool
	Limit          int
	Offset         int
}

// AcademicYear groups residents and assignments, e.g. "2025-2026".
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"startDate"`
	EndDate   time.Time `db:"end_date" json:"endDate"`
	IsCurrent bool      `db:"is_current" json:"isCurrent"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
