package models

import "time"

// Rotation is a named duty pattern (e.g. ICU, NIGHT) with a daily time
// window. Start and end are wall-clock times of day; overnight rotations
// end on the next calendar day, never later.
type Rotation struct {
	ID              string    `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	DisplayName     *string   `db:"display_name" json:"displayName,omitempty"`
	Color           *string   `db:"color" json:"color,omitempty"`
	Location        *string   `db:"location" json:"location,omitempty"`
	StartTime       ClockTime `db:"start_time" json:"startTime"`
	EndTime         ClockTime `db:"end_time" json:"endTime"`
	IsOvernight     bool      `db:"is_overnight" json:"isOvernight"`
	WeekdaysOnly    bool      `db:"weekdays_only" json:"weekdaysOnly"`
	GeneratesEvents bool      `db:"generates_events" json:"generatesEvents"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
}

// StartOn anchors the rotation's start time to a calendar day.
func (r Rotation) StartOn(day time.Time) time.Time {
	return r.StartTime.On(day)
}

// EndOn anchors the rotation's end time to a calendar day, rolling to the
// next day for overnight rotations.
func (r Rotation) EndOn(day time.Time) time.Time {
	if r.IsOvernight {
		return r.EndTime.On(day.AddDate(0, 0, 1))
	}
	return r.EndTime.On(day)
}
