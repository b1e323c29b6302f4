package models

import "time"

// Violation severities. All current program rules are hard; soft is kept
// for informational rules that must never block a commit.
type Severity string

const (
	SeverityHard Severity = "hard"
	SeveritySoft Severity = "soft"
)

// Violation codes emitted by the duty-hour validator.
const (
	ViolationBlockChangeDay = "block_change_day"
	ViolationRolling7Day    = "duty_hours_7d"
	ViolationWeeklyAverage  = "duty_hours_avg_week"
)

// Violation is a computed fact about a resident's schedule. Violations are
// produced fresh on every validation call and never persisted.
type Violation struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	SpanStart  time.Time `json:"spanStart"`
	SpanEnd    time.Time `json:"spanEnd"`
	ResidentID string    `json:"residentId"`
}

// Hard reports whether the violation should block a commit.
func (v Violation) Hard() bool {
	return v.Severity == SeverityHard
}
