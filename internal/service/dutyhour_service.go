package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

// DutyHourRules are the program's hard duty-hour constraints.
type DutyHourRules struct {
	MaxRolling7DayHours float64
	MaxWeeklyHours      float64
	BlockChangeWeekday  time.Weekday
}

// DefaultDutyHourRules returns the local program overrides: 100h in any
// rolling 7-day window, 80h per Saturday-anchored week, Saturday blocks.
func DefaultDutyHourRules() DutyHourRules {
	return DutyHourRules{
		MaxRolling7DayHours: 100.0,
		MaxWeeklyHours:      80.0,
		BlockChangeWeekday:  time.Saturday,
	}
}

// RulesFromConfig lifts the program configuration into validator rules.
func RulesFromConfig(cfg config.ProgramConfig) DutyHourRules {
	rules := DefaultDutyHourRules()
	if cfg.MaxRolling7DayHours > 0 {
		rules.MaxRolling7DayHours = cfg.MaxRolling7DayHours
	}
	if cfg.MaxWeeklyHours > 0 {
		rules.MaxWeeklyHours = cfg.MaxWeeklyHours
	}
	rules.BlockChangeWeekday = cfg.BlockChangeWeekday
	return rules
}

// RotationHoursOn computes the hours a rotation contributes on one
// calendar day. Weekdays-only rotations contribute nothing on weekends;
// overnight rotations end on the following day. Negative spans clamp to
// zero rather than failing.
func RotationHoursOn(rotation models.Rotation, day time.Time) float64 {
	if rotation.WeekdaysOnly {
		wd := day.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			return 0
		}
	}

	start := rotation.StartOn(day)
	end := rotation.EndOn(day)

	hours := end.Sub(start).Hours()
	if hours < 0 {
		return 0
	}
	return hours
}

// dayKey normalises a timestamp to its UTC calendar day.
func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekAnchor returns the most recent day on or before t that falls on the
// anchor weekday. With a Saturday anchor this buckets days into the
// program's Saturday-to-Friday weeks.
func weekAnchor(t time.Time, anchor time.Weekday) time.Time {
	offset := (int(t.Weekday()) - int(anchor) + 7) % 7
	return dayKey(t).AddDate(0, 0, -offset)
}

type dayHours struct {
	day   time.Time
	hours float64
}

// EvaluateSchedule is the pure validator: given assignments with their
// rotation metadata resolved, it reports every duty-hour violation. It
// never fails and performs no I/O; calling it twice on the same input
// yields the same list.
func EvaluateSchedule(rules DutyHourRules, assignments []models.ScheduleAssignment, rotations map[string]models.Rotation) []models.Violation {
	violations := make([]models.Violation, 0)

	// Per-resident daily worked-hours profile. Overlapping assignments
	// accumulate additively.
	daily := make(map[string]map[time.Time]float64)

	for _, assignment := range assignments {
		rotation, ok := rotations[assignment.RotationID]
		if !ok {
			continue
		}

		weekStart := dayKey(assignment.WeekStart)
		weekEnd := dayKey(assignment.WeekEnd)

		if weekStart.Weekday() != rules.BlockChangeWeekday {
			violations = append(violations, models.Violation{
				Code:       models.ViolationBlockChangeDay,
				Message:    fmt.Sprintf("rotation week must start on %s", rules.BlockChangeWeekday),
				Severity:   models.SeverityHard,
				SpanStart:  weekStart,
				SpanEnd:    weekEnd,
				ResidentID: assignment.ResidentID,
			})
		}

		for day := weekStart; !day.After(weekEnd); day = day.AddDate(0, 0, 1) {
			hours := RotationHoursOn(rotation, day)
			if hours <= 0 {
				continue
			}
			if daily[assignment.ResidentID] == nil {
				daily[assignment.ResidentID] = make(map[time.Time]float64)
			}
			daily[assignment.ResidentID][day] += hours
		}
	}

	residentIDs := make([]string, 0, len(daily))
	for id := range daily {
		residentIDs = append(residentIDs, id)
	}
	sort.Strings(residentIDs)

	for _, residentID := range residentIDs {
		profile := daily[residentID]
		days := make([]dayHours, 0, len(profile))
		for day, hours := range profile {
			days = append(days, dayHours{day: day, hours: hours})
		}
		sort.Slice(days, func(i, j int) bool { return days[i].day.Before(days[j].day) })

		violations = append(violations, rollingWindowViolations(rules, residentID, days)...)
		violations = append(violations, weeklyBucketViolations(rules, residentID, days)...)
	}

	return violations
}

// rollingWindowViolations slides a trailing 7-calendar-day window over the
// sorted day profile. One violation is emitted for every day on which the
// window total exceeds the cap, so a sustained overage reports once per
// exceeding day rather than once per contiguous period.
func rollingWindowViolations(rules DutyHourRules, residentID string, days []dayHours) []models.Violation {
	var violations []models.Violation
	window := make([]dayHours, 0, 8)
	total := 0.0

	for _, entry := range days {
		window = append(window, entry)
		total += entry.hours

		for len(window) > 0 && entry.day.Sub(window[0].day) > 6*24*time.Hour {
			total -= window[0].hours
			window = window[1:]
		}

		if total > rules.MaxRolling7DayHours {
			violations = append(violations, models.Violation{
				Code:       models.ViolationRolling7Day,
				Message:    fmt.Sprintf("duty hours exceed %.0fh in 7-day window (%.1fh)", rules.MaxRolling7DayHours, total),
				Severity:   models.SeverityHard,
				SpanStart:  window[0].day,
				SpanEnd:    entry.day,
				ResidentID: residentID,
			})
		}
	}
	return violations
}

// weeklyBucketViolations sums hours per anchor-aligned week and reports
// any bucket over the weekly cap, spanning the full anchor week.
func weeklyBucketViolations(rules DutyHourRules, residentID string, days []dayHours) []models.Violation {
	buckets := make(map[time.Time]float64)
	for _, entry := range days {
		buckets[weekAnchor(entry.day, rules.BlockChangeWeekday)] += entry.hours
	}

	weekStarts := make([]time.Time, 0, len(buckets))
	for weekStart := range buckets {
		weekStarts = append(weekStarts, weekStart)
	}
	sort.Slice(weekStarts, func(i, j int) bool { return weekStarts[i].Before(weekStarts[j]) })

	var violations []models.Violation
	for _, weekStart := range weekStarts {
		total := buckets[weekStart]
		if total > rules.MaxWeeklyHours {
			violations = append(violations, models.Violation{
				Code:       models.ViolationWeeklyAverage,
				Message:    fmt.Sprintf("weekly duty hours exceed %.0fh (%.1fh)", rules.MaxWeeklyHours, total),
				Severity:   models.SeverityHard,
				SpanStart:  weekStart,
				SpanEnd:    weekStart.AddDate(0, 0, 6),
				ResidentID: residentID,
			})
		}
	}
	return violations
}

type dutyHourAssignmentStore interface {
	ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error)
}

type dutyHourRotationStore interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error)
}

// DutyHourService is the batch entry point around the pure validator: it
// loads the affected residents' assignments and rotation metadata and
// evaluates them in one pass.
type DutyHourService struct {
	assignments dutyHourAssignmentStore
	rotations   dutyHourRotationStore
	rules       DutyHourRules
	logger      *zap.Logger
}

// NewDutyHourService constructs the service.
func NewDutyHourService(assignments dutyHourAssignmentStore, rotations dutyHourRotationStore, rules DutyHourRules, logger *zap.Logger) *DutyHourService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DutyHourService{
		assignments: assignments,
		rotations:   rotations,
		rules:       rules,
		logger:      logger,
	}
}

// Rules exposes the configured constraints.
func (s *DutyHourService) Rules() DutyHourRules {
	return s.rules
}

// Validate evaluates the given residents' schedules and returns every
// violation found. Residents with no assignments contribute nothing and
// cost nothing to load.
func (s *DutyHourService) Validate(ctx context.Context, residentIDs []string) ([]models.Violation, error) {
	if len(residentIDs) == 0 {
		return nil, nil
	}

	assignments, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{ResidentIDs: residentIDs})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if len(assignments) == 0 {
		return nil, nil
	}

	rotationIDs := make([]string, 0, len(assignments))
	seen := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		if _, ok := seen[assignment.RotationID]; ok {
			continue
		}
		seen[assignment.RotationID] = struct{}{}
		rotationIDs = append(rotationIDs, assignment.RotationID)
	}

	rotations, err := s.rotations.GetByIDs(ctx, rotationIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	return EvaluateSchedule(s.rules, assignments, rotations), nil
}

// Enforce validates and fails when any hard violation exists. The error
// carries the complete violation list so a caller can present every
// problem at once instead of one at a time.
func (s *DutyHourService) Enforce(ctx context.Context, residentIDs []string) error {
	violations, err := s.Validate(ctx, residentIDs)
	if err != nil {
		return err
	}

	hard := 0
	for _, v := range violations {
		if v.Hard() {
			hard++
		}
	}
	if hard == 0 {
		return nil
	}

	s.logger.Info("schedule validation failed",
		zap.Int("residents", len(residentIDs)),
		zap.Int("violations", len(violations)),
	)
	return appErrors.WithDetails(appErrors.ErrScheduleViolation,
		fmt.Sprintf("schedule violates duty-hour rules (%d violations)", len(violations)),
		violations,
	)
}
