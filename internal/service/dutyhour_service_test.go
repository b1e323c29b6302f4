package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/models"
)

// 2025-07-05 is a Saturday.
var saturday = time.Date(2025, 7, 5, 0, 0, 0, 0, time.UTC)

func weekAssignment(residentID, rotationID string, weekStart time.Time) models.ScheduleAssignment {
	return models.ScheduleAssignment{
		ID:         residentID + "-" + rotationID + "-" + weekStart.Format("20060102"),
		ResidentID: residentID,
		RotationID: rotationID,
		WeekStart:  weekStart,
		WeekEnd:    weekStart.AddDate(0, 0, 6),
	}
}

func dayRotation(id string, startHour, endHour int) models.Rotation {
	return models.Rotation{
		ID:        id,
		Name:      id,
		StartTime: models.ClockTime{Hour: startHour},
		EndTime:   models.ClockTime{Hour: endHour},
	}
}

func TestRotationHoursOnOvernight(t *testing.T) {
	night := models.Rotation{
		ID:          "night",
		Name:        "NIGHT",
		StartTime:   models.ClockTime{Hour: 19},
		EndTime:     models.ClockTime{Hour: 7},
		IsOvernight: true,
	}
	require.InDelta(t, 12.0, RotationHoursOn(night, saturday), 1e-9)
}

func TestRotationHoursOnWeekdaysOnly(t *testing.T) {
	clinic := dayRotation("clinic", 8, 16)
	clinic.WeekdaysOnly = true

	require.Zero(t, RotationHoursOn(clinic, saturday))
	require.Zero(t, RotationHoursOn(clinic, saturday.AddDate(0, 0, 1)))
	monday := saturday.AddDate(0, 0, 2)
	require.InDelta(t, 8.0, RotationHoursOn(clinic, monday), 1e-9)
}

func TestRotationHoursOnNegativeSpanClampsToZero(t *testing.T) {
	backwards := dayRotation("bad", 16, 8)
	require.Zero(t, RotationHoursOn(backwards, saturday))
}

func TestEvaluateScheduleCompliant(t *testing.T) {
	clinic := dayRotation("clinic", 8, 16)
	clinic.WeekdaysOnly = true
	rotations := map[string]models.Rotation{"clinic": clinic}
	assignments := []models.ScheduleAssignment{
		weekAssignment("res-1", "clinic", saturday),
		weekAssignment("res-1", "clinic", saturday.AddDate(0, 0, 7)),
	}

	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	require.Empty(t, violations)
}

func TestEvaluateScheduleBlockChangeDay(t *testing.T) {
	clinic := dayRotation("clinic", 8, 16)
	clinic.WeekdaysOnly = true
	rotations := map[string]models.Rotation{"clinic": clinic}
	monday := saturday.AddDate(0, 0, 2)
	assignments := []models.ScheduleAssignment{weekAssignment("res-1", "clinic", monday)}

	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	require.Len(t, violations, 1)
	require.Equal(t, models.ViolationBlockChangeDay, violations[0].Code)
	require.Equal(t, models.SeverityHard, violations[0].Severity)
	require.Equal(t, "res-1", violations[0].ResidentID)
}

func TestEvaluateScheduleWeeklyCap(t *testing.T) {
	// 12h every day is 84h per week: over the 80h weekly cap but under
	// the 100h rolling cap.
	icu := dayRotation("icu", 7, 19)
	rotations := map[string]models.Rotation{"icu": icu}
	assignments := []models.ScheduleAssignment{weekAssignment("res-1", "icu", saturday)}

	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	require.Len(t, violations, 1)
	require.Equal(t, models.ViolationWeeklyAverage, violations[0].Code)
	require.Equal(t, saturday, violations[0].SpanStart)
	require.Equal(t, saturday.AddDate(0, 0, 6), violations[0].SpanEnd)
}

func TestEvaluateScheduleRollingWindow(t *testing.T) {
	// 18h per day crosses 100h on day six (108h) and day seven (126h).
	marathon := models.Rotation{
		ID:          "marathon",
		Name:        "MARATHON",
		StartTime:   models.ClockTime{Hour: 17},
		EndTime:     models.ClockTime{Hour: 11},
		IsOvernight: true,
	}
	rotations := map[string]models.Rotation{"marathon": marathon}
	assignments := []models.ScheduleAssignment{weekAssignment("res-1", "marathon", saturday)}

	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)

	var rolling, weekly []models.Violation
	for _, v := range violations {
		switch v.Code {
		case models.ViolationRolling7Day:
			rolling = append(rolling, v)
		case models.ViolationWeeklyAverage:
			weekly = append(weekly, v)
		}
	}
	require.Len(t, rolling, 2)
	require.Equal(t, saturday, rolling[0].SpanStart)
	require.Equal(t, saturday.AddDate(0, 0, 5), rolling[0].SpanEnd)
	require.Equal(t, saturday.AddDate(0, 0, 6), rolling[1].SpanEnd)
	require.Len(t, weekly, 1)
}

func TestEvaluateScheduleWindowEvicts(t *testing.T) {
	// Two heavy weeks separated by a light one never accumulate across
	// the 7-day boundary.
	icu := dayRotation("icu", 7, 19)
	clinic := dayRotation("clinic", 8, 12)
	rotations := map[string]models.Rotation{"icu": icu, "clinic": clinic}
	assignments := []models.ScheduleAssignment{
		weekAssignment("res-1", "icu", saturday),
		weekAssignment("res-1", "clinic", saturday.AddDate(0, 0, 7)),
		weekAssignment("res-1", "icu", saturday.AddDate(0, 0, 14)),
	}

	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	for _, v := range violations {
		require.NotEqual(t, models.ViolationRolling7Day, v.Code)
	}
}

func TestEvaluateScheduleOverlapAccumulates(t *testing.T) {
	// Two same-week assignments for one resident stack additively.
	day := dayRotation("day", 7, 19)
	extra := dayRotation("extra", 19, 23)
	rotations := map[string]models.Rotation{"day": day, "extra": extra}
	a := weekAssignment("res-1", "day", saturday)
	b := weekAssignment("res-1", "extra", saturday)
	b.ID = "overlap"

	violations := EvaluateSchedule(DefaultDutyHourRules(), []models.ScheduleAssignment{a, b}, rotations)

	var rolling int
	for _, v := range violations {
		if v.Code == models.ViolationRolling7Day {
			rolling++
		}
	}
	// 16h per day reaches 112h on day seven.
	require.Equal(t, 1, rolling)
}

func TestEvaluateScheduleDeterministic(t *testing.T) {
	icu := dayRotation("icu", 7, 19)
	rotations := map[string]models.Rotation{"icu": icu}
	assignments := []models.ScheduleAssignment{
		weekAssignment("res-2", "icu", saturday),
		weekAssignment("res-1", "icu", saturday),
	}

	first := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	second := EvaluateSchedule(DefaultDutyHourRules(), assignments, rotations)
	require.Equal(t, first, second)
}

func TestEvaluateScheduleUnknownRotationSkipped(t *testing.T) {
	assignments := []models.ScheduleAssignment{weekAssignment("res-1", "ghost", saturday)}
	violations := EvaluateSchedule(DefaultDutyHourRules(), assignments, map[string]models.Rotation{})
	require.Empty(t, violations)
}

type assignmentStoreStub struct {
	assignments []models.ScheduleAssignment
	lastFilter  models.AssignmentFilter
	err         error
}

func (s *assignmentStoreStub) ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error) {
	s.lastFilter = filter
	if s.err != nil {
		return nil, s.err
	}
	return s.assignments, nil
}

type rotationStoreStub struct {
	rotations map[string]models.Rotation
}

func (s *rotationStoreStub) GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error) {
	result := make(map[string]models.Rotation, len(ids))
	for _, id := range ids {
		if rotation, ok := s.rotations[id]; ok {
			result[id] = rotation
		}
	}
	return result, nil
}

func TestDutyHourServiceValidate(t *testing.T) {
	icu := dayRotation("icu", 7, 19)
	assignments := &assignmentStoreStub{assignments: []models.ScheduleAssignment{
		weekAssignment("res-1", "icu", saturday),
	}}
	rotations := &rotationStoreStub{rotations: map[string]models.Rotation{"icu": icu}}
	svc := NewDutyHourService(assignments, rotations, DefaultDutyHourRules(), nil)

	violations, err := svc.Validate(context.Background(), []string{"res-1"})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	require.Equal(t, []string{"res-1"}, assignments.lastFilter.ResidentIDs)
}

func TestDutyHourServiceValidateNoResidents(t *testing.T) {
	svc := NewDutyHourService(&assignmentStoreStub{}, &rotationStoreStub{}, DefaultDutyHourRules(), nil)
	violations, err := svc.Validate(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, violations)
}

func TestDutyHourServiceEnforce(t *testing.T) {
	icu := dayRotation("icu", 7, 19)
	assignments := &assignmentStoreStub{assignments: []models.ScheduleAssignment{
		weekAssignment("res-1", "icu", saturday),
	}}
	rotations := &rotationStoreStub{rotations: map[string]models.Rotation{"icu": icu}}
	svc := NewDutyHourService(assignments, rotations, DefaultDutyHourRules(), nil)

	err := svc.Enforce(context.Background(), []string{"res-1"})
	require.Error(t, err)

	clean := NewDutyHourService(&assignmentStoreStub{}, rotations, DefaultDutyHourRules(), nil)
	require.NoError(t, clean.Enforce(context.Background(), []string{"res-1"}))
}
