package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type scheduleAssignmentStub struct {
	byID     map[string]models.ScheduleAssignment
	existing []models.ScheduleAssignment
	upserted []models.ScheduleAssignment
	deleted  []string
}

func (s *scheduleAssignmentStub) GetByID(ctx context.Context, id string) (*models.ScheduleAssignment, error) {
	if assignment, ok := s.byID[id]; ok {
		copied := assignment
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleAssignmentStub) ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error) {
	return s.existing, nil
}

func (s *scheduleAssignmentStub) Upsert(ctx context.Context, assignment *models.ScheduleAssignment) error {
	// Mirrors the ON CONFLICT semantics: a row for the same resident and
	// week keeps its identity.
	assignment.ID = "asn-new"
	for _, existing := range s.existing {
		if existing.ResidentID == assignment.ResidentID && existing.WeekStart.Equal(assignment.WeekStart) {
			assignment.ID = existing.ID
			break
		}
	}
	s.upserted = append(s.upserted, *assignment)
	return nil
}

func (s *scheduleAssignmentStub) Delete(ctx context.Context, id string) error {
	for _, existing := range s.existing {
		if existing.ID == id {
			s.deleted = append(s.deleted, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

type scheduleResidentStub struct {
	residents map[string]models.Resident
}

func (s *scheduleResidentStub) GetByID(ctx context.Context, id string) (*models.Resident, error) {
	if resident, ok := s.residents[id]; ok {
		copied := resident
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type scheduleRotationStub struct {
	rotations map[string]models.Rotation
}

func (s *scheduleRotationStub) GetByID(ctx context.Context, id string) (*models.Rotation, error) {
	if rotation, ok := s.rotations[id]; ok {
		copied := rotation
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *scheduleRotationStub) GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error) {
	result := make(map[string]models.Rotation)
	for _, id := range ids {
		if rotation, ok := s.rotations[id]; ok {
			result[id] = rotation
		}
	}
	return result, nil
}

type validatorStub struct {
	violations []models.Violation
	rules      DutyHourRules
}

func (v *validatorStub) Validate(ctx context.Context, residentIDs []string) ([]models.Violation, error) {
	return v.violations, nil
}

func (v *validatorStub) Enforce(ctx context.Context, residentIDs []string) error {
	for _, violation := range v.violations {
		if violation.Hard() {
			return appErrors.WithDetails(appErrors.ErrScheduleViolation, "", v.violations)
		}
	}
	return nil
}

func (v *validatorStub) Rules() DutyHourRules {
	if v.rules.MaxWeeklyHours == 0 {
		return DefaultDutyHourRules()
	}
	return v.rules
}

func scheduleFixture() (*scheduleAssignmentStub, *scheduleResidentStub, *scheduleRotationStub) {
	assignments := &scheduleAssignmentStub{byID: map[string]models.ScheduleAssignment{}}
	residents := &scheduleResidentStub{residents: map[string]models.Resident{
		"res-1": {ID: "res-1", Name: "Avery", PGYLevel: models.PGYLevelPGY2, IsActive: true},
	}}
	clinic := models.Rotation{
		ID:           "rot-clinic",
		Name:         "CLINIC",
		StartTime:    models.ClockTime{Hour: 8},
		EndTime:      models.ClockTime{Hour: 16},
		WeekdaysOnly: true,
	}
	marathon := models.Rotation{
		ID:          "rot-marathon",
		Name:        "MARATHON",
		StartTime:   models.ClockTime{Hour: 17},
		EndTime:     models.ClockTime{Hour: 11},
		IsOvernight: true,
	}
	rotations := &scheduleRotationStub{rotations: map[string]models.Rotation{
		"rot-clinic":   clinic,
		"rot-marathon": marathon,
	}}
	return assignments, residents, rotations
}

func TestScheduleUpsertCompliant(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	assignment, violations, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-clinic",
		WeekStart:  "2025-07-05",
	})
	require.NoError(t, err)
	require.Empty(t, violations)
	require.Len(t, assignments.upserted, 1)
	require.Equal(t, saturday.AddDate(0, 0, 6), assignment.WeekEnd)
	require.Equal(t, models.SourceManual, assignment.Source)
}

func TestScheduleUpsertBlockedByViolations(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	// 18h per day breaks the rolling cap; the prospective evaluation
	// rejects before anything is written.
	_, violations, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-marathon",
		WeekStart:  "2025-07-05",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrScheduleViolation.Code, appErrors.FromError(err).Code)
	require.NotEmpty(t, violations)
	require.Empty(t, assignments.upserted)
}

func TestScheduleUpsertForceCommitsAndAudits(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	audit := &auditStub{}
	validator := &validatorStub{violations: []models.Violation{{
		Code:     models.ViolationRolling7Day,
		Severity: models.SeverityHard,
	}}}
	svc := NewScheduleService(assignments, residents, rotations, validator, audit, nil)

	assignment, violations, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-marathon",
		WeekStart:  "2025-07-05",
		Force:      true,
	})
	require.NoError(t, err)
	require.NotNil(t, assignment)
	require.NotEmpty(t, violations)
	require.Len(t, assignments.upserted, 1)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionScheduleForce, audit.logs[0].Action)
}

func TestScheduleUpsertUnknownResident(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	_, _, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "missing",
		RotationID: "rot-clinic",
		WeekStart:  "2025-07-05",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleUpsertBadDate(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	_, _, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-clinic",
		WeekStart:  "07/05/2025",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestScheduleListResolvesRotations(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	assignments.existing = []models.ScheduleAssignment{{
		ID:         "asn-1",
		ResidentID: "res-1",
		RotationID: "rot-clinic",
		WeekStart:  saturday,
		WeekEnd:    saturday.AddDate(0, 0, 6),
	}}
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	items, err := svc.List(context.Background(), dto.ScheduleQuery{ResidentIDs: []string{"res-1"}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "CLINIC", items[0].Rotation.Name)
}

func TestScheduleDeleteUnknown(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestScheduleUpsertReplacesSameWeek(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	// An existing heavy assignment for the same week must not count
	// against the prospective evaluation once replaced.
	assignments.existing = []models.ScheduleAssignment{{
		ID:         "asn-old",
		ResidentID: "res-1",
		RotationID: "rot-marathon",
		WeekStart:  saturday,
		WeekEnd:    saturday.AddDate(0, 0, 6),
	}}
	svc := NewScheduleService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, nil)

	_, violations, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-clinic",
		WeekStart:  "2025-07-05",
	})
	require.NoError(t, err)
	require.Empty(t, violations)
	require.Len(t, assignments.upserted, 1)
}

func TestScheduleUpsertForceAuditsPersistedID(t *testing.T) {
	assignments, residents, rotations := scheduleFixture()
	assignments.existing = []models.ScheduleAssignment{{
		ID:         "asn-old",
		ResidentID: "res-1",
		RotationID: "rot-clinic",
		WeekStart:  saturday,
		WeekEnd:    saturday.AddDate(0, 0, 6),
	}}
	audit := &auditStub{}
	validator := &validatorStub{violations: []models.Violation{{
		Code:     models.ViolationRolling7Day,
		Severity: models.SeverityHard,
	}}}
	svc := NewScheduleService(assignments, residents, rotations, validator, audit, nil)

	assignment, _, err := svc.Upsert(context.Background(), "admin-1", dto.UpsertAssignmentRequest{
		ResidentID: "res-1",
		RotationID: "rot-marathon",
		WeekStart:  "2025-07-05",
		Force:      true,
	})
	require.NoError(t, err)
	// Replacing the week keeps the row's identity; the audit entry must
	// point at it, not at a freshly minted id.
	require.Equal(t, "asn-old", assignment.ID)
	require.Len(t, audit.logs, 1)
	require.NotNil(t, audit.logs[0].EntityID)
	require.Equal(t, "asn-old", *audit.logs[0].EntityID)
}
