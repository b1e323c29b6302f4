package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type scheduleAssignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.ScheduleAssignment, error)
	ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error)
	Upsert(ctx context.Context, assignment *models.ScheduleAssignment) error
	Delete(ctx context.Context, id string) error
}

type scheduleResidentStore interface {
	GetByID(ctx context.Context, id string) (*models.Resident, error)
}

type scheduleRotationStore interface {
	GetByID(ctx context.Context, id string) (*models.Rotation, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error)
}

type scheduleValidator interface {
	Validate(ctx context.Context, residentIDs []string) ([]models.Violation, error)
	Enforce(ctx context.Context, residentIDs []string) error
	Rules() DutyHourRules
}

// ScheduleService manages the weekly roster. Writes pass through the
// duty-hour validator; a force flag commits anyway and records the
// overridden violations in the audit trail.
type ScheduleService struct {
	assignments scheduleAssignmentStore
	residents   scheduleResidentStore
	rotations   scheduleRotationStore
	validator   scheduleValidator
	audit       auditLogger
	logger      *zap.Logger
}

// NewScheduleService constructs the service.
func NewScheduleService(assignments scheduleAssignmentStore, residents scheduleResidentStore, rotations scheduleRotationStore, validator scheduleValidator, audit auditLogger, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{
		assignments: assignments,
		residents:   residents,
		rotations:   rotations,
		validator:   validator,
		audit:       audit,
		logger:      logger,
	}
}

// List returns assignments matching the query with rotations resolved.
func (s *ScheduleService) List(ctx context.Context, query dto.ScheduleQuery) ([]dto.AssignmentItem, error) {
	assignments, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{
		ResidentIDs: query.ResidentIDs,
		From:        query.From,
		To:          query.To,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
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

	items := make([]dto.AssignmentItem, 0, len(assignments))
	for _, assignment := range assignments {
		items = append(items, dto.AssignmentItem{
			Assignment: assignment,
			Rotation:   rotations[assignment.RotationID],
		})
	}
	return items, nil
}

// Upsert creates or replaces one resident's assignment for a week, then
// re-validates that resident's duty hours. Without force, violations roll
// the write back behind a failed enforcement; with force, the write stands
// and the override is audited with the violation list.
func (s *ScheduleService) Upsert(ctx context.Context, adminID string, req dto.UpsertAssignmentRequest) (*models.ScheduleAssignment, []models.Violation, error) {
	weekStart, err := time.Parse("2006-01-02", req.WeekStart)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "weekStart must be YYYY-MM-DD")
	}

	resident, err := s.residents.GetByID(ctx, req.ResidentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "resident not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resident")
	}
	if _, err := s.rotations.GetByID(ctx, req.RotationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "rotation not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation")
	}

	assignment := &models.ScheduleAssignment{
		ResidentID:     resident.ID,
		RotationID:     req.RotationID,
		WeekStart:      weekStart,
		WeekEnd:        weekStart.AddDate(0, 0, 6),
		AcademicYearID: resident.AcademicYearID,
		Source:         models.SourceManual,
	}

	if !req.Force {
		// Evaluate against the prospective schedule: current assignments
		// with this week's entry swapped in.
		violations, err := s.previewViolations(ctx, assignment)
		if err != nil {
			return nil, nil, err
		}
		if hasHard(violations) {
			return nil, violations, appErrors.WithDetails(appErrors.ErrScheduleViolation,
				fmt.Sprintf("schedule violates duty-hour rules (%d violations)", len(violations)),
				violations,
			)
		}
	}

	if err := s.assignments.Upsert(ctx, assignment); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save assignment")
	}

	var forced []models.Violation
	if req.Force {
		forced, err = s.validator.Validate(ctx, []string{resident.ID})
		if err != nil {
			s.logger.Warn("post-commit validation failed", zap.Error(err))
		}
		if hasHard(forced) {
			s.emitForceAudit(ctx, adminID, assignment.ID, forced)
			s.logger.Warn("assignment committed despite violations",
				zap.String("resident_id", resident.ID),
				zap.Int("violations", len(forced)),
			)
		}
	}

	return assignment, forced, nil
}

// Delete removes one assignment.
func (s *ScheduleService) Delete(ctx context.Context, id string) error {
	if err := s.assignments.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete assignment")
	}
	return nil
}

// Validate runs the duty-hour validator for the named residents.
func (s *ScheduleService) Validate(ctx context.Context, residentIDs []string) ([]models.Violation, error) {
	return s.validator.Validate(ctx, residentIDs)
}

// previewViolations evaluates the resident's schedule as it would look
// after the write, without touching the database.
func (s *ScheduleService) previewViolations(ctx context.Context, candidate *models.ScheduleAssignment) ([]models.Violation, error) {
	existing, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{
		ResidentIDs: []string{candidate.ResidentID},
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	prospective := make([]models.ScheduleAssignment, 0, len(existing)+1)
	for _, assignment := range existing {
		if assignment.WeekStart.Equal(candidate.WeekStart) {
			continue
		}
		prospective = append(prospective, assignment)
	}
	prospective = append(prospective, *candidate)

	rotationIDs := make([]string, 0, len(prospective))
	seen := make(map[string]struct{}, len(prospective))
	for _, assignment := range prospective {
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

	return EvaluateSchedule(s.validator.Rules(), prospective, rotations), nil
}

func (s *ScheduleService) emitForceAudit(ctx context.Context, adminID, assignmentID string, violations []models.Violation) {
	if s.audit == nil {
		return
	}
	entityType := "schedule_assignment"
	newJSON := marshalViolations(violations)
	log := &models.AuditLog{
		AdminID:    &adminID,
		Action:     models.AuditActionScheduleForce,
		EntityType: &entityType,
		EntityID:   &assignmentID,
		NewValue:   newJSON,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func marshalViolations(violations []models.Violation) []byte {
	data, _ := json.Marshal(violations)
	return data
}

func hasHard(violations []models.Violation) bool {
	for _, v := range violations {
		if v.Hard() {
			return true
		}
	}
	return false
}
