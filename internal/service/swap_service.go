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
	"github.com/medrota/rota-api/internal/repository"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type swapStore interface {
	Create(ctx context.Context, swap *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	FindOutstanding(ctx context.Context, requesterID, assignmentID string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error)
	UpdateStatus(ctx context.Context, params repository.UpdateSwapParams) error
	Approve(ctx context.Context, swapID, adminID string, note *string) (*models.SwapRequest, error)
}

type swapResidentStore interface {
	GetByID(ctx context.Context, id string) (*models.Resident, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Resident, error)
	ListSwapCandidates(ctx context.Context, excludeID, academicYearID string, levels []models.PGYLevel) ([]models.Resident, error)
}

type swapAssignmentStore interface {
	GetByID(ctx context.Context, id string) (*models.ScheduleAssignment, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]models.ScheduleAssignment, error)
	ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error)
}

type swapRotationStore interface {
	GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SwapService governs the shift swap workflow: a resident requests a
// swap, the peer confirms, an admin approves. Only approval mutates the
// schedule, and only from peer_confirmed, exactly once.
//
// Approval deliberately does not re-run the duty-hour validator on the two
// affected residents; admins judge the hours impact when reviewing.
type SwapService struct {
	swaps       swapStore
	residents   swapResidentStore
	assignments swapAssignmentStore
	rotations   swapRotationStore
	audit       auditLogger
	logger      *zap.Logger
}

// NewSwapService constructs the service.
func NewSwapService(swaps swapStore, residents swapResidentStore, assignments swapAssignmentStore, rotations swapRotationStore, audit auditLogger, logger *zap.Logger) *SwapService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SwapService{
		swaps:       swaps,
		residents:   residents,
		assignments: assignments,
		rotations:   rotations,
		audit:       audit,
		logger:      logger,
	}
}

// Create opens a swap request in pending status after checking every
// precondition. Each check fails with its own distinguishable reason.
func (s *SwapService) Create(ctx context.Context, requesterID string, req dto.CreateSwapRequest) (*models.SwapRequest, error) {
	if requesterID == req.TargetID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot swap with yourself")
	}

	residents, err := s.residents.GetByIDs(ctx, []string{requesterID, req.TargetID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load residents")
	}
	requester, ok := residents[requesterID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "requester not found")
	}
	target, ok := residents[req.TargetID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "target resident not found")
	}

	if !models.CanSwapLevels(requester.PGYLevel, target.PGYLevel) {
		return nil, appErrors.Clone(appErrors.ErrIncompatibleLevels,
			fmt.Sprintf("PGY level mismatch: %s cannot swap with %s", requester.PGYLevel, target.PGYLevel))
	}

	assignments, err := s.assignments.GetByIDs(ctx, []string{req.RequesterAssignmentID, req.TargetAssignmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	requesterAssignment, ok := assignments[req.RequesterAssignmentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "requester's assignment not found")
	}
	targetAssignment, ok := assignments[req.TargetAssignmentID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "target's assignment not found")
	}

	if requesterAssignment.ResidentID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "requester assignment does not belong to requester")
	}
	if targetAssignment.ResidentID != req.TargetID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "target assignment does not belong to target")
	}

	// Application pre-check; the partial unique index backs it up against
	// concurrent creates.
	if _, err := s.swaps.FindOutstanding(ctx, requesterID, req.RequesterAssignmentID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrDuplicateSwap, "")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check outstanding swaps")
	}

	swap := &models.SwapRequest{
		RequesterID:           requesterID,
		TargetID:              req.TargetID,
		RequesterAssignmentID: req.RequesterAssignmentID,
		TargetAssignmentID:    req.TargetAssignmentID,
		Status:                models.SwapStatusPending,
		RequesterNote:         optionalString(req.Note),
	}
	if err := s.swaps.Create(ctx, swap); err != nil {
		if repository.IsUniqueViolation(err, repository.OutstandingSwapConstraint) {
			return nil, appErrors.Clone(appErrors.ErrDuplicateSwap, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
	}

	s.logger.Info("swap request created",
		zap.String("swap_id", swap.ID),
		zap.String("requester_id", requesterID),
		zap.String("target_id", req.TargetID),
	)
	return swap, nil
}

// Confirm is the target resident's acknowledgment, moving a pending swap
// to peer_confirmed.
func (s *SwapService) Confirm(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.TargetID != actorID {
		return nil, appErrors.Clone(appErrors.ErrWrongActor, "only the swap target may confirm")
	}
	if swap.Status != models.SwapStatusPending {
		return nil, appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("cannot confirm swap in %s status", swap.Status))
	}

	now := time.Now().UTC()
	err = s.swaps.UpdateStatus(ctx, repository.UpdateSwapParams{
		ID:              swapID,
		Status:          models.SwapStatusPeerConfirmed,
		ExpectedStatus:  []models.SwapStatus{models.SwapStatusPending},
		PeerConfirmedAt: &now,
	})
	if err != nil {
		return nil, s.transitionError(err, "confirm")
	}

	swap.Status = models.SwapStatusPeerConfirmed
	swap.PeerConfirmedAt = &now
	return swap, nil
}

// Decline is the target's rejection, available only before confirmation;
// once the peer has agreed, undoing the swap is an admin action.
func (s *SwapService) Decline(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.TargetID != actorID {
		return nil, appErrors.Clone(appErrors.ErrWrongActor, "only the swap target may decline")
	}
	if swap.Status != models.SwapStatusPending {
		return nil, appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("cannot decline swap in %s status", swap.Status))
	}

	err = s.swaps.UpdateStatus(ctx, repository.UpdateSwapParams{
		ID:             swapID,
		Status:         models.SwapStatusRejected,
		ExpectedStatus: []models.SwapStatus{models.SwapStatusPending},
	})
	if err != nil {
		return nil, s.transitionError(err, "decline")
	}

	swap.Status = models.SwapStatusRejected
	return swap, nil
}

// Cancel lets the requester withdraw an open request. A peer-confirmed
// cancellation never mutates either assignment.
func (s *SwapService) Cancel(ctx context.Context, swapID, actorID string) (*models.SwapRequest, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.RequesterID != actorID {
		return nil, appErrors.Clone(appErrors.ErrWrongActor, "only the requester may cancel")
	}
	if !swap.Status.Outstanding() {
		return nil, appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("cannot cancel swap in %s status", swap.Status))
	}

	err = s.swaps.UpdateStatus(ctx, repository.UpdateSwapParams{
		ID:             swapID,
		Status:         models.SwapStatusCancelled,
		ExpectedStatus: []models.SwapStatus{models.SwapStatusPending, models.SwapStatusPeerConfirmed},
	})
	if err != nil {
		return nil, s.transitionError(err, "cancel")
	}

	swap.Status = models.SwapStatusCancelled
	return swap, nil
}

// Approve finalizes a peer-confirmed swap: the two assignments exchange
// rotation ids and the request becomes approved, atomically. Approving the
// same request twice fails on the status check.
func (s *SwapService) Approve(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if swap.Status != models.SwapStatusPeerConfirmed {
		return nil, appErrors.Clone(appErrors.ErrWrongStatus,
			fmt.Sprintf("cannot approve swap in %s status, must be peer_confirmed", swap.Status))
	}

	approved, err := s.swaps.Approve(ctx, swapID, adminID, optionalString(req.Note))
	if err != nil {
		return nil, s.transitionError(err, "approve")
	}

	s.emitAudit(ctx, adminID, models.AuditActionSwapApprove, swapID, swapAuditValue{
		Status: string(models.SwapStatusPeerConfirmed),
	}, swapAuditValue{
		Status:      string(models.SwapStatusApproved),
		RequesterID: approved.RequesterID,
		TargetID:    approved.TargetID,
	})

	s.logger.Info("swap approved",
		zap.String("swap_id", swapID),
		zap.String("admin_id", adminID),
	)
	return approved, nil
}

// Reject is the admin's refusal, valid from pending or peer_confirmed.
func (s *SwapService) Reject(ctx context.Context, swapID, adminID string, req dto.ReviewSwapRequest) (*models.SwapRequest, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}
	if !swap.Status.Outstanding() {
		return nil, appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("cannot reject swap in %s status", swap.Status))
	}

	oldStatus := swap.Status
	now := time.Now().UTC()
	note := optionalString(req.Note)
	err = s.swaps.UpdateStatus(ctx, repository.UpdateSwapParams{
		ID:              swapID,
		Status:          models.SwapStatusRejected,
		ExpectedStatus:  []models.SwapStatus{models.SwapStatusPending, models.SwapStatusPeerConfirmed},
		AdminReviewedBy: &adminID,
		AdminReviewedAt: &now,
		AdminNote:       note,
	})
	if err != nil {
		return nil, s.transitionError(err, "reject")
	}

	s.emitAudit(ctx, adminID, models.AuditActionSwapReject, swapID, swapAuditValue{
		Status: string(oldStatus),
	}, swapAuditValue{
		Status:    string(models.SwapStatusRejected),
		AdminNote: req.Note,
	})

	swap.Status = models.SwapStatusRejected
	swap.AdminReviewedBy = &adminID
	swap.AdminReviewedAt = &now
	swap.AdminNote = note
	return swap, nil
}

// List returns swap requests visible to the query.
func (s *SwapService) List(ctx context.Context, query dto.SwapQuery) ([]models.SwapRequest, error) {
	swaps, err := s.swaps.List(ctx, models.SwapFilter{
		ResidentID:  query.ResidentID,
		AsRequester: query.AsRequester,
		AsTarget:    query.AsTarget,
		Status:      query.Status,
		Limit:       query.Limit,
		Offset:      query.Offset,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap requests")
	}
	return swaps, nil
}

// GetDetail returns a swap with both parties and assignments resolved.
func (s *SwapService) GetDetail(ctx context.Context, swapID string) (*dto.SwapDetail, error) {
	swap, err := s.load(ctx, swapID)
	if err != nil {
		return nil, err
	}

	detail := &dto.SwapDetail{Swap: *swap}

	residents, err := s.residents.GetByIDs(ctx, []string{swap.RequesterID, swap.TargetID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load residents")
	}
	if requester, ok := residents[swap.RequesterID]; ok {
		detail.Requester = &dto.SwapParty{ID: requester.ID, Name: requester.Name, PGYLevel: requester.PGYLevel}
	}
	if target, ok := residents[swap.TargetID]; ok {
		detail.Target = &dto.SwapParty{ID: target.ID, Name: target.Name, PGYLevel: target.PGYLevel}
	}

	assignments, err := s.assignments.GetByIDs(ctx, []string{swap.RequesterAssignmentID, swap.TargetAssignmentID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	rotationIDs := make([]string, 0, 2)
	for _, assignment := range assignments {
		rotationIDs = append(rotationIDs, assignment.RotationID)
	}
	rotations, err := s.rotations.GetByIDs(ctx, rotationIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	if assignment, ok := assignments[swap.RequesterAssignmentID]; ok {
		detail.RequesterAssignment = swapAssignmentView(assignment, rotations)
	}
	if assignment, ok := assignments[swap.TargetAssignmentID]; ok {
		detail.TargetAssignment = swapAssignmentView(assignment, rotations)
	}
	return detail, nil
}

// EligibleTargets finds the active residents a requester could swap a
// given assignment with: same academic year, compatible PGY group, and an
// assignment for the same week. Unknown requester or assignment yields an
// empty list rather than an error.
func (s *SwapService) EligibleTargets(ctx context.Context, requesterID, assignmentID string) ([]dto.EligibleTarget, error) {
	requester, err := s.residents.GetByID(ctx, requesterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []dto.EligibleTarget{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requester")
	}
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []dto.EligibleTarget{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}

	allowed := models.SwapGroups[requester.PGYLevel]
	levels := make([]models.PGYLevel, 0, len(allowed))
	for level := range allowed {
		levels = append(levels, level)
	}

	academicYearID := ""
	if requester.AcademicYearID != nil {
		academicYearID = *requester.AcademicYearID
	}
	candidates, err := s.residents.ListSwapCandidates(ctx, requesterID, academicYearID, levels)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	if len(candidates) == 0 {
		return []dto.EligibleTarget{}, nil
	}

	candidateIDs := make([]string, len(candidates))
	for i, candidate := range candidates {
		candidateIDs[i] = candidate.ID
	}
	weekStart := assignment.WeekStart
	weekAssignments, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{
		ResidentIDs: candidateIDs,
		WeekStart:   &weekStart,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate assignments")
	}

	byResident := make(map[string]models.ScheduleAssignment, len(weekAssignments))
	rotationIDs := make([]string, 0, len(weekAssignments))
	for _, weekAssignment := range weekAssignments {
		byResident[weekAssignment.ResidentID] = weekAssignment
		rotationIDs = append(rotationIDs, weekAssignment.RotationID)
	}
	rotations, err := s.rotations.GetByIDs(ctx, rotationIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	targets := make([]dto.EligibleTarget, 0, len(candidates))
	for _, candidate := range candidates {
		candidateAssignment, ok := byResident[candidate.ID]
		if !ok {
			continue
		}
		rotationName := ""
		if rotation, ok := rotations[candidateAssignment.RotationID]; ok {
			rotationName = rotation.Name
		}
		targets = append(targets, dto.EligibleTarget{
			ResidentID:   candidate.ID,
			ResidentName: candidate.Name,
			PGYLevel:     candidate.PGYLevel,
			AssignmentID: candidateAssignment.ID,
			RotationName: rotationName,
			WeekStart:    candidateAssignment.WeekStart,
		})
	}
	return targets, nil
}

func (s *SwapService) load(ctx context.Context, swapID string) (*models.SwapRequest, error) {
	swap, err := s.swaps.GetByID(ctx, swapID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "swap request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	return swap, nil
}

// transitionError maps a guarded-update miss onto the wrong-status error;
// the row was transitioned concurrently between our read and write.
func (s *SwapService) transitionError(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrWrongStatus, fmt.Sprintf("swap was modified concurrently, cannot %s", op))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s swap", op))
}

type swapAuditValue struct {
	Status      string `json:"status"`
	RequesterID string `json:"requester_id,omitempty"`
	TargetID    string `json:"target_id,omitempty"`
	AdminNote   string `json:"admin_note,omitempty"`
}

func (s *SwapService) emitAudit(ctx context.Context, adminID, action, swapID string, oldValue, newValue swapAuditValue) {
	if s.audit == nil {
		return
	}
	entityType := "swap_request"
	oldJSON, _ := json.Marshal(oldValue)
	newJSON, _ := json.Marshal(newValue)
	log := &models.AuditLog{
		AdminID:    &adminID,
		Action:     action,
		EntityType: &entityType,
		EntityID:   &swapID,
		OldValue:   oldJSON,
		NewValue:   newJSON,
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func swapAssignmentView(assignment models.ScheduleAssignment, rotations map[string]models.Rotation) *dto.SwapAssignment {
	view := &dto.SwapAssignment{
		ID:        assignment.ID,
		WeekStart: assignment.WeekStart,
		WeekEnd:   assignment.WeekEnd,
	}
	if rotation, ok := rotations[assignment.RotationID]; ok {
		view.RotationName = rotation.Name
	}
	return view
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
