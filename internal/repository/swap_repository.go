package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medrota/rota-api/internal/models"
)

const swapColumns = `id, requester_id, target_id, requester_assignment_id, target_assignment_id, status,
	requester_note, peer_confirmed_at, admin_reviewed_by, admin_reviewed_at, admin_note, created_at, updated_at`

// OutstandingSwapConstraint is the partial unique index guarding the
// one-outstanding-swap-per-(requester, assignment) invariant. A concurrent
// create that slips past the application pre-check fails here.
const OutstandingSwapConstraint = "uq_swap_outstanding"

// SwapRepository persists swap workflow data.
type SwapRepository struct {
	db *sqlx.DB
}

// NewSwapRepository constructs the repository.
func NewSwapRepository(db *sqlx.DB) *SwapRepository {
	return &SwapRepository{db: db}
}

// Create inserts a new swap request row. Unique-violation errors surface
// unwrapped so callers can map them to the duplicate-swap business error.
func (r *SwapRepository) Create(ctx context.Context, swap *models.SwapRequest) error {
	now := time.Now().UTC()
	if swap.ID == "" {
		swap.ID = uuid.NewString()
	}
	if swap.Status == "" {
		swap.Status = models.SwapStatusPending
	}
	if swap.CreatedAt.IsZero() {
		swap.CreatedAt = now
	}
	swap.UpdatedAt = now
	const query = `INSERT INTO swap_requests
	(id, requester_id, target_id, requester_assignment_id, target_assignment_id, status,
	 requester_note, peer_confirmed_at, admin_reviewed_by, admin_reviewed_at, admin_note, created_at, updated_at)
	VALUES (:id, :requester_id, :target_id, :requester_assignment_id, :target_assignment_id, :status,
	 :requester_note, :peer_confirmed_at, :admin_reviewed_by, :admin_reviewed_at, :admin_note, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, swap); err != nil {
		return err
	}
	return nil
}

// GetByID fetches a swap request.
func (r *SwapRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM swap_requests WHERE id = $1`, swapColumns)
	var swap models.SwapRequest
	if err := r.db.GetContext(ctx, &swap, query, id); err != nil {
		return nil, err
	}
	return &swap, nil
}

// FindOutstanding returns the open swap for (requester, assignment), if any.
func (r *SwapRepository) FindOutstanding(ctx context.Context, requesterID, assignmentID string) (*models.SwapRequest, error) {
	query := fmt.Sprintf(`SELECT %s FROM swap_requests
	WHERE requester_id = $1 AND requester_assignment_id = $2 AND status IN ($3, $4)`, swapColumns)
	var swap models.SwapRequest
	err := r.db.GetContext(ctx, &swap, query, requesterID, assignmentID,
		models.SwapStatusPending, models.SwapStatusPeerConfirmed)
	if err != nil {
		return nil, err
	}
	return &swap, nil
}

// List returns swap requests matching the filter (latest first).
func (r *SwapRepository) List(ctx context.Context, filter models.SwapFilter) ([]models.SwapRequest, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 6)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM swap_requests`, swapColumns))

	conditions := make([]string, 0, 2)
	if filter.ResidentID != "" {
		switch {
		case filter.AsRequester && !filter.AsTarget:
			args = append(args, filter.ResidentID)
			conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
		case filter.AsTarget && !filter.AsRequester:
			args = append(args, filter.ResidentID)
			conditions = append(conditions, fmt.Sprintf("target_id = $%d", len(args)))
		default:
			args = append(args, filter.ResidentID)
			id1 := len(args)
			args = append(args, filter.ResidentID)
			conditions = append(conditions, fmt.Sprintf("(requester_id = $%d OR target_id = $%d)", id1, len(args)))
		}
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var swaps []models.SwapRequest
	if err := r.db.SelectContext(ctx, &swaps, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list swap requests: %w", err)
	}
	return swaps, nil
}

// UpdateSwapParams groups the mutable columns for a status transition.
// ExpectedStatus guards the update so a concurrent transition cannot be
// overwritten; a guard miss returns sql.ErrNoRows.
type UpdateSwapParams struct {
	ID              string
	Status          models.SwapStatus
	ExpectedStatus  []models.SwapStatus
	PeerConfirmedAt *time.Time
	AdminReviewedBy *string
	AdminReviewedAt *time.Time
	AdminNote       *string
}

// UpdateStatus applies a guarded status transition without schedule effects.
func (r *SwapRepository) UpdateStatus(ctx context.Context, params UpdateSwapParams) error {
	query, args := buildSwapUpdate(params)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update swap status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update swap status result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Approve finalizes a peer-confirmed swap and exchanges the two
// assignments' rotation ids in a single transaction. The swap row and both
// assignment rows are locked FOR UPDATE, so a concurrent approval of a
// conflicting swap serializes behind this one or fails its status guard.
func (r *SwapRepository) Approve(ctx context.Context, swapID, adminID string, note *string) (swap *models.SwapRequest, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin approve swap: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	lockQuery := fmt.Sprintf(`SELECT %s FROM swap_requests WHERE id = $1 FOR UPDATE`, swapColumns)
	var locked models.SwapRequest
	if err = tx.GetContext(ctx, &locked, lockQuery, swapID); err != nil {
		return nil, err
	}
	if locked.Status != models.SwapStatusPeerConfirmed {
		err = sql.ErrNoRows
		return nil, err
	}

	var a, b models.ScheduleAssignment
	const assignmentLock = `SELECT ` + assignmentColumns + ` FROM schedule_assignments WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &a, assignmentLock, locked.RequesterAssignmentID); err != nil {
		return nil, fmt.Errorf("lock requester assignment: %w", err)
	}
	if err = tx.GetContext(ctx, &b, assignmentLock, locked.TargetAssignmentID); err != nil {
		return nil, fmt.Errorf("lock target assignment: %w", err)
	}

	now := time.Now().UTC()
	const swapRotation = `UPDATE schedule_assignments SET rotation_id = $1, updated_at = $2 WHERE id = $3`
	if _, err = tx.ExecContext(ctx, swapRotation, b.RotationID, now, a.ID); err != nil {
		return nil, fmt.Errorf("swap requester rotation: %w", err)
	}
	if _, err = tx.ExecContext(ctx, swapRotation, a.RotationID, now, b.ID); err != nil {
		return nil, fmt.Errorf("swap target rotation: %w", err)
	}

	const finalize = `UPDATE swap_requests
	SET status = $1, admin_reviewed_by = $2, admin_reviewed_at = $3, admin_note = $4, updated_at = $5
	WHERE id = $6`
	if _, err = tx.ExecContext(ctx, finalize,
		models.SwapStatusApproved, adminID, now, note, now, swapID); err != nil {
		return nil, fmt.Errorf("finalize swap: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approve swap: %w", err)
	}

	locked.Status = models.SwapStatusApproved
	locked.AdminReviewedBy = &adminID
	locked.AdminReviewedAt = &now
	locked.AdminNote = note
	locked.UpdatedAt = now
	return &locked, nil
}

func buildSwapUpdate(params UpdateSwapParams) (string, []interface{}) {
	now := time.Now().UTC()
	builder := strings.Builder{}
	args := []interface{}{params.Status, now}
	builder.WriteString("UPDATE swap_requests SET status = $1, updated_at = $2")

	if params.PeerConfirmedAt != nil {
		args = append(args, *params.PeerConfirmedAt)
		builder.WriteString(fmt.Sprintf(", peer_confirmed_at = $%d", len(args)))
	}
	if params.AdminReviewedBy != nil {
		args = append(args, *params.AdminReviewedBy)
		builder.WriteString(fmt.Sprintf(", admin_reviewed_by = $%d", len(args)))
	}
	if params.AdminReviewedAt != nil {
		args = append(args, *params.AdminReviewedAt)
		builder.WriteString(fmt.Sprintf(", admin_reviewed_at = $%d", len(args)))
	}
	if params.AdminNote != nil {
		args = append(args, *params.AdminNote)
		builder.WriteString(fmt.Sprintf(", admin_note = $%d", len(args)))
	}

	args = append(args, params.ID)
	builder.WriteString(fmt.Sprintf(" WHERE id = $%d", len(args)))

	if len(params.ExpectedStatus) > 0 {
		placeholders := make([]string, len(params.ExpectedStatus))
		for i, status := range params.ExpectedStatus {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		builder.WriteString(fmt.Sprintf(" AND status IN (%s)", strings.Join(placeholders, ",")))
	}

	return builder.String(), args
}
