package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medrota/rota-api/internal/models"
)

const assignmentColumns = `id, resident_id, rotation_id, week_start, week_end, academic_year_id, source, created_at, updated_at`

// AssignmentRepository persists weekly rotation assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// GetByID fetches one assignment.
func (r *AssignmentRepository) GetByID(ctx context.Context, id string) (*models.ScheduleAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM schedule_assignments WHERE id = $1`, assignmentColumns)
	var assignment models.ScheduleAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, err
	}
	return &assignment, nil
}

// GetByIDs fetches several assignments keyed by identifier.
func (r *AssignmentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.ScheduleAssignment, error) {
	if len(ids) == 0 {
		return map[string]models.ScheduleAssignment{}, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM schedule_assignments WHERE id IN (?)`, assignmentColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build assignment lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}
	byID := make(map[string]models.ScheduleAssignment, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// ListByResidents returns every assignment for the given residents,
// optionally bounded by week_start range, ordered by week_start.
func (r *AssignmentRepository) ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error) {
	if len(filter.ResidentIDs) == 0 {
		return nil, nil
	}
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)

	placeholders := make([]string, len(filter.ResidentIDs))
	for i, id := range filter.ResidentIDs {
		args = append(args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM schedule_assignments WHERE resident_id IN (%s)`,
		assignmentColumns, strings.Join(placeholders, ",")))

	if filter.WeekStart != nil {
		args = append(args, *filter.WeekStart)
		builder.WriteString(fmt.Sprintf(" AND week_start = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		builder.WriteString(fmt.Sprintf(" AND week_start >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		builder.WriteString(fmt.Sprintf(" AND week_start <= $%d", len(args)))
	}
	builder.WriteString(" ORDER BY week_start ASC, resident_id ASC")

	if filter.Limit > 0 {
		builder.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			builder.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// Upsert creates or replaces the assignment for (resident, week_start).
// On conflict the existing row keeps its id and created_at; RETURNING
// reports the persisted identity so callers never hold a minted id that
// points at no row.
func (r *AssignmentRepository) Upsert(ctx context.Context, assignment *models.ScheduleAssignment) error {
	now := time.Now().UTC()
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.Source == "" {
		assignment.Source = models.SourceManual
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO schedule_assignments
	(id, resident_id, rotation_id, week_start, week_end, academic_year_id, source, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (resident_id, week_start) DO UPDATE SET
		rotation_id = EXCLUDED.rotation_id,
		week_end = EXCLUDED.week_end,
		source = EXCLUDED.source,
		updated_at = EXCLUDED.updated_at
	RETURNING id, created_at`
	err := r.db.QueryRowxContext(ctx, query,
		assignment.ID, assignment.ResidentID, assignment.RotationID,
		assignment.WeekStart, assignment.WeekEnd, assignment.AcademicYearID,
		assignment.Source, assignment.CreatedAt, assignment.UpdatedAt,
	).Scan(&assignment.ID, &assignment.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert assignment: %w", err)
	}
	return nil
}

// BulkUpsert writes a batch of assignments inside one transaction. Used by
// the Excel importer so a failed sheet leaves the schedule untouched.
func (r *AssignmentRepository) BulkUpsert(ctx context.Context, assignments []models.ScheduleAssignment) (err error) {
	if len(assignments) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk upsert assignments: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const query = `INSERT INTO schedule_assignments
	(id, resident_id, rotation_id, week_start, week_end, academic_year_id, source, created_at, updated_at)
	VALUES (:id, :resident_id, :rotation_id, :week_start, :week_end, :academic_year_id, :source, :created_at, :updated_at)
	ON CONFLICT (resident_id, week_start) DO UPDATE SET
		rotation_id = EXCLUDED.rotation_id,
		week_end = EXCLUDED.week_end,
		source = EXCLUDED.source,
		updated_at = EXCLUDED.updated_at`

	now := time.Now().UTC()
	for i := range assignments {
		if assignments[i].ID == "" {
			assignments[i].ID = uuid.NewString()
		}
		if assignments[i].CreatedAt.IsZero() {
			assignments[i].CreatedAt = now
		}
		assignments[i].UpdatedAt = now
		if _, err = tx.NamedExecContext(ctx, query, assignments[i]); err != nil {
			return fmt.Errorf("bulk upsert assignment %d: %w", i, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk upsert assignments: %w", err)
	}
	return nil
}

// Delete removes one assignment.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM schedule_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete assignment result: %w", err)
	}
	if affected == 0 {
		return sqlNoRows()
	}
	return nil
}
