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

const dayOffColumns = `id, resident_id, type_id, start_date, end_date, notes, approved_by, approved_at, source, created_at`

// DayOffRepository persists absence records.
type DayOffRepository struct {
	db *sqlx.DB
}

// NewDayOffRepository constructs the repository.
func NewDayOffRepository(db *sqlx.DB) *DayOffRepository {
	return &DayOffRepository{db: db}
}

// Create inserts a day-off range.
func (r *DayOffRepository) Create(ctx context.Context, dayOff *models.DayOff) error {
	if dayOff.ID == "" {
		dayOff.ID = uuid.NewString()
	}
	if dayOff.Source == "" {
		dayOff.Source = models.SourceManual
	}
	if dayOff.CreatedAt.IsZero() {
		dayOff.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO days_off
	(id, resident_id, type_id, start_date, end_date, notes, approved_by, approved_at, source, created_at)
	VALUES (:id, :resident_id, :type_id, :start_date, :end_date, :notes, :approved_by, :approved_at, :source, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, dayOff); err != nil {
		return fmt.Errorf("create day off: %w", err)
	}
	return nil
}

// GetByID fetches one day-off record.
func (r *DayOffRepository) GetByID(ctx context.Context, id string) (*models.DayOff, error) {
	query := fmt.Sprintf(`SELECT %s FROM days_off WHERE id = $1`, dayOffColumns)
	var dayOff models.DayOff
	if err := r.db.GetContext(ctx, &dayOff, query, id); err != nil {
		return nil, err
	}
	return &dayOff, nil
}

// List returns day-off records matching the filter.
func (r *DayOffRepository) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM days_off`, dayOffColumns))

	conditions := make([]string, 0, 3)
	if filter.ResidentID != "" {
		args = append(args, filter.ResidentID)
		conditions = append(conditions, fmt.Sprintf("resident_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("end_date >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("start_date <= $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY start_date ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var daysOff []models.DayOff
	if err := r.db.SelectContext(ctx, &daysOff, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list days off: %w", err)
	}
	return daysOff, nil
}

// Approve stamps a day-off record with the approving admin.
func (r *DayOffRepository) Approve(ctx context.Context, id, adminID string, approvedAt time.Time) error {
	const query = `UPDATE days_off SET approved_by = $1, approved_at = $2 WHERE id = $3 AND approved_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, adminID, approvedAt, id)
	if err != nil {
		return fmt.Errorf("approve day off: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("approve day off result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a day-off record.
func (r *DayOffRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM days_off WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete day off: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete day off result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListTypes returns the configured absence categories.
func (r *DayOffRepository) ListTypes(ctx context.Context) ([]models.DayOffType, error) {
	const query = `SELECT id, name, color, is_system, created_at FROM day_off_types ORDER BY name ASC`
	var types []models.DayOffType
	if err := r.db.SelectContext(ctx, &types, query); err != nil {
		return nil, fmt.Errorf("list day off types: %w", err)
	}
	return types, nil
}

// GetTypesByIDs fetches absence categories keyed by identifier.
func (r *DayOffRepository) GetTypesByIDs(ctx context.Context, ids []string) (map[string]models.DayOffType, error) {
	if len(ids) == 0 {
		return map[string]models.DayOffType{}, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, color, is_system, created_at FROM day_off_types WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build day off type lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.DayOffType
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get day off types: %w", err)
	}
	byID := make(map[string]models.DayOffType, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}
