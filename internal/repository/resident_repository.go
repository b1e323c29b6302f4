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

const residentColumns = `id, name, email, pgy_level, calendar_token, academic_year_id, is_active, created_at`

// ResidentRepository persists resident roster data.
type ResidentRepository struct {
	db *sqlx.DB
}

// NewResidentRepository constructs the repository.
func NewResidentRepository(db *sqlx.DB) *ResidentRepository {
	return &ResidentRepository{db: db}
}

// Create inserts a new resident row.
func (r *ResidentRepository) Create(ctx context.Context, resident *models.Resident) error {
	if resident.ID == "" {
		resident.ID = uuid.NewString()
	}
	if resident.CalendarToken == "" {
		resident.CalendarToken = uuid.NewString()
	}
	if resident.CreatedAt.IsZero() {
		resident.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO residents
	(id, name, email, pgy_level, calendar_token, academic_year_id, is_active, created_at)
	VALUES (:id, :name, :email, :pgy_level, :calendar_token, :academic_year_id, :is_active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, resident); err != nil {
		return fmt.Errorf("create resident: %w", err)
	}
	return nil
}

// GetByID fetches a resident by identifier.
func (r *ResidentRepository) GetByID(ctx context.Context, id string) (*models.Resident, error) {
	query := fmt.Sprintf(`SELECT %s FROM residents WHERE id = $1`, residentColumns)
	var resident models.Resident
	if err := r.db.GetContext(ctx, &resident, query, id); err != nil {
		return nil, err
	}
	return &resident, nil
}

// GetByIDs fetches several residents keyed by identifier.
func (r *ResidentRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Resident, error) {
	if len(ids) == 0 {
		return map[string]models.Resident{}, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM residents WHERE id IN (?)`, residentColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build resident lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.Resident
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get residents: %w", err)
	}
	byID := make(map[string]models.Resident, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// GetByCalendarToken resolves a resident from a calendar feed token.
func (r *ResidentRepository) GetByCalendarToken(ctx context.Context, token string) (*models.Resident, error) {
	query := fmt.Sprintf(`SELECT %s FROM residents WHERE calendar_token = $1`, residentColumns)
	var resident models.Resident
	if err := r.db.GetContext(ctx, &resident, query, token); err != nil {
		return nil, err
	}
	return &resident, nil
}

// List returns residents matching the filter, ordered by name.
func (r *ResidentRepository) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 4)
	builder.WriteString(fmt.Sprintf(`SELECT %s FROM residents`, residentColumns))

	conditions := make([]string, 0, 3)
	if len(filter.PGYLevels) > 0 {
		placeholders := make([]string, len(filter.PGYLevels))
		for i, level := range filter.PGYLevels {
			args = append(args, level)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("pgy_level IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.AcademicYearID != "" {
		args = append(args, filter.AcademicYearID)
		conditions = append(conditions, fmt.Sprintf("academic_year_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY name ASC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var residents []models.Resident
	if err := r.db.SelectContext(ctx, &residents, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list residents: %w", err)
	}
	return residents, nil
}

// ListSwapCandidates returns active residents in the given academic year
// whose PGY level is one of the allowed levels, excluding the requester.
// An empty academicYearID matches only residents with no academic year,
// never the whole program.
func (r *ResidentRepository) ListSwapCandidates(ctx context.Context, excludeID, academicYearID string, levels []models.PGYLevel) ([]models.Resident, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	args := []interface{}{excludeID}
	placeholders := make([]string, len(levels))
	for i, level := range levels {
		args = append(args, level)
		placeholders[i] = fmt.Sprintf("$%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s FROM residents
	WHERE id <> $1 AND is_active = TRUE AND pgy_level IN (%s)`, residentColumns, strings.Join(placeholders, ","))
	if academicYearID != "" {
		args = append(args, academicYearID)
		query += fmt.Sprintf(" AND academic_year_id = $%d", len(args))
	} else {
		query += " AND academic_year_id IS NULL"
	}
	query += " ORDER BY name ASC"

	var residents []models.Resident
	if err := r.db.SelectContext(ctx, &residents, query, args...); err != nil {
		return nil, fmt.Errorf("list swap candidates: %w", err)
	}
	return residents, nil
}
