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

const rotationColumns = `id, name, display_name, color, location, start_time, end_time, is_overnight, weekdays_only, generates_events, created_at`

// RotationRepository persists rotation type configuration.
type RotationRepository struct {
	db *sqlx.DB
}

// NewRotationRepository constructs the repository.
func NewRotationRepository(db *sqlx.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// Create inserts a rotation type.
func (r *RotationRepository) Create(ctx context.Context, rotation *models.Rotation) error {
	if rotation.ID == "" {
		rotation.ID = uuid.NewString()
	}
	if rotation.CreatedAt.IsZero() {
		rotation.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO rotations
	(id, name, display_name, color, location, start_time, end_time, is_overnight, weekdays_only, generates_events, created_at)
	VALUES (:id, :name, :display_name, :color, :location, :start_time, :end_time, :is_overnight, :weekdays_only, :generates_events, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rotation); err != nil {
		return fmt.Errorf("create rotation: %w", err)
	}
	return nil
}

// GetByID fetches a rotation type.
func (r *RotationRepository) GetByID(ctx context.Context, id string) (*models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations WHERE id = $1`, rotationColumns)
	var rotation models.Rotation
	if err := r.db.GetContext(ctx, &rotation, query, id); err != nil {
		return nil, err
	}
	return &rotation, nil
}

// List returns all rotation types ordered by name.
func (r *RotationRepository) List(ctx context.Context) ([]models.Rotation, error) {
	query := fmt.Sprintf(`SELECT %s FROM rotations ORDER BY name ASC`, rotationColumns)
	var rotations []models.Rotation
	if err := r.db.SelectContext(ctx, &rotations, query); err != nil {
		return nil, fmt.Errorf("list rotations: %w", err)
	}
	return rotations, nil
}

// GetByIDs fetches several rotations keyed by identifier.
func (r *RotationRepository) GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error) {
	if len(ids) == 0 {
		return map[string]models.Rotation{}, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM rotations WHERE id IN (?)`, rotationColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build rotation lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.Rotation
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get rotations: %w", err)
	}
	byID := make(map[string]models.Rotation, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return byID, nil
}

// GetByNames resolves rotations by their short names, keyed by upper-cased
// name. Used by the Excel importer to match grid cells.
func (r *RotationRepository) GetByNames(ctx context.Context, names []string) (map[string]models.Rotation, error) {
	if len(names) == 0 {
		return map[string]models.Rotation{}, nil
	}
	upper := make([]string, len(names))
	for i, name := range names {
		upper[i] = strings.ToUpper(strings.TrimSpace(name))
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM rotations WHERE UPPER(name) IN (?)`, rotationColumns), upper)
	if err != nil {
		return nil, fmt.Errorf("build rotation lookup: %w", err)
	}
	query = r.db.Rebind(query)
	var rows []models.Rotation
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("get rotations by name: %w", err)
	}
	byName := make(map[string]models.Rotation, len(rows))
	for _, row := range rows {
		byName[strings.ToUpper(row.Name)] = row
	}
	return byName, nil
}
