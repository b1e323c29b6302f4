package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/medrota/rota-api/internal/models"
)

// CallRepository reads call duty assignments. Rows are written by the
// external schedule sync, so this repository is read-only.
type CallRepository struct {
	db *sqlx.DB
}

// NewCallRepository constructs the repository.
func NewCallRepository(db *sqlx.DB) *CallRepository {
	return &CallRepository{db: db}
}

// ListByResident returns a resident's call assignments ordered by date.
func (r *CallRepository) ListByResident(ctx context.Context, residentID string) ([]models.CallAssignment, error) {
	const query = `SELECT id, resident_id, call_type, date, service, location, academic_year_id, source, created_at
	FROM call_assignments WHERE resident_id = $1 ORDER BY date ASC`
	var calls []models.CallAssignment
	if err := r.db.SelectContext(ctx, &calls, query, residentID); err != nil {
		return nil, fmt.Errorf("list call assignments: %w", err)
	}
	return calls, nil
}
