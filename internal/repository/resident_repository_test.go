package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/models"
)

func newResidentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func residentRows(id, name string, level models.PGYLevel) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "email", "pgy_level", "calendar_token", "academic_year_id", "is_active", "created_at",
	}).AddRow(id, name, nil, level, "tok-"+id, nil, true, time.Now())
}

func TestResidentRepositoryListSwapCandidatesFiltersYear(t *testing.T) {
	db, mock, cleanup := newResidentRepoMock(t)
	defer cleanup()

	repo := NewResidentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND academic_year_id = $4")).
		WithArgs("res-1", models.PGYLevelPGY2, models.PGYLevelPGY3, "ay-2025").
		WillReturnRows(residentRows("res-2", "Blake Young", models.PGYLevelPGY3))

	candidates, err := repo.ListSwapCandidates(context.Background(), "res-1", "ay-2025",
		[]models.PGYLevel{models.PGYLevelPGY2, models.PGYLevelPGY3})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "res-2", candidates[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentRepositoryListSwapCandidatesNilYearMatchesNilPeers(t *testing.T) {
	db, mock, cleanup := newResidentRepoMock(t)
	defer cleanup()

	// A requester without an academic year must only see peers that also
	// have none, never the whole program.
	repo := NewResidentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND academic_year_id IS NULL")).
		WithArgs("res-1", models.PGYLevelTY, models.PGYLevelPGY1).
		WillReturnRows(residentRows("res-3", "Casey Reed", models.PGYLevelTY))

	candidates, err := repo.ListSwapCandidates(context.Background(), "res-1", "",
		[]models.PGYLevel{models.PGYLevelTY, models.PGYLevelPGY1})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "res-3", candidates[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResidentRepositoryListSwapCandidatesNoLevels(t *testing.T) {
	db, _, cleanup := newResidentRepoMock(t)
	defer cleanup()

	repo := NewResidentRepository(db)
	candidates, err := repo.ListSwapCandidates(context.Background(), "res-1", "ay-2025", nil)
	require.NoError(t, err)
	require.Empty(t, candidates)
}
