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

type residentRepoStub struct {
	created []*models.Resident
}

func (s *residentRepoStub) Create(ctx context.Context, resident *models.Resident) error {
	resident.ID = "res-new"
	s.created = append(s.created, resident)
	return nil
}

func (s *residentRepoStub) GetByID(ctx context.Context, id string) (*models.Resident, error) {
	return nil, sql.ErrNoRows
}

func (s *residentRepoStub) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error) {
	return nil, nil
}

func TestResidentCreateMintsToken(t *testing.T) {
	repo := &residentRepoStub{}
	svc := NewResidentService(repo, nil, nil)

	resident, err := svc.Create(context.Background(), dto.CreateResidentRequest{
		Name:     "  Avery Park ",
		PGYLevel: "pgy2",
	})
	require.NoError(t, err)
	require.Equal(t, "Avery Park", resident.Name)
	require.Equal(t, models.PGYLevelPGY2, resident.PGYLevel)
	require.NotEmpty(t, resident.CalendarToken)
	require.True(t, resident.IsActive)
}

func TestResidentCreateRejectsUnknownLevel(t *testing.T) {
	repo := &residentRepoStub{}
	svc := NewResidentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateResidentRequest{
		Name:     "Avery Park",
		PGYLevel: "PGY7",
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, repo.created)
}

func TestResidentCreateRejectsBadEmail(t *testing.T) {
	repo := &residentRepoStub{}
	svc := NewResidentService(repo, nil, nil)

	email := "not-an-email"
	_, err := svc.Create(context.Background(), dto.CreateResidentRequest{
		Name:     "Avery Park",
		PGYLevel: "PGY1",
		Email:    &email,
	})
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestResidentGetNotFound(t *testing.T) {
	svc := NewResidentService(&residentRepoStub{}, nil, nil)

	_, err := svc.Get(context.Background(), "res-missing")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
