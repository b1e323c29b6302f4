package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type rotationStore interface {
	Create(ctx context.Context, rotation *models.Rotation) error
	GetByID(ctx context.Context, id string) (*models.Rotation, error)
	List(ctx context.Context) ([]models.Rotation, error)
}

// RotationService manages rotation definitions.
type RotationService struct {
	rotations rotationStore
	logger    *zap.Logger
}

// NewRotationService constructs the service.
func NewRotationService(rotations rotationStore, logger *zap.Logger) *RotationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RotationService{rotations: rotations, logger: logger}
}

// Create registers a rotation definition.
func (s *RotationService) Create(ctx context.Context, rotation *models.Rotation) (*models.Rotation, error) {
	if rotation.Name == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rotation name is required")
	}
	if err := s.rotations.Create(ctx, rotation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create rotation")
	}
	return rotation, nil
}

// Get returns one rotation.
func (s *RotationService) Get(ctx context.Context, id string) (*models.Rotation, error) {
	rotation, err := s.rotations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "rotation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotation")
	}
	return rotation, nil
}

// List returns every rotation definition.
func (s *RotationService) List(ctx context.Context) ([]models.Rotation, error) {
	rotations, err := s.rotations.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rotations")
	}
	return rotations, nil
}
