package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type residentStore interface {
	Create(ctx context.Context, resident *models.Resident) error
	GetByID(ctx context.Context, id string) (*models.Resident, error)
	List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error)
}

// ResidentService manages the program roster of trainees.
type ResidentService struct {
	residents residentStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewResidentService constructs the service.
func NewResidentService(residents residentStore, validate *validator.Validate, logger *zap.Logger) *ResidentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ResidentService{residents: residents, validator: validate, logger: logger}
	_ = svc.validator.RegisterValidation("pgy_level", func(fl validator.FieldLevel) bool {
		return models.PGYLevel(strings.ToUpper(fl.Field().String())).Valid()
	})
	return svc
}

// Create registers a resident. The calendar token is minted here and never
// accepted from the caller.
func (s *ResidentService) Create(ctx context.Context, req dto.CreateResidentRequest) (*models.Resident, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid resident payload: "+err.Error())
	}
	resident := &models.Resident{
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		PGYLevel:       models.PGYLevel(strings.ToUpper(req.PGYLevel)),
		AcademicYearID: req.AcademicYearID,
		CalendarToken:  uuid.NewString(),
		IsActive:       true,
	}
	if err := s.residents.Create(ctx, resident); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create resident")
	}
	return resident, nil
}

// Get returns one resident.
func (s *ResidentService) Get(ctx context.Context, id string) (*models.Resident, error) {
	resident, err := s.residents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resident")
	}
	return resident, nil
}

// List returns residents matching the filter.
func (s *ResidentService) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error) {
	residents, err := s.residents.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list residents")
	}
	return residents, nil
}
