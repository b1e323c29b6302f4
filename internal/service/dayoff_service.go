package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/dto"
	"github.com/medrota/rota-api/internal/models"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type dayOffStore interface {
	Create(ctx context.Context, dayOff *models.DayOff) error
	GetByID(ctx context.Context, id string) (*models.DayOff, error)
	List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error)
	Approve(ctx context.Context, id, adminID string, approvedAt time.Time) error
	Delete(ctx context.Context, id string) error
	ListTypes(ctx context.Context) ([]models.DayOffType, error)
	GetTypesByIDs(ctx context.Context, ids []string) (map[string]models.DayOffType, error)
}

// DayOffService manages resident absences. Days off feed the calendar
// once approved; they do not participate in duty-hour validation.
type DayOffService struct {
	daysOff   dayOffStore
	residents scheduleResidentStore
	logger    *zap.Logger
}

// NewDayOffService constructs the service.
func NewDayOffService(daysOff dayOffStore, residents scheduleResidentStore, logger *zap.Logger) *DayOffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayOffService{daysOff: daysOff, residents: residents, logger: logger}
}

// Create records an absence range.
func (s *DayOffService) Create(ctx context.Context, req dto.CreateDayOffRequest) (*models.DayOff, error) {
	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
	}
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must not precede startDate")
	}

	if _, err := s.residents.GetByID(ctx, req.ResidentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "resident not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load resident")
	}
	types, err := s.daysOff.GetTypesByIDs(ctx, []string{req.TypeID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day-off types")
	}
	if _, ok := types[req.TypeID]; !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "day-off type not found")
	}

	dayOff := &models.DayOff{
		ResidentID: req.ResidentID,
		TypeID:     req.TypeID,
		StartDate:  startDate,
		EndDate:    endDate,
		Notes:      optionalString(req.Notes),
		Source:     models.SourceManual,
	}
	if err := s.daysOff.Create(ctx, dayOff); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create day off")
	}
	return dayOff, nil
}

// List returns absences matching the filter.
func (s *DayOffService) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	daysOff, err := s.daysOff.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list days off")
	}
	return daysOff, nil
}

// Approve stamps a pending absence. Approving twice fails on the guard.
func (s *DayOffService) Approve(ctx context.Context, id, adminID string) (*models.DayOff, error) {
	now := time.Now().UTC()
	if err := s.daysOff.Approve(ctx, id, adminID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "day off not found or already approved")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve day off")
	}
	dayOff, err := s.daysOff.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day off")
	}
	return dayOff, nil
}

// Delete removes an absence.
func (s *DayOffService) Delete(ctx context.Context, id string) error {
	if err := s.daysOff.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "day off not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete day off")
	}
	return nil
}

// ListTypes returns the known absence categories.
func (s *DayOffService) ListTypes(ctx context.Context) ([]models.DayOffType, error) {
	types, err := s.daysOff.ListTypes(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list day-off types")
	}
	return types, nil
}
