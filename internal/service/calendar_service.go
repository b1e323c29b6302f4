package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type calendarResidentStore interface {
	GetByCalendarToken(ctx context.Context, token string) (*models.Resident, error)
}

type calendarAssignmentStore interface {
	ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error)
}

type calendarCallStore interface {
	ListByResident(ctx context.Context, residentID string) ([]models.CallAssignment, error)
}

type calendarDayOffStore interface {
	List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error)
	GetTypesByIDs(ctx context.Context, ids []string) (map[string]models.DayOffType, error)
}

// CalendarService renders a resident's personal iCalendar feed, addressed
// by an unguessable token so calendar apps can subscribe without auth.
// Rotations appear as all-day events when the rotation generates events,
// call duties as timed events, and approved days off as all-day events.
type CalendarService struct {
	residents   calendarResidentStore
	assignments calendarAssignmentStore
	calls       calendarCallStore
	daysOff     calendarDayOffStore
	rotations   swapRotationStore
	redis       *redis.Client
	metrics     *MetricsService
	cfg         config.CalendarConfig
	logger      *zap.Logger
}

// NewCalendarService constructs the service. The Redis client and metrics
// are optional; without Redis every request renders the feed fresh.
func NewCalendarService(residents calendarResidentStore, assignments calendarAssignmentStore, calls calendarCallStore, daysOff calendarDayOffStore, rotations swapRotationStore, redisClient *redis.Client, metrics *MetricsService, cfg config.CalendarConfig, logger *zap.Logger) *CalendarService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{
		residents:   residents,
		assignments: assignments,
		calls:       calls,
		daysOff:     daysOff,
		rotations:   rotations,
		redis:       redisClient,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger,
	}
}

// Feed returns the serialized ICS feed for the resident owning the token.
// The rendered text is cached per token; staleness after schedule changes
// is bounded by the configured cache TTL.
func (s *CalendarService) Feed(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
	}

	cacheKey := "calendar:ics:" + token
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			s.metrics.RecordCalendarLookup(true)
			return cached, nil
		}
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("calendar cache read failed", zap.Error(err))
		}
		s.metrics.RecordCalendarLookup(false)
	}

	resident, err := s.residents.GetByCalendarToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "calendar not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve calendar token")
	}

	feed, err := s.render(ctx, resident)
	if err != nil {
		return "", err
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, feed, s.cfg.CacheTTL).Err(); err != nil {
			s.logger.Warn("calendar cache write failed", zap.Error(err))
		}
	}
	return feed, nil
}

func (s *CalendarService) render(ctx context.Context, resident *models.Resident) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(s.cfg.ProdID)
	cal.SetName(fmt.Sprintf("%s - Rotation Schedule", resident.Name))

	if err := s.addRotationEvents(ctx, cal, resident); err != nil {
		return "", err
	}
	if err := s.addCallEvents(ctx, cal, resident); err != nil {
		return "", err
	}
	if err := s.addDayOffEvents(ctx, cal, resident); err != nil {
		return "", err
	}

	return cal.Serialize(), nil
}

func (s *CalendarService) addRotationEvents(ctx context.Context, cal *ics.Calendar, resident *models.Resident) error {
	assignments, err := s.assignments.ListByResidents(ctx, models.AssignmentFilter{
		ResidentIDs: []string{resident.ID},
	})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}

	rotationIDs := make([]string, 0, len(assignments))
	seen := make(map[string]struct{}, len(assignments))
	for _, assignment := range assignments {
		if _, ok := seen[assignment.RotationID]; ok {
			continue
		}
		seen[assignment.RotationID] = struct{}{}
		rotationIDs = append(rotationIDs, assignment.RotationID)
	}
	rotations, err := s.rotations.GetByIDs(ctx, rotationIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rotations")
	}

	now := time.Now().UTC()
	for _, assignment := range assignments {
		rotation, ok := rotations[assignment.RotationID]
		if !ok || !rotation.GeneratesEvents {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("assignment-%s@%s", assignment.ID, icsDomain))
		event.SetDtStampTime(now)
		event.SetSummary(rotationSummary(rotation))
		if rotation.Location != nil {
			event.SetLocation(*rotation.Location)
		}
		// ICS all-day DTEND is exclusive.
		event.SetAllDayStartAt(dayKey(assignment.WeekStart))
		event.SetAllDayEndAt(dayKey(assignment.WeekEnd).AddDate(0, 0, 1))
	}
	return nil
}

func (s *CalendarService) addCallEvents(ctx context.Context, cal *ics.Calendar, resident *models.Resident) error {
	calls, err := s.calls.ListByResident(ctx, resident.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load call assignments")
	}

	now := time.Now().UTC()
	for _, call := range calls {
		event := cal.AddEvent(fmt.Sprintf("call-%s@%s", call.ID, icsDomain))
		event.SetDtStampTime(now)
		summary := call.CallType
		if call.Service != nil {
			summary = fmt.Sprintf("%s (%s)", call.CallType, *call.Service)
		}
		event.SetSummary(summary)
		if call.Location != nil {
			event.SetLocation(*call.Location)
		}
		event.SetAllDayStartAt(dayKey(call.Date))
		event.SetAllDayEndAt(dayKey(call.Date).AddDate(0, 0, 1))
	}
	return nil
}

func (s *CalendarService) addDayOffEvents(ctx context.Context, cal *ics.Calendar, resident *models.Resident) error {
	daysOff, err := s.daysOff.List(ctx, models.DayOffFilter{ResidentID: resident.ID})
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load days off")
	}

	typeIDs := make([]string, 0, len(daysOff))
	seen := make(map[string]struct{}, len(daysOff))
	for _, dayOff := range daysOff {
		if _, ok := seen[dayOff.TypeID]; ok {
			continue
		}
		seen[dayOff.TypeID] = struct{}{}
		typeIDs = append(typeIDs, dayOff.TypeID)
	}
	types, err := s.daysOff.GetTypesByIDs(ctx, typeIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load day-off types")
	}

	now := time.Now().UTC()
	for _, dayOff := range daysOff {
		if dayOff.ApprovedAt == nil {
			continue
		}
		event := cal.AddEvent(fmt.Sprintf("dayoff-%s@%s", dayOff.ID, icsDomain))
		event.SetDtStampTime(now)
		summary := "Day Off"
		if offType, ok := types[dayOff.TypeID]; ok {
			summary = offType.Name
		}
		event.SetSummary(summary)
		event.SetAllDayStartAt(dayKey(dayOff.StartDate))
		event.SetAllDayEndAt(dayKey(dayOff.EndDate).AddDate(0, 0, 1))
	}
	return nil
}

const icsDomain = "rota-api.medrota.org"

func rotationSummary(rotation models.Rotation) string {
	if rotation.DisplayName != nil && *rotation.DisplayName != "" {
		return *rotation.DisplayName
	}
	return rotation.Name
}
