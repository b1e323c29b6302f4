package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type calendarResidentStub struct {
	residents map[string]models.Resident
}

func (s *calendarResidentStub) GetByCalendarToken(ctx context.Context, token string) (*models.Resident, error) {
	if resident, ok := s.residents[token]; ok {
		copied := resident
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

type calendarCallStub struct {
	calls []models.CallAssignment
}

func (s *calendarCallStub) ListByResident(ctx context.Context, residentID string) ([]models.CallAssignment, error) {
	var result []models.CallAssignment
	for _, call := range s.calls {
		if call.ResidentID == residentID {
			result = append(result, call)
		}
	}
	return result, nil
}

type calendarDayOffStub struct {
	daysOff []models.DayOff
	types   map[string]models.DayOffType
}

func (s *calendarDayOffStub) List(ctx context.Context, filter models.DayOffFilter) ([]models.DayOff, error) {
	var result []models.DayOff
	for _, dayOff := range s.daysOff {
		if filter.ResidentID == "" || dayOff.ResidentID == filter.ResidentID {
			result = append(result, dayOff)
		}
	}
	return result, nil
}

func (s *calendarDayOffStub) GetTypesByIDs(ctx context.Context, ids []string) (map[string]models.DayOffType, error) {
	result := make(map[string]models.DayOffType)
	for _, id := range ids {
		if offType, ok := s.types[id]; ok {
			result[id] = offType
		}
	}
	return result, nil
}

func calendarFixture() *CalendarService {
	night := "Night Float"
	approvedAt := saturday
	residents := &calendarResidentStub{residents: map[string]models.Resident{
		"tok-1": {ID: "res-1", Name: "Avery Park", PGYLevel: models.PGYLevelPGY2},
	}}
	assignments := &swapAssignmentStub{assignments: map[string]models.ScheduleAssignment{
		"asn-1": {
			ID: "asn-1", ResidentID: "res-1", RotationID: "rot-icu",
			WeekStart: saturday, WeekEnd: saturday.AddDate(0, 0, 6),
		},
		"asn-2": {
			ID: "asn-2", ResidentID: "res-1", RotationID: "rot-lecture",
			WeekStart: saturday.AddDate(0, 0, 7), WeekEnd: saturday.AddDate(0, 0, 13),
		},
	}}
	calls := &calendarCallStub{calls: []models.CallAssignment{
		{ID: "call-1", ResidentID: "res-1", CallType: "Overnight", Service: &night, Date: saturday.AddDate(0, 0, 2)},
	}}
	daysOff := &calendarDayOffStub{
		daysOff: []models.DayOff{
			{ID: "off-1", ResidentID: "res-1", TypeID: "type-vac", StartDate: saturday.AddDate(0, 0, 20), EndDate: saturday.AddDate(0, 0, 24), ApprovedAt: &approvedAt},
			{ID: "off-2", ResidentID: "res-1", TypeID: "type-vac", StartDate: saturday.AddDate(0, 0, 30), EndDate: saturday.AddDate(0, 0, 30)},
		},
		types: map[string]models.DayOffType{
			"type-vac": {ID: "type-vac", Name: "Vacation"},
		},
	}
	rotations := &rotationStoreStub{rotations: map[string]models.Rotation{
		"rot-icu":     {ID: "rot-icu", Name: "ICU", GeneratesEvents: true},
		"rot-lecture": {ID: "rot-lecture", Name: "LECTURE", GeneratesEvents: false},
	}}
	cfg := config.CalendarConfig{Enabled: true, CacheTTL: time.Hour, ProdID: "-//MedRota//rota-api//EN"}
	return NewCalendarService(residents, assignments, calls, daysOff, rotations, nil, nil, cfg, nil)
}

func TestCalendarFeedRendersEvents(t *testing.T) {
	svc := calendarFixture()

	feed, err := svc.Feed(context.Background(), "tok-1")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(feed, "BEGIN:VCALENDAR"))
	require.Contains(t, feed, "SUMMARY:ICU")
	require.Contains(t, feed, "assignment-asn-1@rota-api.medrota.org")
	require.Contains(t, feed, "Overnight (Night Float)")
	require.Contains(t, feed, "SUMMARY:Vacation")
}

func TestCalendarFeedSkipsNonEventRotations(t *testing.T) {
	svc := calendarFixture()

	feed, err := svc.Feed(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotContains(t, feed, "LECTURE")
	require.NotContains(t, feed, "assignment-asn-2")
}

func TestCalendarFeedSkipsPendingDaysOff(t *testing.T) {
	svc := calendarFixture()

	feed, err := svc.Feed(context.Background(), "tok-1")
	require.NoError(t, err)
	require.NotContains(t, feed, "dayoff-off-2")
	require.Contains(t, feed, "dayoff-off-1@rota-api.medrota.org")
}

func TestCalendarFeedUnknownToken(t *testing.T) {
	svc := calendarFixture()

	_, err := svc.Feed(context.Background(), "tok-nope")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCalendarFeedEmptyToken(t *testing.T) {
	svc := calendarFixture()

	_, err := svc.Feed(context.Background(), "")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
