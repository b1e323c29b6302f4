package service

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/medrota/rota-api/internal/models"
	"github.com/medrota/rota-api/pkg/config"
	appErrors "github.com/medrota/rota-api/pkg/errors"
)

type importAssignmentStub struct {
	existing []models.ScheduleAssignment
	written  []models.ScheduleAssignment
}

func (s *importAssignmentStub) ListByResidents(ctx context.Context, filter models.AssignmentFilter) ([]models.ScheduleAssignment, error) {
	return s.existing, nil
}

func (s *importAssignmentStub) BulkUpsert(ctx context.Context, assignments []models.ScheduleAssignment) error {
	s.written = append(s.written, assignments...)
	return nil
}

type importResidentStub struct {
	residents []models.Resident
}

func (s *importResidentStub) List(ctx context.Context, filter models.ResidentFilter) ([]models.Resident, error) {
	return s.residents, nil
}

type importRotationStub struct {
	rotations map[string]models.Rotation
}

func (s *importRotationStub) GetByIDs(ctx context.Context, ids []string) (map[string]models.Rotation, error) {
	result := make(map[string]models.Rotation)
	for _, rotation := range s.rotations {
		for _, id := range ids {
			if rotation.ID == id {
				result[id] = rotation
			}
		}
	}
	return result, nil
}

func (s *importRotationStub) GetByNames(ctx context.Context, names []string) (map[string]models.Rotation, error) {
	result := make(map[string]models.Rotation)
	for _, name := range names {
		if rotation, ok := s.rotations[strings.ToUpper(name)]; ok {
			result[strings.ToUpper(name)] = rotation
		}
	}
	return result, nil
}

func workbook(t *testing.T, rows [][]interface{}) io.Reader {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(sheet, cell, value))
		}
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func importFixture() (*importAssignmentStub, *importResidentStub, *importRotationStub) {
	assignments := &importAssignmentStub{}
	residents := &importResidentStub{residents: []models.Resident{
		{ID: "res-1", Name: "Avery Park", PGYLevel: models.PGYLevelPGY2, IsActive: true},
		{ID: "res-2", Name: "Blake Young", PGYLevel: models.PGYLevelPGY3, IsActive: true},
	}}
	rotations := &importRotationStub{rotations: map[string]models.Rotation{
		"CLINIC": {
			ID:           "rot-clinic",
			Name:         "CLINIC",
			StartTime:    models.ClockTime{Hour: 8},
			EndTime:      models.ClockTime{Hour: 16},
			WeekdaysOnly: true,
		},
		"MARATHON": {
			ID:          "rot-marathon",
			Name:        "MARATHON",
			StartTime:   models.ClockTime{Hour: 17},
			EndTime:     models.ClockTime{Hour: 11},
			IsOvernight: true,
		},
	}}
	return assignments, residents, rotations
}

func newImportService(assignments *importAssignmentStub, residents *importResidentStub, rotations *importRotationStub, audit *auditStub) *ImportService {
	cfg := config.ImportsConfig{Enabled: true, MaxRows: 100}
	return NewImportService(assignments, residents, rotations, &validatorStub{}, audit, cfg, nil)
}

func TestImportScheduleWritesGrid(t *testing.T) {
	assignments, residents, rotations := importFixture()
	audit := &auditStub{}
	svc := newImportService(assignments, residents, rotations, audit)

	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05", "2025-07-12"},
		{"Avery Park", "CLINIC", "CLINIC"},
		{"Blake Young", "clinic", ""},
	})

	result, err := svc.ImportSchedule(context.Background(), "admin-1", reader, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.ResidentsMatched)
	require.Equal(t, 3, result.AssignmentsWritten)
	require.Len(t, assignments.written, 3)
	require.Equal(t, models.SourceExcel, assignments.written[0].Source)
	require.Equal(t, saturday.AddDate(0, 0, 6), assignments.written[0].WeekEnd)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionScheduleImport, audit.logs[0].Action)
}

func TestImportScheduleBadHeaderColumnKeepsAlignment(t *testing.T) {
	assignments, residents, rotations := importFixture()
	svc := newImportService(assignments, residents, rotations, &auditStub{})

	// The middle header cell is not a date; the cell beneath it must be
	// ignored, not shifted onto the following week.
	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05", "garbage", "2025-07-19"},
		{"Avery Park", "CLINIC", "MARATHON", "CLINIC"},
	})

	result, err := svc.ImportSchedule(context.Background(), "admin-1", reader, false)
	require.NoError(t, err)
	require.Equal(t, 2, result.AssignmentsWritten)
	require.Len(t, assignments.written, 2)

	byWeek := make(map[string]string, len(assignments.written))
	for _, written := range assignments.written {
		byWeek[written.WeekStart.Format("2006-01-02")] = written.RotationID
	}
	require.Equal(t, "rot-clinic", byWeek["2025-07-05"])
	require.Equal(t, "rot-clinic", byWeek["2025-07-19"])
	require.Len(t, result.SkippedCells, 1)
	require.Contains(t, result.SkippedCells[0], "unparseable date")
}

func TestImportScheduleSkipsUnknownNames(t *testing.T) {
	assignments, residents, rotations := importFixture()
	svc := newImportService(assignments, residents, rotations, &auditStub{})

	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05"},
		{"Avery Park", "CLINIC"},
		{"Nobody Real", "CLINIC"},
		{"Blake Young", "UNDERWATER BASKETWEAVING"},
	})

	result, err := svc.ImportSchedule(context.Background(), "admin-1", reader, false)
	require.NoError(t, err)
	require.Equal(t, 1, result.AssignmentsWritten)
	require.Len(t, result.SkippedCells, 2)
}

func TestImportScheduleViolationsBlockWithoutForce(t *testing.T) {
	assignments, residents, rotations := importFixture()
	svc := newImportService(assignments, residents, rotations, &auditStub{})

	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05"},
		{"Avery Park", "MARATHON"},
	})

	result, err := svc.ImportSchedule(context.Background(), "admin-1", reader, false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrScheduleViolation.Code, appErrors.FromError(err).Code)
	require.NotNil(t, result)
	require.Zero(t, result.AssignmentsWritten)
	require.NotEmpty(t, result.Violations)
	require.Empty(t, assignments.written)
}

func TestImportScheduleForceCommitsAndAudits(t *testing.T) {
	assignments, residents, rotations := importFixture()
	audit := &auditStub{}
	svc := newImportService(assignments, residents, rotations, audit)

	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05"},
		{"Avery Park", "MARATHON"},
	})

	result, err := svc.ImportSchedule(context.Background(), "admin-1", reader, true)
	require.NoError(t, err)
	require.True(t, result.Forced)
	require.Len(t, assignments.written, 1)
	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionScheduleForce, audit.logs[0].Action)
}

func TestImportScheduleRejectsGarbage(t *testing.T) {
	assignments, residents, rotations := importFixture()
	svc := newImportService(assignments, residents, rotations, &auditStub{})

	_, err := svc.ImportSchedule(context.Background(), "admin-1", strings.NewReader("not an xlsx"), false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestImportScheduleRowCap(t *testing.T) {
	assignments, residents, rotations := importFixture()
	cfg := config.ImportsConfig{Enabled: true, MaxRows: 2}
	svc := NewImportService(assignments, residents, rotations, &validatorStub{}, &auditStub{}, cfg, nil)

	reader := workbook(t, [][]interface{}{
		{"Resident", "2025-07-05"},
		{"Avery Park", "CLINIC"},
		{"Blake Young", "CLINIC"},
	})

	_, err := svc.ImportSchedule(context.Background(), "admin-1", reader, false)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
